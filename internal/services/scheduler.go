package services

import (
	"context"
	"time"

	"psyeval/internal/events"
	"psyeval/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scheduler keeps derived state honest: a ticker sweep interrupts attempts
// idle past the configured window and re-derives the state of open cases,
// and a bus subscription recomputes on every pushed change so push and poll
// share one code path.
type Scheduler struct {
	log        *zap.Logger
	cases      *repository.CaseRepo
	attempts   *repository.AttemptRepo
	attemptSvc *AttemptService
	caseSvc    *CaseService
	bus        events.Bus
	interval   time.Duration
	idle       time.Duration

	cancel      context.CancelFunc
	unsubscribe func()
}

func NewScheduler(
	log *zap.Logger,
	cases *repository.CaseRepo,
	attempts *repository.AttemptRepo,
	attemptSvc *AttemptService,
	caseSvc *CaseService,
	bus events.Bus,
	interval, idle time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if idle <= 0 {
		idle = 2 * time.Hour
	}
	return &Scheduler{
		log:        log,
		cases:      cases,
		attempts:   attempts,
		attemptSvc: attemptSvc,
		caseSvc:    caseSvc,
		bus:        bus,
		interval:   interval,
		idle:       idle,
	}
}

// Start runs the sweep loop in a goroutine and hooks the event bus.
func (s *Scheduler) Start() {
	s.log.Info("Starting case scheduler",
		zap.Duration("interval", s.interval),
		zap.Duration("idle_timeout", s.idle),
	)

	// Recompute on every pushed change. Derived-state events are skipped:
	// ComputeEstado publishes estado_caso itself and reacting to it would
	// loop.
	s.unsubscribe = s.bus.Subscribe(uuid.Nil, func(ev events.CaseEvent) {
		if ev.Tipo == events.EventEstadoCaso {
			return
		}
		if _, err := s.caseSvc.ComputeEstado(context.Background(), ev.CasoID); err != nil {
			s.log.Error("Failed to recompute case state from event",
				zap.String("caso_id", ev.CasoID.String()),
				zap.Error(err),
			)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop halts the ticker and detaches from the bus.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.idle)
	stale, err := s.attempts.StaleActive(ctx, cutoff)
	if err != nil {
		s.log.Error("Failed to query stale attempts", zap.Error(err))
	} else {
		for _, attempt := range stale {
			s.log.Info("Interrupting idle attempt",
				zap.String("intento_id", attempt.ID.String()),
				zap.Time("iniciado_en", attempt.IniciadoEn),
			)
			if err := s.attemptSvc.Interrupt(ctx, attempt.ID); err != nil {
				s.log.Error("Failed to interrupt idle attempt",
					zap.String("intento_id", attempt.ID.String()),
					zap.Error(err),
				)
			}
		}
	}

	open, err := s.cases.Open(ctx)
	if err != nil {
		s.log.Error("Failed to list open cases", zap.Error(err))
		return
	}
	for _, c := range open {
		if _, err := s.caseSvc.ComputeEstado(ctx, c.ID); err != nil {
			s.log.Error("Failed to recompute case state",
				zap.String("caso_id", c.ID.String()),
				zap.Error(err),
			)
		}
	}
}
