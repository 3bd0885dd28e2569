package services

import (
	"context"
	"errors"
	"time"

	"psyeval/internal/apperrors"
	"psyeval/internal/events"
	"psyeval/internal/models"
	"psyeval/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptService is the attempt engine: one active attempt per (caso,
// prueba), answer capture and the finish transition that hands off to
// scoring.
type AttemptService struct {
	log      *zap.Logger
	attempts *repository.AttemptRepo
	cases    *repository.CaseRepo
	catalog  *repository.CatalogRepo
	scoring  *ScoringService
	caseSvc  *CaseService
	bus      events.Bus
}

func NewAttemptService(
	log *zap.Logger,
	attempts *repository.AttemptRepo,
	cases *repository.CaseRepo,
	catalog *repository.CatalogRepo,
	scoring *ScoringService,
	caseSvc *CaseService,
	bus events.Bus,
) *AttemptService {
	return &AttemptService{
		log:      log,
		attempts: attempts,
		cases:    cases,
		catalog:  catalog,
		scoring:  scoring,
		caseSvc:  caseSvc,
		bus:      bus,
	}
}

// Start opens (or resumes) the attempt for a test within a case. Only the
// operator the case is assigned to may start. The attempt row is created
// with insert-or-return-existing so two racing starts converge on one id,
// then the assignment flips to en_evaluacion and the case state re-derives.
func (s *AttemptService) Start(ctx context.Context, actor *models.User, casoID, pruebaID uuid.UUID) (*models.Attempt, error) {
	if actor == nil {
		return nil, apperrors.AuthRequired("sign in to run evaluations")
	}
	c, err := s.cases.ByID(ctx, casoID)
	if err != nil {
		return nil, translateNotFound(err, "case not found")
	}
	if c.AsignadoA == nil || *c.AsignadoA != actor.ID {
		return nil, apperrors.PermissionDenied("case is not assigned to you")
	}
	if c.Estado.Terminal() {
		return nil, apperrors.Validation("case is %s", c.Estado)
	}
	assign, err := s.cases.Assignment(ctx, casoID, pruebaID)
	if err != nil {
		return nil, translateNotFound(err, "test is not part of this case")
	}
	if assign.Estado == models.AssignEvaluado {
		return nil, apperrors.Validation("test was already evaluated for this case")
	}

	attempt, err := s.attempts.InsertOrReturnActive(ctx, casoID, pruebaID)
	if err != nil {
		return nil, err
	}

	if attempt.Estado != models.AssignEnEvaluacion {
		if err := s.attempts.SetEstado(ctx, attempt.ID, models.AssignEnEvaluacion); err != nil {
			return nil, err
		}
		attempt.Estado = models.AssignEnEvaluacion
	}
	if assign.Estado != models.AssignEnEvaluacion {
		if err := s.cases.SetAssignmentEstado(ctx, casoID, pruebaID, models.AssignEnEvaluacion); err != nil {
			return nil, err
		}
	}
	if _, err := s.caseSvc.ComputeEstado(ctx, casoID); err != nil {
		return nil, err
	}

	s.publish(ctx, events.CaseEvent{
		CasoID:   casoID,
		PruebaID: &pruebaID,
		Tipo:     events.EventIntentoIniciado,
		Estado:   string(models.AssignEnEvaluacion),
	})
	return attempt, nil
}

// AnswerInput is one captured answer for an item of the running attempt.
type AnswerInput struct {
	ItemID uuid.UUID
	Label  string
	Raw    float64
}

// RecordAnswer upserts the answer keyed by (intento, item). Answers against
// a finished attempt are accepted: late writes from a flaky viewer are more
// common than abuse, and a closed attempt's scores were already computed.
func (s *AttemptService) RecordAnswer(ctx context.Context, actor *models.User, intentoID uuid.UUID, in AnswerInput) (*models.Response, error) {
	attempt, err := s.attempts.ByID(ctx, intentoID)
	if err != nil {
		return nil, translateNotFound(err, "attempt not found")
	}
	item, err := s.catalog.ItemByID(ctx, in.ItemID)
	if err != nil {
		return nil, translateNotFound(err, "item not found")
	}
	if item.PruebaID != attempt.PruebaID {
		return nil, apperrors.Validation("item does not belong to this attempt's test")
	}

	resp := &models.Response{
		IntentoID: intentoID,
		ItemID:    in.ItemID,
		CasoID:    attempt.CasoID,
		PruebaID:  attempt.PruebaID,
		Invertido: item.Inverso,
		Valor: map[string]interface{}{
			"label": in.Label,
			"raw":   in.Raw,
		},
	}
	if actor != nil {
		id := actor.ID
		resp.UserID = &id
	}
	if err := s.attempts.UpsertResponse(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Finish closes the attempt, scores it and re-derives the case state. The
// close itself happens at most once; on a repeat call nothing changes and
// the already-stored attempt is returned. Scoring runs only on the call
// that actually closed the row.
func (s *AttemptService) Finish(ctx context.Context, actor *models.User, intentoID uuid.UUID) (*models.Attempt, error) {
	attempt, err := s.attempts.ByID(ctx, intentoID)
	if err != nil {
		return nil, translateNotFound(err, "attempt not found")
	}

	endedAt := time.Now().UTC()
	duracion := int(endedAt.Sub(attempt.IniciadoEn).Seconds())
	closed, err := s.attempts.Finish(ctx, intentoID, endedAt, &duracion)
	if err != nil {
		return nil, err
	}
	if !closed {
		return attempt, nil
	}

	if err := s.scoring.ScoreAttempt(ctx, intentoID); err != nil {
		// The attempt stays closed; scoring can be re-run from the case view.
		s.log.Error("Scoring after finish failed",
			zap.String("intento_id", intentoID.String()),
			zap.Error(err),
		)
	}

	if err := s.cases.SetAssignmentEstado(ctx, attempt.CasoID, attempt.PruebaID, models.AssignEvaluado); err != nil {
		return nil, err
	}
	if _, err := s.caseSvc.ComputeEstado(ctx, attempt.CasoID); err != nil {
		return nil, err
	}

	s.publish(ctx, events.CaseEvent{
		CasoID:   attempt.CasoID,
		PruebaID: &attempt.PruebaID,
		Tipo:     events.EventIntentoFinalizado,
		Estado:   string(models.AssignEvaluado),
	})
	return s.attempts.ByID(ctx, intentoID)
}

// Interrupt abandons an open attempt. The assignment returns to
// interrumpido so a later Start opens a fresh attempt; responses of the
// abandoned one are kept but never scored.
func (s *AttemptService) Interrupt(ctx context.Context, intentoID uuid.UUID) error {
	attempt, err := s.attempts.ByID(ctx, intentoID)
	if err != nil {
		return translateNotFound(err, "attempt not found")
	}
	closed, err := s.attempts.Interrupt(ctx, intentoID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !closed {
		return nil
	}
	if err := s.cases.SetAssignmentEstado(ctx, attempt.CasoID, attempt.PruebaID, models.AssignInterrumpido); err != nil {
		return err
	}
	if _, err := s.caseSvc.ComputeEstado(ctx, attempt.CasoID); err != nil {
		return err
	}
	s.publish(ctx, events.CaseEvent{
		CasoID:   attempt.CasoID,
		PruebaID: &attempt.PruebaID,
		Tipo:     events.EventIntentoInterrupto,
		Estado:   string(models.AssignInterrumpido),
	})
	return nil
}

// Get returns one attempt with its responses.
func (s *AttemptService) Get(ctx context.Context, intentoID uuid.UUID) (*models.Attempt, []models.Response, error) {
	attempt, err := s.attempts.ByID(ctx, intentoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.Validation("attempt not found")
		}
		return nil, nil, err
	}
	resps, err := s.attempts.Responses(ctx, intentoID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, resps, nil
}

func (s *AttemptService) publish(ctx context.Context, ev events.CaseEvent) {
	ev.At = time.Now().UTC()
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish attempt event", zap.Error(err), zap.String("tipo", ev.Tipo))
	}
}
