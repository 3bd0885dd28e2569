package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CaseEvent is one change notification on a case: an assignment-state
// change, an attempt transition, a profile generation or a signature.
// Viewers must not trust the delta itself; they re-derive state from the
// latest stored snapshot on every event.
type CaseEvent struct {
	CasoID   uuid.UUID  `json:"caso_id"`
	PruebaID *uuid.UUID `json:"prueba_id,omitempty"`
	Tipo     string     `json:"tipo"`
	Estado   string     `json:"estado,omitempty"`
	At       time.Time  `json:"at"`
}

// Event types published by the services.
const (
	EventAsignacion        = "asignacion"
	EventIntentoIniciado   = "intento_iniciado"
	EventIntentoFinalizado = "intento_finalizado"
	EventIntentoInterrupto = "intento_interrumpido"
	EventEstadoCaso        = "estado_caso"
	EventPerfilGenerado    = "perfil_generado"
	EventFirmaRegistrada   = "firma_registrada"
)

// Handler receives events; it must not block for long, delivery is serial
// per subscriber.
type Handler func(CaseEvent)

// Bus is the change-notification boundary: publish on mutation, subscribe
// with a case filter, unsubscribe via the returned func. uuid.Nil as the
// filter receives every case's events.
type Bus interface {
	Publish(ctx context.Context, ev CaseEvent) error
	Subscribe(casoID uuid.UUID, fn Handler) (unsubscribe func())
	Close() error
}

// MemoryBus is the in-process bus used in tests and redis-less deployments.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	casoID uuid.UUID
	fn     Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]subscription)}
}

func (b *MemoryBus) Publish(ctx context.Context, ev CaseEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.casoID == uuid.Nil || sub.casoID == ev.CasoID {
			handlers = append(handlers, sub.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
	return nil
}

func (b *MemoryBus) Subscribe(casoID uuid.UUID, fn Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{casoID: casoID, fn: fn}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.subs = make(map[int]subscription)
	b.mu.Unlock()
	return nil
}
