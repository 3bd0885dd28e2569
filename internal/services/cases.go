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

// CaseService is the case store: it owns case records and their assignment
// sublist and enforces the case state machine.
type CaseService struct {
	log      *zap.Logger
	cases    *repository.CaseRepo
	users    *repository.UserRepo
	bus      events.Bus
	notifier *Notifier
}

func NewCaseService(log *zap.Logger, cases *repository.CaseRepo, users *repository.UserRepo, bus events.Bus, notifier *Notifier) *CaseService {
	return &CaseService{log: log, cases: cases, users: users, bus: bus, notifier: notifier}
}

// CreateCaseInput carries the mutable case fields plus the initial battery.
type CreateCaseInput struct {
	PacienteID *uuid.UUID
	AsignadoA  *uuid.UUID
	Motivacion string
	TestIDs    []uuid.UUID
}

// Create builds the case and one assignment per test with dense orden from 1.
// Duplicate test ids are rejected before anything is written.
func (s *CaseService) Create(ctx context.Context, actor *models.User, in CreateCaseInput) (*models.Case, error) {
	if err := requireCaseManager(actor); err != nil {
		return nil, err
	}
	if err := checkDuplicates(in.TestIDs); err != nil {
		return nil, err
	}

	estado := models.CasePendiente
	if in.AsignadoA != nil {
		estado = models.CaseAsignado
	}
	c := &models.Case{
		PacienteID: in.PacienteID,
		AsignadoA:  in.AsignadoA,
		Motivacion: in.Motivacion,
		Estado:     estado,
	}
	if actor != nil {
		id := actor.ID
		c.CreadoPor = &id
	}

	if err := s.cases.Create(ctx, c, in.TestIDs); err != nil {
		return nil, err
	}

	if in.AsignadoA != nil {
		if operator, err := s.users.ByID(ctx, *in.AsignadoA); err == nil {
			s.notifier.CaseAssigned(operator, c)
		}
	}
	s.publish(ctx, events.CaseEvent{CasoID: c.ID, Tipo: events.EventAsignacion, Estado: string(c.Estado)})

	return s.cases.ByID(ctx, c.ID)
}

// UpdateCaseInput carries the editable fields. Nil pointers leave the field
// untouched; DesiredTestIDs nil leaves the assignment set alone.
type UpdateCaseInput struct {
	PacienteID     *uuid.UUID
	AsignadoA      *uuid.UUID
	Motivacion     *string
	DesiredTestIDs []uuid.UUID
}

// Update mutates case fields and reconciles the assignment set against the
// desired list by set difference: missing tests are appended with orden
// continuing from the current max, surplus tests are removed.
func (s *CaseService) Update(ctx context.Context, actor *models.User, casoID uuid.UUID, in UpdateCaseInput) (*models.Case, error) {
	if err := requireCaseManager(actor); err != nil {
		return nil, err
	}
	current, err := s.cases.ByID(ctx, casoID)
	if err != nil {
		return nil, translateNotFound(err, "case not found")
	}

	fields := map[string]interface{}{}
	if in.PacienteID != nil {
		fields["paciente_id"] = *in.PacienteID
	}
	if in.AsignadoA != nil {
		fields["asignado_a"] = *in.AsignadoA
	}
	if in.Motivacion != nil {
		fields["motivacion"] = *in.Motivacion
	}
	if len(fields) > 0 {
		if err := s.cases.UpdateFields(ctx, casoID, fields); err != nil {
			return nil, err
		}
		if in.AsignadoA != nil && (current.AsignadoA == nil || *current.AsignadoA != *in.AsignadoA) {
			if operator, err := s.users.ByID(ctx, *in.AsignadoA); err == nil {
				s.notifier.CaseAssigned(operator, current)
			}
		}
	}

	if in.DesiredTestIDs != nil {
		if err := checkDuplicates(in.DesiredTestIDs); err != nil {
			return nil, err
		}
		if err := s.reconcileAssignments(ctx, casoID, in.DesiredTestIDs); err != nil {
			return nil, err
		}
	}

	if _, err := s.ComputeEstado(ctx, casoID); err != nil {
		return nil, err
	}
	s.publish(ctx, events.CaseEvent{CasoID: casoID, Tipo: events.EventAsignacion})
	return s.cases.ByID(ctx, casoID)
}

func (s *CaseService) reconcileAssignments(ctx context.Context, casoID uuid.UUID, desired []uuid.UUID) error {
	current, err := s.cases.Assignments(ctx, casoID)
	if err != nil {
		return err
	}

	wanted := make(map[uuid.UUID]bool, len(desired))
	for _, id := range desired {
		wanted[id] = true
	}
	have := make(map[uuid.UUID]bool, len(current))
	maxOrden := 0
	for _, a := range current {
		have[a.PruebaID] = true
		if a.Orden > maxOrden {
			maxOrden = a.Orden
		}
	}

	for _, a := range current {
		if wanted[a.PruebaID] {
			continue
		}
		// Removing a test that already moved past pendiente is allowed, as
		// observed in production; it is worth a trace.
		if a.Estado != models.AssignPendiente {
			s.log.Warn("Removing non-pending assignment",
				zap.String("caso_id", casoID.String()),
				zap.String("prueba_id", a.PruebaID.String()),
				zap.String("estado", string(a.Estado)),
			)
		}
		if err := s.cases.RemoveAssignment(ctx, casoID, a.PruebaID); err != nil {
			return err
		}
	}

	for _, id := range desired {
		if have[id] {
			continue
		}
		maxOrden++
		if err := s.cases.AddAssignment(ctx, casoID, id, maxOrden); err != nil {
			return err
		}
	}
	return nil
}

// Get returns one case under the read rules: managers and the secretary see
// every case, an operator only their own.
func (s *CaseService) Get(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Case, error) {
	if actor == nil {
		return nil, apperrors.AuthRequired("sign in to view cases")
	}
	c, err := s.cases.ByID(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, "case not found")
	}
	if actor.Rol == models.RolOperador {
		if c.AsignadoA == nil || *c.AsignadoA != actor.ID {
			return nil, apperrors.PermissionDenied("not your case")
		}
	}
	return c, nil
}

// List returns the cases visible to the actor, newest first.
func (s *CaseService) List(ctx context.Context, actor *models.User) ([]models.Case, error) {
	if actor == nil {
		return nil, apperrors.AuthRequired("sign in to view cases")
	}
	if actor.Rol == models.RolOperador {
		id := actor.ID
		return s.cases.List(ctx, &id)
	}
	return s.cases.List(ctx, nil)
}

// Cancel marks the case cancelada, the only state not derived from its
// assignments.
func (s *CaseService) Cancel(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if err := requireCaseManager(actor); err != nil {
		return err
	}
	if err := s.cases.SetEstado(ctx, id, models.CaseCancelada); err != nil {
		return err
	}
	s.publish(ctx, events.CaseEvent{CasoID: id, Tipo: events.EventEstadoCaso, Estado: string(models.CaseCancelada)})
	return nil
}

// Delete removes a case and its assignments.
func (s *CaseService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if err := requireCaseManager(actor); err != nil {
		return err
	}
	return s.cases.Delete(ctx, id)
}

// ComputeEstado re-derives the case state from the latest assignment
// snapshot and persists it when it changed. Safe to call from a push event,
// a poll or a sweep: it is a pure function of current stored state.
func (s *CaseService) ComputeEstado(ctx context.Context, casoID uuid.UUID) (models.CaseEstado, error) {
	c, err := s.cases.ByID(ctx, casoID)
	if err != nil {
		return "", translateNotFound(err, "case not found")
	}
	assigns, err := s.cases.Assignments(ctx, casoID)
	if err != nil {
		return "", err
	}

	derived := DeriveEstado(c, assigns)
	if derived != c.Estado {
		if err := s.cases.SetEstado(ctx, casoID, derived); err != nil {
			return "", err
		}
		s.publish(ctx, events.CaseEvent{CasoID: casoID, Tipo: events.EventEstadoCaso, Estado: string(derived)})
	}
	return derived, nil
}

// DeriveEstado is the state aggregation rule. Cancelada is sticky; with no
// tests the case sits pendiente/asignado on the operator; any started or
// evaluated test means en_progreso; all tests terminal with at least one
// evaluado means completada.
func DeriveEstado(c *models.Case, assigns []models.CaseTest) models.CaseEstado {
	if c.Estado == models.CaseCancelada {
		return models.CaseCancelada
	}

	if len(assigns) == 0 {
		if c.AsignadoA != nil {
			return models.CaseAsignado
		}
		return models.CasePendiente
	}

	allTerminal := true
	anyEvaluado := false
	anyActivity := false
	for _, a := range assigns {
		switch a.Estado {
		case models.AssignEvaluado:
			anyEvaluado = true
			anyActivity = true
		case models.AssignInterrumpido:
			anyActivity = true
		case models.AssignEnEvaluacion:
			anyActivity = true
			allTerminal = false
		default:
			allTerminal = false
		}
	}

	switch {
	case allTerminal && anyEvaluado:
		return models.CaseCompletada
	case anyActivity:
		return models.CaseEnProgreso
	case c.AsignadoA != nil:
		return models.CaseAsignado
	default:
		return models.CasePendiente
	}
}

func (s *CaseService) publish(ctx context.Context, ev events.CaseEvent) {
	ev.At = time.Now().UTC()
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish case event", zap.Error(err), zap.String("tipo", ev.Tipo))
	}
}

func requireCaseManager(actor *models.User) error {
	if actor == nil {
		return apperrors.AuthRequired("sign in to manage cases")
	}
	if !actor.Rol.CanManageCases() {
		return apperrors.PermissionDenied("only administrators can manage cases")
	}
	return nil
}

func checkDuplicates(testIDs []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(testIDs))
	for _, id := range testIDs {
		if seen[id] {
			return apperrors.Validation("duplicate test in battery: %s", id)
		}
		seen[id] = true
	}
	return nil
}

func translateNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Validation("%s", msg)
	}
	return err
}
