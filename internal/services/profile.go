package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"psyeval/internal/apperrors"
	"psyeval/internal/events"
	"psyeval/internal/inference"
	"psyeval/internal/models"
	"psyeval/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileService is the profile inference orchestrator: feature assembly
// from finished attempts, the external inference call and the exactly-once
// persistence per (caso, model_version).
type ProfileService struct {
	log      *zap.Logger
	profiles *repository.ProfileRepo
	attempts *repository.AttemptRepo
	scores   *repository.ScoreRepo
	catalog  *repository.CatalogRepo
	infer    *inference.Client
	bus      events.Bus
}

func NewProfileService(
	log *zap.Logger,
	profiles *repository.ProfileRepo,
	attempts *repository.AttemptRepo,
	scores *repository.ScoreRepo,
	catalog *repository.CatalogRepo,
	infer *inference.Client,
	bus events.Bus,
) *ProfileService {
	return &ProfileService{
		log:      log,
		profiles: profiles,
		attempts: attempts,
		scores:   scores,
		catalog:  catalog,
		infer:    infer,
		bus:      bus,
	}
}

// CollectFeatures builds the flat numeric feature map for a case: has_<CODE>
// presence flags for every cataloged test plus the scored scale values of
// each finished attempt. Attempts are walked oldest finish first, so when a
// test was retaken the most recent attempt's scales win. Converted scores
// are preferred; a scale with no normative row contributes its raw sum.
func (s *ProfileService) CollectFeatures(ctx context.Context, casoID uuid.UUID) (map[string]float64, error) {
	tests, err := s.catalog.Tests(ctx)
	if err != nil {
		return nil, err
	}
	features := make(map[string]float64, len(tests)*4)
	codeByTest := make(map[uuid.UUID]string, len(tests))
	for _, t := range tests {
		features["has_"+t.Codigo] = 0
		codeByTest[t.ID] = t.Codigo
	}

	finished, err := s.attempts.Finished(ctx, casoID)
	if err != nil {
		return nil, err
	}
	for _, attempt := range finished {
		if code, ok := codeByTest[attempt.PruebaID]; ok {
			features["has_"+code] = 1
		}
		attemptScores, err := s.scores.ForAttempt(ctx, attempt.ID)
		if err != nil {
			return nil, err
		}
		for _, sc := range attemptScores {
			if sc.PuntajeConv != nil {
				features[sc.Escala] = float64(*sc.PuntajeConv)
			} else {
				features[sc.Escala] = float64(sc.PuntajeBruto)
			}
		}
	}
	return features, nil
}

// Ready reports whether every required test of the catalog has a finished
// attempt for the case, and the codes still missing.
func (s *ProfileService) Ready(ctx context.Context, casoID uuid.UUID) (bool, []string, error) {
	features, err := s.CollectFeatures(ctx, casoID)
	if err != nil {
		return false, nil, err
	}
	tests, err := s.catalog.Tests(ctx)
	if err != nil {
		return false, nil, err
	}
	var missing []string
	for _, t := range tests {
		if t.Requerida && features["has_"+t.Codigo] != 1 {
			missing = append(missing, t.Codigo)
		}
	}
	return len(missing) == 0, missing, nil
}

// GenerateResult pairs the persisted profile with the inference run that
// produced (or re-produced) it. Created is false when a profile for the
// same (caso, model_version) already existed; Fresh then still carries the
// live run for display.
type GenerateResult struct {
	Profile *models.Profile          `json:"profile"`
	Created bool                     `json:"created"`
	Fresh   *inference.InferResponse `json:"fresh"`
}

// Generate runs inference for the case and persists the profile once per
// (caso, model_version). The insert is idempotent by existence, not an
// upsert: a concurrent or repeated generation returns the stored row while
// the freshly computed result is still handed back for display.
func (s *ProfileService) Generate(ctx context.Context, actor *models.User, casoID uuid.UUID) (*GenerateResult, error) {
	if actor == nil {
		return nil, apperrors.AuthRequired("sign in to generate profiles")
	}
	if !actor.Rol.CanGenerateProfile() {
		return nil, apperrors.PermissionDenied("your role cannot generate profiles")
	}
	ready, missing, err := s.Ready(ctx, casoID)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, apperrors.Validation("required tests not finished: %v", missing)
	}

	features, err := s.CollectFeatures(ctx, casoID)
	if err != nil {
		return nil, err
	}
	resp, err := s.infer.Infer(ctx, features)
	if err != nil {
		return nil, err
	}

	insights, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	candidate := &models.Profile{
		CasoID:        casoID,
		ModelVersion:  resp.ModelVersion,
		GeneratedBy:   actor.ID,
		PerfilClinico: resp.PerfilClinico,
		Probabilidad:  resp.Probabilidad,
		Summary:       Summary(resp.ModelVersion, resp.PerfilClinico, resp.Probabilidad),
		Insights:      insights,
	}
	stored, created, err := s.profiles.InsertOrExisting(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if created {
		s.publishGenerated(ctx, casoID)
		s.log.Info("Generated clinical profile",
			zap.String("caso_id", casoID.String()),
			zap.String("model_version", stored.ModelVersion),
			zap.String("perfil_clinico", stored.PerfilClinico),
		)
	}
	return &GenerateResult{Profile: stored, Created: created, Fresh: resp}, nil
}

// View re-runs feature collection and inference without persisting. Used to
// refresh the live explanation when a profile is already stored; the
// collaborator may answer differently run to run.
func (s *ProfileService) View(ctx context.Context, casoID uuid.UUID) (*inference.InferResponse, error) {
	features, err := s.CollectFeatures(ctx, casoID)
	if err != nil {
		return nil, err
	}
	return s.infer.Infer(ctx, features)
}

// Latest returns the most recently generated stored profile of the case, or
// nil when none exists.
func (s *ProfileService) Latest(ctx context.Context, casoID uuid.UUID) (*models.Profile, error) {
	return s.profiles.Latest(ctx, casoID)
}

// Summary renders the one-line profile caption shown in reports.
func Summary(version, label string, probabilidad float64) string {
	return fmt.Sprintf("Perfil IA %s: %s (%.2f)", version, label, probabilidad)
}

// Contribution is a display row of the explanation: the feature's share of
// the total absolute contribution plus a clamped bar width.
type Contribution struct {
	Feature string  `json:"feature"`
	Valor   float64 `json:"valor"`
	Aporte  float64 `json:"aporte"`
	Sentido string  `json:"sentido"`
	Pct     float64 `json:"pct"`
	Width   float64 `json:"width"`
}

// NormalizeContributions converts signed contribution magnitudes to
// percentage shares. Shares sum to ~100; Width is the same value clamped to
// a 2 percent floor so tiny contributors stay visible in a bar chart.
func NormalizeContributions(feats []inference.TopFeature) []Contribution {
	var total float64
	for _, f := range feats {
		total += abs(f.Aporte)
	}
	out := make([]Contribution, 0, len(feats))
	for _, f := range feats {
		pct := 0.0
		if total > 0 {
			pct = abs(f.Aporte) / total * 100
		}
		width := pct
		if width < 2 {
			width = 2
		}
		if width > 100 {
			width = 100
		}
		out = append(out, Contribution{
			Feature: f.Feature,
			Valor:   f.Valor,
			Aporte:  f.Aporte,
			Sentido: f.Sentido,
			Pct:     pct,
			Width:   width,
		})
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (s *ProfileService) publishGenerated(ctx context.Context, casoID uuid.UUID) {
	ev := events.CaseEvent{CasoID: casoID, Tipo: events.EventPerfilGenerado, At: time.Now().UTC()}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish profile event", zap.Error(err))
	}
}
