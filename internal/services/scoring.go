package services

import (
	"context"
	"sort"

	"psyeval/internal/models"
	"psyeval/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultNormVersion is the normative table edition used when no newer one
// is seeded.
const DefaultNormVersion = "2020"

// DefaultGrupo is the normative group applied when the case has no patient
// or the patient has no group.
const DefaultGrupo = "adulto"

// ScoringService is the scoring engine: raw sums per scale from the stored
// responses, converted through the normative table where a row exists.
type ScoringService struct {
	log         *zap.Logger
	attempts    *repository.AttemptRepo
	scores      *repository.ScoreRepo
	catalog     *repository.CatalogRepo
	cases       *repository.CaseRepo
	users       *repository.UserRepo
	normVersion string
}

func NewScoringService(
	log *zap.Logger,
	attempts *repository.AttemptRepo,
	scores *repository.ScoreRepo,
	catalog *repository.CatalogRepo,
	cases *repository.CaseRepo,
	users *repository.UserRepo,
	normVersion string,
) *ScoringService {
	if normVersion == "" {
		normVersion = DefaultNormVersion
	}
	return &ScoringService{
		log:         log,
		attempts:    attempts,
		scores:      scores,
		catalog:     catalog,
		cases:       cases,
		users:       users,
		normVersion: normVersion,
	}
}

// ScoreAttempt computes and upserts one score row per scale of the
// attempt's test. Re-running it overwrites the same (intento, escala) rows,
// so a repeated finish or a manual re-score never duplicates.
func (s *ScoringService) ScoreAttempt(ctx context.Context, intentoID uuid.UUID) error {
	attempt, err := s.attempts.ByID(ctx, intentoID)
	if err != nil {
		return translateNotFound(err, "attempt not found")
	}
	items, err := s.catalog.ItemsByTest(ctx, attempt.PruebaID)
	if err != nil {
		return err
	}
	resps, err := s.attempts.Responses(ctx, intentoID)
	if err != nil {
		return err
	}
	grupo, err := s.grupoFor(ctx, attempt.CasoID)
	if err != nil {
		return err
	}

	brutos := rawSums(items, resps)

	// Deterministic order keeps logs and upsert sequences stable.
	escalas := make([]string, 0, len(brutos))
	for escala := range brutos {
		escalas = append(escalas, escala)
	}
	sort.Strings(escalas)

	for _, escala := range escalas {
		bruto := brutos[escala]
		conv, err := s.catalog.NormLookup(ctx, attempt.PruebaID, escala, grupo, bruto, s.normVersion)
		if err != nil {
			return err
		}
		if conv == nil {
			s.log.Debug("No normative row for raw score",
				zap.String("escala", escala),
				zap.String("grupo", grupo),
				zap.Int("bruto", bruto),
			)
		}
		score := &models.Score{
			IntentoID:        intentoID,
			Escala:           escala,
			CasoID:           attempt.CasoID,
			PruebaID:         attempt.PruebaID,
			PuntajeBruto:     bruto,
			PuntajeConv:      conv,
			NormativaVersion: s.normVersion,
		}
		if err := s.scores.Upsert(ctx, score); err != nil {
			return err
		}
	}

	s.log.Info("Scored attempt",
		zap.String("intento_id", intentoID.String()),
		zap.Int("escalas", len(escalas)),
	)
	return nil
}

// ScoresForAttempt returns the stored scores of one attempt, ordered by
// scale code.
func (s *ScoringService) ScoresForAttempt(ctx context.Context, intentoID uuid.UUID) ([]models.Score, error) {
	return s.scores.ForAttempt(ctx, intentoID)
}

// ScoresForCase returns every stored score of the case.
func (s *ScoringService) ScoresForCase(ctx context.Context, casoID uuid.UUID) ([]models.Score, error) {
	return s.scores.ForCase(ctx, casoID)
}

// rawSums aggregates raw values per scale. Reverse-keyed items contribute
// max_raw minus the answered raw; items without an answer contribute
// nothing.
func rawSums(items []models.TestItem, resps []models.Response) map[string]int {
	byItem := make(map[uuid.UUID]models.TestItem, len(items))
	sums := make(map[string]int)
	for _, it := range items {
		byItem[it.ID] = it
		if it.Escala != "" {
			// Every declared scale gets a row even when nothing was answered.
			sums[it.Escala] += 0
		}
	}
	for _, r := range resps {
		item, ok := byItem[r.ItemID]
		if !ok || item.Escala == "" {
			continue
		}
		raw, ok := r.RawValue()
		if !ok {
			continue
		}
		v := int(raw)
		if item.Inverso {
			v = item.MaxRaw - v
		}
		sums[item.Escala] += v
	}
	return sums
}

func (s *ScoringService) grupoFor(ctx context.Context, casoID uuid.UUID) (string, error) {
	c, err := s.cases.ByID(ctx, casoID)
	if err != nil {
		return "", translateNotFound(err, "case not found")
	}
	if c.PacienteID == nil {
		return DefaultGrupo, nil
	}
	p, err := s.users.PatientByID(ctx, *c.PacienteID)
	if err != nil || p.Grupo == "" {
		return DefaultGrupo, nil
	}
	return p.Grupo, nil
}
