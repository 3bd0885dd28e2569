package repository

import (
	"context"

	"psyeval/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScoreRepo owns puntajes.
type ScoreRepo struct {
	db *gorm.DB
}

func NewScoreRepo(db *gorm.DB) *ScoreRepo {
	return &ScoreRepo{db: db}
}

// Upsert writes one scale score keyed by (intento, escala). Re-running the
// scoring of an attempt under the same normative version is a deterministic
// overwrite of identical values; under a newer version it reflects the new
// conversion without touching other attempts' history.
func (r *ScoreRepo) Upsert(ctx context.Context, s *models.Score) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "intento_id"}, {Name: "escala"}},
		DoUpdates: clause.AssignmentColumns([]string{"puntaje_bruto", "puntaje_conv", "normativa_version", "updated_at"}),
	}).Create(s).Error
}

// ForAttempt returns all scale scores of an attempt sorted by scale code.
// Partial scoring (some scales unscored) simply yields fewer rows.
func (r *ScoreRepo) ForAttempt(ctx context.Context, intentoID uuid.UUID) ([]models.Score, error) {
	var scores []models.Score
	err := r.db.WithContext(ctx).
		Where("intento_id = ?", intentoID).
		Order("escala").
		Find(&scores).Error
	return scores, err
}

func (r *ScoreRepo) ForCase(ctx context.Context, casoID uuid.UUID) ([]models.Score, error) {
	var scores []models.Score
	err := r.db.WithContext(ctx).
		Where("caso_id = ?", casoID).
		Order("escala").
		Find(&scores).Error
	return scores, err
}
