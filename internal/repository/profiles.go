package repository

import (
	"context"
	"errors"

	"psyeval/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileRepo owns perfiles_caso.
type ProfileRepo struct {
	db *gorm.DB
}

func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// InsertOrExisting persists the profile insert-only: when a row already
// exists for (caso, model_version) the existing row is returned and the new
// one is discarded. Generation is idempotent by existence, never an upsert.
func (r *ProfileRepo) InsertOrExisting(ctx context.Context, p *models.Profile) (*models.Profile, bool, error) {
	err := r.db.WithContext(ctx).Create(p).Error
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}
	existing, err := r.ByCaseAndVersion(ctx, p.CasoID, p.ModelVersion)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *ProfileRepo) ByCaseAndVersion(ctx context.Context, casoID uuid.UUID, version string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).
		Where("caso_id = ? AND model_version = ?", casoID, version).
		Order("generated_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Latest returns the current profile of a case: most recent by generated_at
// across model versions, or nil when none exists.
func (r *ProfileRepo) Latest(ctx context.Context, casoID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).
		Where("caso_id = ?", casoID).
		Order("generated_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CountByLabel feeds the profile-distribution chart.
func (r *ProfileRepo) CountByLabel(ctx context.Context) (map[string]int64, error) {
	type row struct {
		PerfilClinico string
		N             int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Profile{}).
		Select("perfil_clinico, COUNT(*) AS n").
		Group("perfil_clinico").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.PerfilClinico] = r.N
	}
	return out, nil
}
