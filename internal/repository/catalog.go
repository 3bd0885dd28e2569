package repository

import (
	"context"
	"errors"

	"psyeval/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepo reads the test battery and normative reference tables. All of
// it is read-only shared data; concurrent scoring reads need no locking.
type CatalogRepo struct {
	db *gorm.DB
}

func NewCatalogRepo(db *gorm.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) Tests(ctx context.Context) ([]models.Test, error) {
	var tests []models.Test
	err := r.db.WithContext(ctx).Order("codigo").Find(&tests).Error
	return tests, err
}

func (r *CatalogRepo) TestByID(ctx context.Context, id uuid.UUID) (*models.Test, error) {
	var t models.Test
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CatalogRepo) TestByCodigo(ctx context.Context, codigo string) (*models.Test, error) {
	var t models.Test
	if err := r.db.WithContext(ctx).First(&t, "codigo = ?", codigo).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// TestBySlugOrCodigo resolves the viewer's route parameter: slug first,
// then code, the way the original viewer did.
func (r *CatalogRepo) TestBySlugOrCodigo(ctx context.Context, key string) (*models.Test, error) {
	var t models.Test
	err := r.db.WithContext(ctx).First(&t, "slug = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.db.WithContext(ctx).First(&t, "codigo = ?", key).Error
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CatalogRepo) ItemsByTest(ctx context.Context, pruebaID uuid.UUID) ([]models.TestItem, error) {
	var items []models.TestItem
	err := r.db.WithContext(ctx).
		Where("prueba_id = ?", pruebaID).
		Order("orden").
		Find(&items).Error
	return items, err
}

func (r *CatalogRepo) ItemByID(ctx context.Context, id uuid.UUID) (*models.TestItem, error) {
	var item models.TestItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// NormLookup returns the converted score for an exact (prueba, escala,
// grupo, bruto, version) match, or nil when the normative table has no row.
// Absence is expected for edge raw values and is not an error.
func (r *CatalogRepo) NormLookup(ctx context.Context, pruebaID uuid.UUID, escala, grupo string, bruto int, version string) (*int, error) {
	var entry models.NormEntry
	err := r.db.WithContext(ctx).
		Where("prueba_id = ? AND escala = ? AND grupo = ? AND puntaje_bruto = ? AND version = ?",
			pruebaID, escala, grupo, bruto, version).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	converted := entry.PuntajeConvertido
	return &converted, nil
}
