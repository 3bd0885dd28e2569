package repository

import (
	"context"

	"psyeval/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseRepo owns casos and their casos_pruebas sublist.
type CaseRepo struct {
	db *gorm.DB
}

func NewCaseRepo(db *gorm.DB) *CaseRepo {
	return &CaseRepo{db: db}
}

// Create inserts the case and one assignment row per test, with dense
// ascending orden starting at 1, in a single transaction.
func (r *CaseRepo) Create(ctx context.Context, c *models.Case, testIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		for i, pruebaID := range testIDs {
			assign := models.CaseTest{
				CasoID:   c.ID,
				PruebaID: pruebaID,
				Orden:    i + 1,
				Estado:   models.AssignPendiente,
			}
			if err := tx.Create(&assign).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CaseRepo) ByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	var c models.Case
	err := r.db.WithContext(ctx).
		Preload("Pruebas", func(db *gorm.DB) *gorm.DB { return db.Order("orden") }).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns cases newest first. When operador is non-nil only that
// operator's assigned cases are returned (the row-level rule the original
// enforced server-side).
func (r *CaseRepo) List(ctx context.Context, operador *uuid.UUID) ([]models.Case, error) {
	q := r.db.WithContext(ctx).
		Preload("Pruebas", func(db *gorm.DB) *gorm.DB { return db.Order("orden") }).
		Order("creado_en DESC")
	if operador != nil {
		q = q.Where("asignado_a = ?", *operador)
	}
	var cases []models.Case
	err := q.Find(&cases).Error
	return cases, err
}

// Open returns the cases whose estado is not terminal, for the state sweep.
func (r *CaseRepo) Open(ctx context.Context) ([]models.Case, error) {
	var cases []models.Case
	err := r.db.WithContext(ctx).
		Where("estado NOT IN ?", []models.CaseEstado{models.CaseCompletada, models.CaseCancelada}).
		Find(&cases).Error
	return cases, err
}

func (r *CaseRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Case{}).Where("id = ?", id).Updates(fields).Error
}

func (r *CaseRepo) SetEstado(ctx context.Context, id uuid.UUID, estado models.CaseEstado) error {
	return r.db.WithContext(ctx).Model(&models.Case{}).Where("id = ?", id).
		Update("estado", estado).Error
}

func (r *CaseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("caso_id = ?", id).Delete(&models.CaseTest{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Case{}, "id = ?", id).Error
	})
}

// Assignments returns the current assignment snapshot ordered by orden.
func (r *CaseRepo) Assignments(ctx context.Context, casoID uuid.UUID) ([]models.CaseTest, error) {
	var assigns []models.CaseTest
	err := r.db.WithContext(ctx).
		Where("caso_id = ?", casoID).
		Order("orden").
		Find(&assigns).Error
	return assigns, err
}

func (r *CaseRepo) Assignment(ctx context.Context, casoID, pruebaID uuid.UUID) (*models.CaseTest, error) {
	var assign models.CaseTest
	err := r.db.WithContext(ctx).
		First(&assign, "caso_id = ? AND prueba_id = ?", casoID, pruebaID).Error
	if err != nil {
		return nil, err
	}
	return &assign, nil
}

func (r *CaseRepo) AddAssignment(ctx context.Context, casoID, pruebaID uuid.UUID, orden int) error {
	assign := models.CaseTest{
		CasoID:   casoID,
		PruebaID: pruebaID,
		Orden:    orden,
		Estado:   models.AssignPendiente,
	}
	return r.db.WithContext(ctx).Create(&assign).Error
}

func (r *CaseRepo) RemoveAssignment(ctx context.Context, casoID, pruebaID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("caso_id = ? AND prueba_id = ?", casoID, pruebaID).
		Delete(&models.CaseTest{}).Error
}

// SetAssignmentEstado moves one assignment through its state machine.
func (r *CaseRepo) SetAssignmentEstado(ctx context.Context, casoID, pruebaID uuid.UUID, estado models.AssignEstado) error {
	return r.db.WithContext(ctx).Model(&models.CaseTest{}).
		Where("caso_id = ? AND prueba_id = ?", casoID, pruebaID).
		Update("estado", estado).Error
}

// CountByEstado feeds the dashboard timeline chart.
func (r *CaseRepo) CountByEstado(ctx context.Context) (map[models.CaseEstado]int64, error) {
	type row struct {
		Estado models.CaseEstado
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Case{}).
		Select("estado, COUNT(*) AS n").
		Group("estado").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.CaseEstado]int64, len(rows))
	for _, r := range rows {
		out[r.Estado] = r.N
	}
	return out, nil
}
