package repository

import (
	"context"
	"errors"
	"time"

	"psyeval/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttemptRepo owns intentos_prueba and respuestas.
type AttemptRepo struct {
	db *gorm.DB
}

func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// InsertOrReturnActive creates a new attempt for (caso, prueba), or returns
// the existing active one when the partial unique index rejects the insert.
// Two racing starts both resolve to the same attempt id; the database is the
// arbiter, never a read-then-write in application code.
func (r *AttemptRepo) InsertOrReturnActive(ctx context.Context, casoID, pruebaID uuid.UUID) (*models.Attempt, error) {
	attempt := &models.Attempt{
		CasoID:   casoID,
		PruebaID: pruebaID,
		Estado:   models.AssignPendiente,
	}
	err := r.db.WithContext(ctx).Create(attempt).Error
	if err == nil {
		return attempt, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	return r.Active(ctx, casoID, pruebaID)
}

// Active returns the open attempt for (caso, prueba), if any.
func (r *AttemptRepo) Active(ctx context.Context, casoID, pruebaID uuid.UUID) (*models.Attempt, error) {
	var attempt models.Attempt
	err := r.db.WithContext(ctx).
		Where("caso_id = ? AND prueba_id = ? AND terminado_en IS NULL", casoID, pruebaID).
		Order("iniciado_en DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepo) ByID(ctx context.Context, id uuid.UUID) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := r.db.WithContext(ctx).First(&attempt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepo) SetEstado(ctx context.Context, id uuid.UUID, estado models.AssignEstado) error {
	return r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ?", id).
		Update("estado", estado).Error
}

// Finish closes the attempt exactly once. The WHERE terminado_en IS NULL
// guard makes a second finish a no-op that leaves ended time untouched.
func (r *AttemptRepo) Finish(ctx context.Context, id uuid.UUID, endedAt time.Time, duracion *int) (bool, error) {
	updates := map[string]interface{}{
		"terminado_en": endedAt,
		"completado":   true,
		"estado":       models.AssignEvaluado,
	}
	if duracion != nil {
		updates["duracion_seg"] = *duracion
	}
	res := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND terminado_en IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Interrupt closes an open attempt as interrumpido. A no-op when the
// attempt is already closed.
func (r *AttemptRepo) Interrupt(ctx context.Context, id uuid.UUID, endedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND terminado_en IS NULL", id).
		Updates(map[string]interface{}{
			"terminado_en": endedAt,
			"estado":       models.AssignInterrumpido,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Finished returns all closed attempts of a case, oldest finish first.
// Feature collection relies on this ordering: when one test has several
// finished attempts the most recent one overwrites earlier values.
func (r *AttemptRepo) Finished(ctx context.Context, casoID uuid.UUID) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.WithContext(ctx).
		Where("caso_id = ? AND completado = ? AND terminado_en IS NOT NULL", casoID, true).
		Order("terminado_en ASC").
		Find(&attempts).Error
	return attempts, err
}

// DayCount is one point of the completed-evaluations timeline.
type DayCount struct {
	Dia   string `json:"dia"`
	Total int64  `json:"total"`
}

// FinishedPerDay aggregates completed attempts by calendar day, for the
// dashboard timeline.
func (r *AttemptRepo) FinishedPerDay(ctx context.Context) ([]DayCount, error) {
	var rows []DayCount
	err := r.db.WithContext(ctx).Model(&models.Attempt{}).
		Select("date(terminado_en) AS dia, count(*) AS total").
		Where("completado = ? AND terminado_en IS NOT NULL", true).
		Group("date(terminado_en)").
		Order("dia ASC").
		Scan(&rows).Error
	return rows, err
}

// StaleActive returns open attempts whose last activity is older than the
// cutoff, for the idle sweep.
func (r *AttemptRepo) StaleActive(ctx context.Context, cutoff time.Time) ([]models.Attempt, error) {
	var attempts []models.Attempt
	err := r.db.WithContext(ctx).
		Where("terminado_en IS NULL AND estado = ? AND iniciado_en < ?", models.AssignEnEvaluacion, cutoff).
		Find(&attempts).Error
	return attempts, err
}

// UpsertResponse writes one answer keyed by (intento, item); last write
// wins. No duplicate rows regardless of how many times an item is answered.
func (r *AttemptRepo) UpsertResponse(ctx context.Context, resp *models.Response) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "intento_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"valor", "invertido", "user_id", "updated_at"}),
	}).Create(resp).Error
}

func (r *AttemptRepo) Responses(ctx context.Context, intentoID uuid.UUID) ([]models.Response, error) {
	var resps []models.Response
	err := r.db.WithContext(ctx).
		Where("intento_id = ?", intentoID).
		Find(&resps).Error
	return resps, err
}
