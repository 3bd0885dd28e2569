package repository

import (
	"context"
	"errors"

	"psyeval/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignatureRepo owns firmas_intento.
type SignatureRepo struct {
	db *gorm.DB
}

func NewSignatureRepo(db *gorm.DB) *SignatureRepo {
	return &SignatureRepo{db: db}
}

// InsertIdempotent inserts the signature row. A duplicate on (intento,
// firmado_por) means the attempt is already signed by this role; the
// existing row is returned and the call is success.
func (r *SignatureRepo) InsertIdempotent(ctx context.Context, s *models.Signature) (*models.Signature, error) {
	err := r.db.WithContext(ctx).Create(s).Error
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}
	var existing models.Signature
	err = r.db.WithContext(ctx).
		First(&existing, "intento_id = ? AND firmado_por = ?", s.IntentoID, s.FirmadoPor).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *SignatureRepo) ForAttempt(ctx context.Context, intentoID uuid.UUID) ([]models.Signature, error) {
	var sigs []models.Signature
	err := r.db.WithContext(ctx).
		Where("intento_id = ?", intentoID).
		Order("created_at").
		Find(&sigs).Error
	return sigs, err
}
