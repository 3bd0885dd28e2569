package repository

import (
	"context"

	"psyeval/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepo owns app_users and pacientes lookups.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AvailableOperators lists operators whose administrative estado allows a
// new case assignment.
func (r *UserRepo) AvailableOperators(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("rol = ? AND estado = ?", models.RolOperador, "disponible").
		Order("nombre").
		Find(&users).Error
	return users, err
}

func (r *UserRepo) PatientByID(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	var patient models.Patient
	err := r.db.WithContext(ctx).First(&patient, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *UserRepo) CreatePatient(ctx context.Context, p *models.Patient) error {
	return r.db.WithContext(ctx).Create(p).Error
}
