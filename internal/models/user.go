package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Rol is the application role resolved for an authenticated principal.
// Every mutating operation in the core is gated on it.
type Rol string

const (
	RolAdministrador Rol = "administrador"
	RolEncargado     Rol = "encargado"
	RolOperador      Rol = "operador"
	RolSecretario    Rol = "secretario"
)

// CanManageCases reports whether the role may create, edit or delete cases.
func (r Rol) CanManageCases() bool {
	return r == RolAdministrador || r == RolEncargado
}

// CanGenerateProfile mirrors the original access rule: the secretary only
// views and exports; everyone else may trigger generation.
func (r Rol) CanGenerateProfile() bool {
	return r == RolAdministrador || r == RolEncargado || r == RolOperador
}

// User is a staff member (tabla app_users). Estado is the administrative
// availability of an operator, not a case state.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Nombre    string    `json:"nombre"`
	Email     string    `gorm:"uniqueIndex" json:"email"`
	Password  string    `json:"-"`
	Rol       Rol       `gorm:"index" json:"rol"`
	Estado    string    `gorm:"default:disponible" json:"estado"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (User) TableName() string { return "app_users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) SetPassword(plain string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// Patient is the minimal registry entry the core needs: the normative group
// drives scoring lookups, everything else is carried for reports.
type Patient struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Nombre          string     `json:"nombre"`
	Documento       string     `gorm:"index" json:"documento"`
	FechaNacimiento *time.Time `json:"fecha_nacimiento,omitempty"`
	Grupo           string     `gorm:"default:adulto" json:"grupo"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (Patient) TableName() string { return "pacientes" }

func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
