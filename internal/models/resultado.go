package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Score is one computed scale value (tabla puntajes). Upsert key is
// (intento, escala): a retake after an interruption produces a new attempt
// whose scores version independently instead of overwriting case history.
// PuntajeConv is nil when the normative table has no row for the raw value;
// that is expected for edge raws, not an error.
type Score struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	IntentoID        uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_puntaje" json:"intento_id"`
	Escala           string    `gorm:"uniqueIndex:ux_puntaje" json:"escala"`
	CasoID           uuid.UUID `gorm:"type:uuid;index" json:"caso_id"`
	PruebaID         uuid.UUID `gorm:"type:uuid" json:"prueba_id"`
	PuntajeBruto     int       `json:"puntaje_bruto"`
	PuntajeConv      *int      `json:"puntaje_conv"`
	NormativaVersion string    `json:"normativa_version"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}

func (Score) TableName() string { return "puntajes" }

func (s *Score) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Profile is an AI-generated clinical profile (tabla perfiles_caso).
// Insert-only and idempotent by existence on (caso, model_version); history
// across model versions is retained, "current" is latest by generated_at.
type Profile struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CasoID        uuid.UUID      `gorm:"type:uuid;uniqueIndex:ux_perfil" json:"caso_id"`
	ModelVersion  string         `gorm:"uniqueIndex:ux_perfil" json:"model_version"`
	IntentoID     *uuid.UUID     `gorm:"type:uuid" json:"intento_id,omitempty"`
	GeneratedBy   uuid.UUID      `gorm:"type:uuid" json:"generated_by"`
	PerfilClinico string         `json:"perfil_clinico"`
	Probabilidad  float64        `json:"probabilidad"`
	Summary       string         `json:"summary"`
	Insights      datatypes.JSON `json:"insights"`
	GeneratedAt   time.Time      `gorm:"autoCreateTime;index" json:"generated_at"`
}

func (Profile) TableName() string { return "perfiles_caso" }

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Signature is a stored sign-off artifact (tabla firmas_intento). At most
// one per (intento, firmado_por); a duplicate signing attempt is success.
type Signature struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	IntentoID  uuid.UUID  `gorm:"type:uuid;uniqueIndex:ux_firma" json:"intento_id"`
	FirmadoPor string     `gorm:"uniqueIndex:ux_firma" json:"firmado_por"`
	PacienteID *uuid.UUID `gorm:"type:uuid" json:"paciente_id,omitempty"`
	FirmaMime  string     `json:"firma_mime"`
	FirmaPath  *string    `json:"firma_path,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Signature) TableName() string { return "firmas_intento" }

func (s *Signature) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Signer roles accepted by the signature gate.
const (
	SignerPaciente = "paciente"
	SignerOperador = "operador"
)
