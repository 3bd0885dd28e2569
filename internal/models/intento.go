package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Attempt is one execution of a test for a case (tabla intentos_prueba).
// Rows are append-only: an attempt is never deleted, only finished or
// interrupted and then superseded by a new one. At most one active attempt
// (terminado_en IS NULL) may exist per (caso, prueba); the partial unique
// index ux_intentos_activos enforces it at the database.
type Attempt struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CasoID      uuid.UUID    `gorm:"type:uuid;index:idx_intentos_caso" json:"caso_id"`
	PruebaID    uuid.UUID    `gorm:"type:uuid;index:idx_intentos_caso" json:"prueba_id"`
	Estado      AssignEstado `gorm:"default:pendiente" json:"estado"`
	IniciadoEn  time.Time    `gorm:"autoCreateTime" json:"iniciado_en"`
	TerminadoEn *time.Time   `json:"terminado_en,omitempty"`
	DuracionSeg *int         `json:"duracion_seg,omitempty"`
	Completado  bool         `json:"completado"`
}

func (Attempt) TableName() string { return "intentos_prueba" }

func (a *Attempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Active reports whether this attempt is still the open one for its
// (caso, prueba) pair.
func (a *Attempt) Active() bool { return a.TerminadoEn == nil }

// Response is one captured answer (tabla respuestas). Valor carries the
// chosen option label and its raw value as stored by the test viewer.
// Uniqueness: one logical answer per (intento, item); later writes replace
// the value instead of inserting a duplicate row.
type Response struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	IntentoID uuid.UUID         `gorm:"type:uuid;uniqueIndex:ux_respuesta" json:"intento_id"`
	ItemID    uuid.UUID         `gorm:"type:uuid;uniqueIndex:ux_respuesta" json:"item_id"`
	CasoID    uuid.UUID         `gorm:"type:uuid;index" json:"caso_id"`
	PruebaID  uuid.UUID         `gorm:"type:uuid" json:"prueba_id"`
	UserID    *uuid.UUID        `gorm:"type:uuid" json:"user_id,omitempty"`
	Invertido bool              `json:"invertido"`
	Valor     datatypes.JSONMap `json:"valor"`
	CreatedAt time.Time         `json:"-"`
	UpdatedAt time.Time         `json:"respondido_en"`
}

func (Response) TableName() string { return "respuestas" }

func (r *Response) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RawValue extracts the numeric raw value from Valor, if present.
func (r *Response) RawValue() (float64, bool) {
	v, ok := r.Valor["raw"]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
