package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Test is a catalog entry for one psychological instrument (tabla pruebas).
// Escalas lists the scale codes the instrument produces, in report order.
type Test struct {
	ID        uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	Codigo    string                       `gorm:"uniqueIndex" json:"codigo"`
	Nombre    string                       `json:"nombre"`
	Slug      string                       `gorm:"index" json:"slug"`
	Escalas   datatypes.JSONSlice[string]  `json:"escalas"`
	Requerida bool                         `json:"requerida"`
	CreatedAt time.Time                    `json:"-"`
}

func (Test) TableName() string { return "pruebas" }

func (t *Test) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TestItem is one question of a test (tabla items_prueba). Opciones maps the
// option label to its raw value; Inverso marks reverse-keyed items whose raw
// value is mirrored against MaxRaw during scoring.
type TestItem struct {
	ID        uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	PruebaID  uuid.UUID          `gorm:"type:uuid;index" json:"prueba_id"`
	Orden     int                `json:"orden"`
	Enunciado string             `json:"enunciado"`
	Escala    string             `gorm:"index" json:"escala"`
	Tipo      string             `gorm:"default:opcion" json:"tipo"`
	Inverso   bool               `json:"inverso"`
	MaxRaw    int                `json:"max_raw"`
	Opciones  datatypes.JSONMap  `json:"opciones"`
}

func (TestItem) TableName() string { return "items_prueba" }

func (i *TestItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// NormEntry is one row of the normative conversion table (tabla normativas):
// (prueba, escala, grupo, puntaje_bruto) -> puntaje_convertido under Version.
// Read-only shared reference data; scoring never mutates it.
type NormEntry struct {
	ID                uint      `gorm:"primaryKey"`
	PruebaID          uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_normativas"`
	Escala            string    `gorm:"uniqueIndex:ux_normativas"`
	Grupo             string    `gorm:"uniqueIndex:ux_normativas"`
	PuntajeBruto      int       `gorm:"uniqueIndex:ux_normativas"`
	Version           string    `gorm:"uniqueIndex:ux_normativas"`
	PuntajeConvertido int
}

func (NormEntry) TableName() string { return "normativas" }
