package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CaseEstado is the derived state of a case. Except for "cancelada" it is a
// pure function of the assignment snapshot; see CaseService.ComputeEstado.
type CaseEstado string

const (
	CasePendiente  CaseEstado = "pendiente"
	CaseAsignado   CaseEstado = "asignado"
	CaseEnProgreso CaseEstado = "en_progreso"
	CaseCompletada CaseEstado = "completada"
	CaseCancelada  CaseEstado = "cancelada"
)

func (e CaseEstado) Terminal() bool {
	return e == CaseCompletada || e == CaseCancelada
}

// AssignEstado is the state of one test assigned to a case.
type AssignEstado string

const (
	AssignPendiente    AssignEstado = "pendiente"
	AssignEnEvaluacion AssignEstado = "en_evaluacion"
	AssignEvaluado     AssignEstado = "evaluado"
	AssignInterrumpido AssignEstado = "interrumpido"
)

// Case is one unit of clinical work (tabla casos).
type Case struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PacienteID *uuid.UUID `gorm:"type:uuid;index" json:"paciente_id,omitempty"`
	AsignadoA  *uuid.UUID `gorm:"type:uuid;index" json:"asignado_a,omitempty"`
	Motivacion string     `json:"motivacion"`
	Estado     CaseEstado `gorm:"default:pendiente;index" json:"estado"`
	CreadoPor  *uuid.UUID `gorm:"type:uuid" json:"creado_por,omitempty"`
	CreadoEn   time.Time  `gorm:"autoCreateTime" json:"creado_en"`
	UpdatedAt  time.Time  `json:"-"`

	Pruebas []CaseTest `gorm:"foreignKey:CasoID" json:"pruebas,omitempty"`
}

func (Case) TableName() string { return "casos" }

func (c *Case) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CaseTest joins a case to one assigned test (tabla casos_pruebas). Orden is
// a dense 1-based sequence used for display only.
type CaseTest struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CasoID    uuid.UUID    `gorm:"type:uuid;uniqueIndex:ux_caso_prueba" json:"caso_id"`
	PruebaID  uuid.UUID    `gorm:"type:uuid;uniqueIndex:ux_caso_prueba" json:"prueba_id"`
	Orden     int          `json:"orden"`
	Estado    AssignEstado `gorm:"default:pendiente" json:"estado"`
	CreatedAt time.Time    `json:"-"`
	UpdatedAt time.Time    `json:"-"`
}

func (CaseTest) TableName() string { return "casos_pruebas" }

func (a *CaseTest) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
