package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Curriculum hierarchy: subject -> unit -> skill -> subskill.
// These tables are owned by curriculum authoring; the graph subsystem reads
// them to resolve edge endpoints and never mutates them. IDs and timestamps
// are assigned application-side so the schema migrates on both Postgres and
// sqlite.

type Subject struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code     string    `gorm:"not null;uniqueIndex" json:"code"`
	Title    string    `gorm:"not null" json:"title"`
	IsActive bool      `gorm:"not null" json:"is_active"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Subject) TableName() string { return "subject" }

type Unit struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"subject_id"`
	Title     string    `gorm:"not null" json:"title"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	IsDraft   bool      `gorm:"not null;default:false" json:"is_draft"`
	IsActive  bool      `gorm:"not null" json:"is_active"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Unit) TableName() string { return "unit" }

type Skill struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UnitID      uuid.UUID `gorm:"type:uuid;not null;index" json:"unit_id"`
	Code        string    `gorm:"not null" json:"code"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description,omitempty"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	IsDraft     bool      `gorm:"not null;default:false" json:"is_draft"`
	IsActive    bool      `gorm:"not null" json:"is_active"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Skill) TableName() string { return "skill" }

type Subskill struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SkillID     uuid.UUID `gorm:"type:uuid;not null;index" json:"skill_id"`
	Code        string    `gorm:"not null" json:"code"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description,omitempty"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	IsDraft     bool      `gorm:"not null;default:false" json:"is_draft"`
	IsActive    bool      `gorm:"not null" json:"is_active"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Subskill) TableName() string { return "subskill" }
