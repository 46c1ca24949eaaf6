package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VersionStatus string

const (
	VersionActive     VersionStatus = "active"
	VersionSuperseded VersionStatus = "superseded"
	VersionRolledBack VersionStatus = "rolled_back"
)

// CurriculumVersion is an immutable, numbered snapshot marker of a subject's
// published state. Exactly one active version exists per subject; the publish
// and rollback transactions maintain that invariant.
type CurriculumVersion struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID uuid.UUID     `gorm:"type:uuid;not null;index:idx_version_subject_number,unique,priority:1" json:"subject_id"`
	Number    int           `gorm:"not null;index:idx_version_subject_number,unique,priority:2" json:"number"`
	Status    VersionStatus `gorm:"not null;default:'active';index" json:"status"`

	PublishedAt time.Time      `gorm:"not null" json:"published_at"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CurriculumVersion) TableName() string { return "curriculum_version" }
