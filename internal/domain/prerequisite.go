package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EntityType string

const (
	EntitySkill    EntityType = "skill"
	EntitySubskill EntityType = "subskill"
)

func (t EntityType) Valid() bool {
	return t == EntitySkill || t == EntitySubskill
}

// EntityRef identifies one endpoint of a prerequisite edge.
type EntityRef struct {
	ID   uuid.UUID  `json:"id"`
	Type EntityType `json:"type"`
}

const DefaultProficiencyThreshold = 0.8

// Prerequisite is a directed edge: the prereq entity must be mastered at
// MinProficiencyThreshold before the unlocks entity becomes available.
// New edges always enter as drafts; publish promotes them. Edges are deleted
// physically (no soft delete) so the unique edge slot frees immediately.
type Prerequisite struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"subject_id"`

	PrereqEntityID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_prerequisite_edge,unique,priority:1" json:"prerequisite_entity_id"`
	PrereqEntityType  EntityType `gorm:"not null" json:"prerequisite_entity_type"`
	UnlocksEntityID   uuid.UUID  `gorm:"type:uuid;not null;index:idx_prerequisite_edge,unique,priority:2" json:"unlocks_entity_id"`
	UnlocksEntityType EntityType `gorm:"not null" json:"unlocks_entity_type"`

	MinProficiencyThreshold float64 `gorm:"not null" json:"min_proficiency_threshold"`

	VersionID uuid.UUID `gorm:"type:uuid;not null;index:idx_prerequisite_edge,unique,priority:3" json:"version_id"`
	IsDraft   bool      `gorm:"not null;index" json:"is_draft"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Prerequisite) TableName() string { return "prerequisite" }

// BeforeCreate enforces the threshold bounds at the model layer, so an
// out-of-range edge can never reach storage regardless of which code path
// writes it. A create hook, deliberately not a save hook: bulk updates
// (draft promotion) run against the empty model and must not trip it.
func (p *Prerequisite) BeforeCreate(_ *gorm.DB) error {
	if p.MinProficiencyThreshold < 0 || p.MinProficiencyThreshold > 1 {
		return fmt.Errorf("min_proficiency_threshold %v outside [0, 1]", p.MinProficiencyThreshold)
	}
	if !p.PrereqEntityType.Valid() {
		return fmt.Errorf("invalid prerequisite entity type %q", p.PrereqEntityType)
	}
	if !p.UnlocksEntityType.Valid() {
		return fmt.Errorf("invalid unlocks entity type %q", p.UnlocksEntityType)
	}
	return nil
}

// Prereq returns the "from" endpoint of the edge.
func (p *Prerequisite) Prereq() EntityRef {
	return EntityRef{ID: p.PrereqEntityID, Type: p.PrereqEntityType}
}

// Unlocks returns the "to" endpoint of the edge.
func (p *Prerequisite) Unlocks() EntityRef {
	return EntityRef{ID: p.UnlocksEntityID, Type: p.UnlocksEntityType}
}
