package db

import (
	"gorm.io/gorm"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Curriculum hierarchy
		// =========================
		&types.Subject{},
		&types.Unit{},
		&types.Skill{},
		&types.Subskill{},

		// =========================
		// Versioning + prerequisite graph
		// =========================
		&types.CurriculumVersion{},
		&types.Prerequisite{},
	)
}
