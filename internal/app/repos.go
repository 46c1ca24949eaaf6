package app

import (
	"gorm.io/gorm"

	"github.com/lumenlearn/curricula-backend/internal/data/repos/curriculum"
	graphrepo "github.com/lumenlearn/curricula-backend/internal/data/repos/graph"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
)

type Repos struct {
	Subjects      curriculum.SubjectRepo
	Entities      curriculum.EntityResolver
	Versions      curriculum.VersionRepo
	Prerequisites graphrepo.PrerequisiteRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Subjects:      curriculum.NewSubjectRepo(db, log),
		Entities:      curriculum.NewEntityResolver(db, log),
		Versions:      curriculum.NewVersionRepo(db, log),
		Prerequisites: graphrepo.NewPrerequisiteRepo(db, log),
	}
}
