package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenlearn/curricula-backend/internal/data/repos/curriculum"
	graphrepo "github.com/lumenlearn/curricula-backend/internal/data/repos/graph"
	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/pkg/dbctx"
	pkgerrors "github.com/lumenlearn/curricula-backend/internal/pkg/errors"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
)

type VersionService interface {
	// Active resolves the subject's current active version, creating version 1
	// lazily for a subject that has never published.
	Active(ctx context.Context, subjectID uuid.UUID) (*types.CurriculumVersion, error)

	// List returns a subject's versions, newest first.
	List(ctx context.Context, subjectID uuid.UUID) ([]*types.CurriculumVersion, error)

	// Publish supersedes the active version, creates the next one, and
	// promotes the subject's draft edges into it. Cache regeneration runs
	// after commit and is best-effort.
	Publish(ctx context.Context, subjectID uuid.UUID) (*types.CurriculumVersion, error)

	// Rollback retires the active version, drops its edges, and reactivates
	// the previous version. Cache regeneration runs after commit and is
	// best-effort.
	Rollback(ctx context.Context, subjectID uuid.UUID) (*types.CurriculumVersion, error)
}

// ensureActiveVersion resolves the active version inside a transaction,
// creating version 1 when the subject has none yet. Shared with the
// prerequisite service, which scopes new draft edges to the active version.
func ensureActiveVersion(dbc dbctx.Context, repo curriculum.VersionRepo, subjectID uuid.UUID) (*types.CurriculumVersion, error) {
	active, err := repo.GetActive(dbc, subjectID)
	if err == nil {
		return active, nil
	}
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, err
	}
	return repo.Create(dbc, &types.CurriculumVersion{
		SubjectID: subjectID,
		Number:    1,
		Status:    types.VersionActive,
	})
}

type versionService struct {
	db       *gorm.DB
	log      *logger.Logger
	subjects curriculum.SubjectRepo
	versions curriculum.VersionRepo
	edges    graphrepo.PrerequisiteRepo
	cache    GraphCacheService
	locks    *prerequisiteService
}

func NewVersionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	subjects curriculum.SubjectRepo,
	versions curriculum.VersionRepo,
	edges graphrepo.PrerequisiteRepo,
	cache GraphCacheService,
	prereqs PrerequisiteService,
) VersionService {
	svc := &versionService{
		db:       db,
		log:      baseLog.With("service", "VersionService"),
		subjects: subjects,
		versions: versions,
		edges:    edges,
		cache:    cache,
	}
	// Publish/rollback move edges, so they contend on the same per-subject
	// lock as prerequisite creation.
	if ps, ok := prereqs.(*prerequisiteService); ok {
		svc.locks = ps
	}
	return svc
}

func (s *versionService) withTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if s.db == nil {
		return fn(dbctx.New(ctx))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.WithTx(ctx, tx))
	})
}

func (s *versionService) lockSubject(subjectID uuid.UUID) func() {
	if s.locks != nil {
		return s.locks.lockSubject(subjectID)
	}
	return func() {}
}

func (s *versionService) Active(ctx context.Context, subjectID uuid.UUID) (*types.CurriculumVersion, error) {
	var out *types.CurriculumVersion
	err := s.withTx(ctx, func(dbc dbctx.Context) error {
		var err error
		out, err = ensureActiveVersion(dbc, s.versions, subjectID)
		return err
	})
	return out, err
}

func (s *versionService) List(ctx context.Context, subjectID uuid.UUID) ([]*types.CurriculumVersion, error) {
	return s.versions.GetBySubject(dbctx.New(ctx), subjectID)
}

func (s *versionService) Publish(ctx context.Context, subjectID uuid.UUID) (*types.CurriculumVersion, error) {
	if _, err := s.subjects.GetByID(dbctx.New(ctx), subjectID); err != nil {
		return nil, err
	}

	unlock := s.lockSubject(subjectID)
	defer unlock()

	var next *types.CurriculumVersion
	err := s.withTx(ctx, func(dbc dbctx.Context) error {
		current, err := ensureActiveVersion(dbc, s.versions, subjectID)
		if err != nil {
			return err
		}
		if err := s.versions.UpdateStatus(dbc, current.ID, types.VersionSuperseded); err != nil {
			return err
		}
		// The next number comes from the max across every version, not from
		// the active one: after a rollback the active version sits below a
		// rolled-back row that still holds its number.
		all, err := s.versions.GetBySubject(dbc, subjectID)
		if err != nil {
			return err
		}
		nextNumber := current.Number + 1
		for _, v := range all {
			if v.Number >= nextNumber {
				nextNumber = v.Number + 1
			}
		}
		next, err = s.versions.Create(dbc, &types.CurriculumVersion{
			SubjectID: subjectID,
			Number:    nextNumber,
			Status:    types.VersionActive,
		})
		if err != nil {
			return err
		}
		promoted, err := s.edges.PromoteDrafts(dbc, subjectID, next.ID)
		if err != nil {
			return err
		}
		s.log.Info("published curriculum version",
			"subject_id", subjectID,
			"version", next.Number,
			"promoted_edges", promoted,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.regenerateCaches(ctx, subjectID, "publish")
	return next, nil
}

func (s *versionService) Rollback(ctx context.Context, subjectID uuid.UUID) (*types.CurriculumVersion, error) {
	if _, err := s.subjects.GetByID(dbctx.New(ctx), subjectID); err != nil {
		return nil, err
	}

	unlock := s.lockSubject(subjectID)
	defer unlock()

	var restored *types.CurriculumVersion
	err := s.withTx(ctx, func(dbc dbctx.Context) error {
		current, err := s.versions.GetActive(dbc, subjectID)
		if err != nil {
			return err
		}
		// The restore target is the newest superseded version below the
		// current one. Rolled-back rows keep their numbers, so walking by
		// number-1 could land on one of them.
		all, err := s.versions.GetBySubject(dbc, subjectID)
		if err != nil {
			return err
		}
		var previous *types.CurriculumVersion
		for _, v := range all {
			if v.Number < current.Number && v.Status == types.VersionSuperseded {
				previous = v
				break
			}
		}
		if previous == nil {
			return pkgerrors.ErrConflict
		}
		if err := s.versions.UpdateStatus(dbc, current.ID, types.VersionRolledBack); err != nil {
			return err
		}
		if err := s.versions.UpdateStatus(dbc, previous.ID, types.VersionActive); err != nil {
			return err
		}
		dropped, err := s.edges.DeleteByVersion(dbc, subjectID, current.ID)
		if err != nil {
			return err
		}
		restored = previous
		s.log.Info("rolled back curriculum version",
			"subject_id", subjectID,
			"from_version", current.Number,
			"to_version", previous.Number,
			"dropped_edges", dropped,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.regenerateCaches(ctx, subjectID, "rollback")
	return restored, nil
}

// regenerateCaches rebuilds both cache slots after a version event. The
// triggering operation already committed; a cold cache is acceptable, so
// failures are logged and swallowed.
func (s *versionService) regenerateCaches(ctx context.Context, subjectID uuid.UUID, trigger string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.RegenerateAll(ctx, subjectID); err != nil {
		s.log.Warn("cache regeneration failed after version event",
			"subject_id", subjectID,
			"trigger", trigger,
			"error", err,
		)
	}
}
