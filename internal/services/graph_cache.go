package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	redisclient "github.com/lumenlearn/curricula-backend/internal/clients/redis"
	"github.com/lumenlearn/curricula-backend/internal/data/repos/curriculum"
	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/pkg/dbctx"
	pkgerrors "github.com/lumenlearn/curricula-backend/internal/pkg/errors"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
	"github.com/lumenlearn/curricula-backend/internal/platform/apierr"
)

// GraphCacheService fronts the expensive graph rebuild with a read-through
// cache. Slot lifecycle: empty -> cached -> (invalidation) -> empty; staleness
// is only ever caused by deletion, a cached document is never edited in place.
type GraphCacheService interface {
	GetGraph(ctx context.Context, subjectID uuid.UUID, includeDrafts, forceRefresh bool) (*types.CachedGraph, error)
	Invalidate(ctx context.Context, subjectID uuid.UUID, vt *types.VersionType) (int, error)
	Regenerate(ctx context.Context, subjectID uuid.UUID, includeDrafts bool) (*types.CachedGraph, error)
	RegenerateAll(ctx context.Context, subjectID uuid.UUID) (map[types.VersionType]*types.CachedGraph, error)
	Status(ctx context.Context, subjectID uuid.UUID) (*types.CacheStatus, error)
	ListCachedSubjects(ctx context.Context) ([]types.CachedGraphSummary, error)
}

type graphCacheService struct {
	log      *logger.Logger
	store    redisclient.GraphCacheStore
	builder  PrerequisiteService
	versions curriculum.VersionRepo
	group    singleflight.Group
}

func NewGraphCacheService(
	baseLog *logger.Logger,
	store redisclient.GraphCacheStore,
	builder PrerequisiteService,
	versions curriculum.VersionRepo,
) GraphCacheService {
	return &graphCacheService{
		log:      baseLog.With("service", "GraphCacheService"),
		store:    store,
		builder:  builder,
		versions: versions,
	}
}

func (s *graphCacheService) GetGraph(ctx context.Context, subjectID uuid.UUID, includeDrafts, forceRefresh bool) (*types.CachedGraph, error) {
	if subjectID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "missing_subject", fmt.Errorf("subject id is required"))
	}
	vt := types.VersionTypeFor(includeDrafts)

	if !forceRefresh {
		doc, err := s.store.Get(ctx, subjectID, vt)
		if err != nil {
			// A cache outage must not surface to the caller; fall through to
			// a rebuild from source.
			s.log.Warn("cache read failed, rebuilding from source",
				"subject_id", subjectID, "version_type", vt, "error", err)
		} else if doc != nil {
			now := time.Now().UTC()
			if err := s.store.Touch(ctx, subjectID, vt, now); err != nil {
				s.log.Warn("cache touch failed", "subject_id", subjectID, "version_type", vt, "error", err)
			}
			doc.LastAccessed = now
			return doc, nil
		}
	}

	// Concurrent misses for the same slot collapse into one rebuild. A forced
	// refresh must not be coalesced into a rebuild that started before its
	// trigger, so it detaches the key first.
	key := fmt.Sprintf("%s:%s", subjectID, vt)
	if forceRefresh {
		s.group.Forget(key)
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.rebuild(ctx, subjectID, vt, includeDrafts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.CachedGraph), nil
}

func (s *graphCacheService) rebuild(ctx context.Context, subjectID uuid.UUID, vt types.VersionType, includeDrafts bool) (*types.CachedGraph, error) {
	graph, err := s.builder.BuildGraph(ctx, subjectID, includeDrafts)
	if err != nil {
		return nil, err
	}

	// The document's version id always comes from version control's active
	// pointer, never from "latest cached".
	versionID := uuid.Nil
	if active, err := s.versions.GetActive(dbctx.New(ctx), subjectID); err == nil {
		versionID = active.ID
	} else if !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &types.CachedGraph{
		Key:          types.CacheKey(subjectID, versionID, vt),
		SubjectID:    subjectID,
		VersionID:    versionID,
		VersionType:  vt,
		Graph:        *graph,
		Metadata:     graph.Describe(),
		GeneratedAt:  now,
		LastAccessed: now,
	}

	if err := s.store.Put(ctx, doc); err != nil {
		// The rebuild succeeded; an unpersisted cache write costs the next
		// caller a rebuild, nothing more.
		s.log.Warn("cache write failed after rebuild",
			"subject_id", subjectID, "version_type", vt, "error", err)
	}
	s.log.Info("graph rebuilt",
		"subject_id", subjectID,
		"version_type", vt,
		"nodes", doc.Metadata.NodeCount,
		"edges", doc.Metadata.EdgeCount,
	)
	return doc, nil
}

func (s *graphCacheService) Invalidate(ctx context.Context, subjectID uuid.UUID, vt *types.VersionType) (int, error) {
	if vt != nil && !vt.Valid() {
		return 0, apierr.New(http.StatusBadRequest, "invalid_version_type",
			fmt.Errorf("version_type must be %q or %q", types.VersionTypeDraft, types.VersionTypePublished))
	}
	deleted, err := s.store.Delete(ctx, subjectID, vt)
	if err != nil {
		return deleted, err
	}
	s.log.Info("cache invalidated", "subject_id", subjectID, "deleted", deleted)
	return deleted, nil
}

func (s *graphCacheService) Regenerate(ctx context.Context, subjectID uuid.UUID, includeDrafts bool) (*types.CachedGraph, error) {
	vt := types.VersionTypeFor(includeDrafts)
	if _, err := s.store.Delete(ctx, subjectID, &vt); err != nil {
		s.log.Warn("invalidation before regenerate failed", "subject_id", subjectID, "version_type", vt, "error", err)
	}
	return s.GetGraph(ctx, subjectID, includeDrafts, true)
}

func (s *graphCacheService) RegenerateAll(ctx context.Context, subjectID uuid.UUID) (map[types.VersionType]*types.CachedGraph, error) {
	if _, err := s.store.Delete(ctx, subjectID, nil); err != nil {
		s.log.Warn("invalidation before regenerate-all failed", "subject_id", subjectID, "error", err)
	}

	out := map[types.VersionType]*types.CachedGraph{}
	var firstErr error
	for _, scope := range []struct {
		vt     types.VersionType
		drafts bool
	}{
		{types.VersionTypePublished, false},
		{types.VersionTypeDraft, true},
	} {
		doc, err := s.GetGraph(ctx, subjectID, scope.drafts, true)
		if err != nil {
			s.log.Warn("regenerate-all slot failed", "subject_id", subjectID, "version_type", scope.vt, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[scope.vt] = doc
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (s *graphCacheService) Status(ctx context.Context, subjectID uuid.UUID) (*types.CacheStatus, error) {
	status := &types.CacheStatus{
		SubjectID: subjectID,
		Slots:     map[types.VersionType]types.CacheSlotStatus{},
	}
	for _, vt := range []types.VersionType{types.VersionTypePublished, types.VersionTypeDraft} {
		doc, err := s.store.Get(ctx, subjectID, vt)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			status.Slots[vt] = types.CacheSlotStatus{Cached: false}
			continue
		}
		md := doc.Metadata
		gen := doc.GeneratedAt
		acc := doc.LastAccessed
		vid := doc.VersionID
		status.Slots[vt] = types.CacheSlotStatus{
			Cached:       true,
			VersionID:    &vid,
			Metadata:     &md,
			GeneratedAt:  &gen,
			LastAccessed: &acc,
		}
	}
	return status, nil
}

func (s *graphCacheService) ListCachedSubjects(ctx context.Context) ([]types.CachedGraphSummary, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.CachedGraphSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Summary())
	}
	return out, nil
}
