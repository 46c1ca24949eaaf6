package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenlearn/curricula-backend/internal/data/repos/curriculum"
	graphrepo "github.com/lumenlearn/curricula-backend/internal/data/repos/graph"
	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/pkg/dbctx"
	pkgerrors "github.com/lumenlearn/curricula-backend/internal/pkg/errors"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
	"github.com/lumenlearn/curricula-backend/internal/platform/apierr"
)

// PrerequisiteCandidate is a proposed edge before persistence.
type PrerequisiteCandidate struct {
	Prereq    types.EntityRef `json:"prerequisite"`
	Unlocks   types.EntityRef `json:"unlocks"`
	Threshold *float64        `json:"min_proficiency_threshold,omitempty"`
}

type PrerequisiteService interface {
	// Validate runs the dry-run edge check: self-loop, duplicate, cycle.
	// Returns (false, reason) for a rejected candidate; err only on backend
	// failure.
	Validate(ctx context.Context, cand PrerequisiteCandidate) (bool, string, error)

	// Create re-validates under a per-subject lock and persists the edge as a
	// draft scoped to the subject's active version.
	Create(ctx context.Context, cand PrerequisiteCandidate) (*types.Prerequisite, error)

	// Delete removes an edge by id. A missing id yields (nil, nil), not an
	// error.
	Delete(ctx context.Context, id uuid.UUID) (*types.Prerequisite, error)

	// BuildGraph performs a full rebuild of the enriched graph for one scope.
	// No caching happens here; every call hits the stores.
	BuildGraph(ctx context.Context, subjectID uuid.UUID, includeDrafts bool) (*types.Graph, error)

	// ListForEntity returns the edges into and out of one entity.
	ListForEntity(ctx context.Context, entityID uuid.UUID, includeDrafts bool) (incoming, outgoing []*types.Prerequisite, err error)

	// BaseSkills returns the published-scope entry points: graph nodes with
	// no incoming prerequisite edges.
	BaseSkills(ctx context.Context, subjectID uuid.UUID) ([]types.NodePayload, error)
}

type prerequisiteService struct {
	db       *gorm.DB
	log      *logger.Logger
	edges    graphrepo.PrerequisiteRepo
	entities curriculum.EntityResolver
	versions curriculum.VersionRepo

	mu          sync.Mutex
	subjectLock map[uuid.UUID]*sync.Mutex
}

func NewPrerequisiteService(
	db *gorm.DB,
	baseLog *logger.Logger,
	edges graphrepo.PrerequisiteRepo,
	entities curriculum.EntityResolver,
	versions curriculum.VersionRepo,
) PrerequisiteService {
	return &prerequisiteService{
		db:          db,
		log:         baseLog.With("service", "PrerequisiteService"),
		edges:       edges,
		entities:    entities,
		versions:    versions,
		subjectLock: map[uuid.UUID]*sync.Mutex{},
	}
}

// lockSubject serializes edge mutations per subject so validate-then-persist
// is atomic with respect to concurrent writers.
func (s *prerequisiteService) lockSubject(subjectID uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.subjectLock[subjectID]
	if !ok {
		l = &sync.Mutex{}
		s.subjectLock[subjectID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *prerequisiteService) withTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if s.db == nil {
		return fn(dbctx.New(ctx))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.WithTx(ctx, tx))
	})
}

func checkCandidateShape(cand PrerequisiteCandidate) error {
	if cand.Prereq.ID == uuid.Nil || cand.Unlocks.ID == uuid.Nil {
		return fmt.Errorf("prerequisite and unlocks entity ids are required")
	}
	if !cand.Prereq.Type.Valid() {
		return fmt.Errorf("invalid prerequisite entity type %q", cand.Prereq.Type)
	}
	if !cand.Unlocks.Type.Valid() {
		return fmt.Errorf("invalid unlocks entity type %q", cand.Unlocks.Type)
	}
	if cand.Threshold != nil && (*cand.Threshold < 0 || *cand.Threshold > 1) {
		return fmt.Errorf("min_proficiency_threshold %v outside [0, 1]", *cand.Threshold)
	}
	return nil
}

// rejectReason inspects the candidate against the visible edge set and
// returns a human-readable rejection, or "" when the edge is admissible.
// The visible set always includes drafts: a draft edge is promoted wholesale
// on publish, so it must stay acyclic against the published set too.
func rejectReason(cand PrerequisiteCandidate, visible []*types.Prerequisite) string {
	if cand.Prereq.ID == cand.Unlocks.ID {
		return "an entity cannot be a prerequisite of itself"
	}
	for _, e := range visible {
		if e.PrereqEntityID == cand.Prereq.ID && e.UnlocksEntityID == cand.Unlocks.ID {
			return "this prerequisite already exists"
		}
	}
	if pathExists(visible, cand.Unlocks.ID, cand.Prereq.ID) {
		return "adding this prerequisite would create a cycle"
	}
	return ""
}

// pathExists walks outgoing edges (prerequisite -> unlocks direction) from
// `from` and reports whether `to` is reachable. Iterative DFS; the per-subject
// edge count is small enough that no early-exit heuristics are needed.
func pathExists(edges []*types.Prerequisite, from, to uuid.UUID) bool {
	adj := make(map[uuid.UUID][]uuid.UUID, len(edges))
	for _, e := range edges {
		adj[e.PrereqEntityID] = append(adj[e.PrereqEntityID], e.UnlocksEntityID)
	}
	seen := map[uuid.UUID]bool{from: true}
	stack := []uuid.UUID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		for _, next := range adj[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

func (s *prerequisiteService) validateAgainstStore(dbc dbctx.Context, cand PrerequisiteCandidate, subjectID uuid.UUID) (string, error) {
	visible, err := s.edges.GetVisible(dbc, subjectID, true)
	if err != nil {
		return "", err
	}
	return rejectReason(cand, visible), nil
}

func (s *prerequisiteService) Validate(ctx context.Context, cand PrerequisiteCandidate) (bool, string, error) {
	if err := checkCandidateShape(cand); err != nil {
		return false, err.Error(), nil
	}
	dbc := dbctx.New(ctx)
	subjectID, err := s.entities.SubjectForRef(dbc, cand.Unlocks)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return false, "unlocks entity does not exist", nil
		}
		return false, "", err
	}
	reason, err := s.validateAgainstStore(dbc, cand, subjectID)
	if err != nil {
		return false, "", err
	}
	return reason == "", reason, nil
}

func (s *prerequisiteService) Create(ctx context.Context, cand PrerequisiteCandidate) (*types.Prerequisite, error) {
	if err := checkCandidateShape(cand); err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_prerequisite", err)
	}

	dbc := dbctx.New(ctx)
	unlocksSubject, err := s.entities.SubjectForRef(dbc, cand.Unlocks)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, apierr.New(http.StatusNotFound, "entity_not_found", fmt.Errorf("unlocks entity %s does not exist", cand.Unlocks.ID))
		}
		return nil, err
	}
	prereqSubject, err := s.entities.SubjectForRef(dbc, cand.Prereq)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, apierr.New(http.StatusNotFound, "entity_not_found", fmt.Errorf("prerequisite entity %s does not exist", cand.Prereq.ID))
		}
		return nil, err
	}
	if unlocksSubject != prereqSubject {
		return nil, apierr.New(http.StatusBadRequest, "cross_subject_edge",
			fmt.Errorf("prerequisite and unlocks entities belong to different subjects"))
	}

	threshold := types.DefaultProficiencyThreshold
	if cand.Threshold != nil {
		threshold = *cand.Threshold
	}

	unlock := s.lockSubject(unlocksSubject)
	defer unlock()

	var created *types.Prerequisite
	err = s.withTx(ctx, func(dbc dbctx.Context) error {
		// Re-validate inside the lock: another writer may have landed an edge
		// between the caller's dry-run and now.
		reason, err := s.validateAgainstStore(dbc, cand, unlocksSubject)
		if err != nil {
			return err
		}
		if reason != "" {
			return apierr.New(http.StatusBadRequest, "invalid_prerequisite", errors.New(reason))
		}

		active, err := ensureActiveVersion(dbc, s.versions, unlocksSubject)
		if err != nil {
			return err
		}

		row := &types.Prerequisite{
			SubjectID:               unlocksSubject,
			PrereqEntityID:          cand.Prereq.ID,
			PrereqEntityType:        cand.Prereq.Type,
			UnlocksEntityID:         cand.Unlocks.ID,
			UnlocksEntityType:       cand.Unlocks.Type,
			MinProficiencyThreshold: threshold,
			VersionID:               active.ID,
			IsDraft:                 true,
		}
		created, err = s.edges.Create(dbc, row)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("prerequisite created",
		"prerequisite_id", created.ID,
		"subject_id", created.SubjectID,
		"prereq", created.PrereqEntityID,
		"unlocks", created.UnlocksEntityID,
	)
	return created, nil
}

func (s *prerequisiteService) Delete(ctx context.Context, id uuid.UUID) (*types.Prerequisite, error) {
	dbc := dbctx.New(ctx)
	row, err := s.edges.GetByID(dbc, id)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	unlock := s.lockSubject(row.SubjectID)
	defer unlock()

	deleted, err := s.edges.DeleteByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, nil
	}
	s.log.Info("prerequisite deleted", "prerequisite_id", id, "subject_id", row.SubjectID)
	return row, nil
}

func (s *prerequisiteService) BuildGraph(ctx context.Context, subjectID uuid.UUID, includeDrafts bool) (*types.Graph, error) {
	if subjectID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "missing_subject", fmt.Errorf("subject id is required"))
	}
	dbc := dbctx.New(ctx)
	edges, err := s.edges.GetVisible(dbc, subjectID, includeDrafts)
	if err != nil {
		return nil, err
	}

	refs := make([]types.EntityRef, 0, len(edges)*2)
	seen := map[uuid.UUID]bool{}
	for _, e := range edges {
		for _, ref := range []types.EntityRef{e.Prereq(), e.Unlocks()} {
			if !seen[ref.ID] {
				seen[ref.ID] = true
				refs = append(refs, ref)
			}
		}
	}

	nodes, err := s.entities.ResolveRefs(dbc, refs)
	if err != nil {
		return nil, err
	}

	graph := &types.Graph{SubjectID: subjectID, Nodes: []types.NodePayload{}, Edges: []types.GraphEdge{}}
	inGraph := map[uuid.UUID]bool{}
	for _, e := range edges {
		if _, ok := nodes[e.PrereqEntityID]; !ok {
			// Stale edge referencing a removed entity: skip, never fail the
			// whole build over it.
			s.log.Warn("skipping dangling edge", "prerequisite_id", e.ID, "missing_entity", e.PrereqEntityID)
			continue
		}
		if _, ok := nodes[e.UnlocksEntityID]; !ok {
			s.log.Warn("skipping dangling edge", "prerequisite_id", e.ID, "missing_entity", e.UnlocksEntityID)
			continue
		}
		graph.Edges = append(graph.Edges, types.GraphEdge{
			Source:    e.PrereqEntityID,
			Target:    e.UnlocksEntityID,
			Threshold: e.MinProficiencyThreshold,
			IsDraft:   e.IsDraft,
		})
		inGraph[e.PrereqEntityID] = true
		inGraph[e.UnlocksEntityID] = true
	}
	for id := range inGraph {
		graph.Nodes = append(graph.Nodes, nodes[id].Payload())
	}

	// Deterministic output regardless of resolution order.
	sort.Slice(graph.Nodes, func(i, j int) bool {
		return graph.Nodes[i].ID.String() < graph.Nodes[j].ID.String()
	})
	sort.Slice(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].Source != graph.Edges[j].Source {
			return graph.Edges[i].Source.String() < graph.Edges[j].Source.String()
		}
		return graph.Edges[i].Target.String() < graph.Edges[j].Target.String()
	})
	return graph, nil
}

func (s *prerequisiteService) ListForEntity(ctx context.Context, entityID uuid.UUID, includeDrafts bool) ([]*types.Prerequisite, []*types.Prerequisite, error) {
	return s.edges.GetByEntity(dbctx.New(ctx), entityID, includeDrafts)
}

func (s *prerequisiteService) BaseSkills(ctx context.Context, subjectID uuid.UUID) ([]types.NodePayload, error) {
	graph, err := s.BuildGraph(ctx, subjectID, false)
	if err != nil {
		return nil, err
	}
	hasIncoming := map[uuid.UUID]bool{}
	for _, e := range graph.Edges {
		hasIncoming[e.Target] = true
	}
	out := []types.NodePayload{}
	for _, n := range graph.Nodes {
		if !hasIncoming[n.ID] {
			out = append(out, n)
		}
	}
	return out, nil
}
