package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/lumenlearn/curricula-backend/internal/clients/redis"
	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/pkg/dbctx"
	pkgerrors "github.com/lumenlearn/curricula-backend/internal/pkg/errors"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
)

func dbcBackground() dbctx.Context {
	return dbctx.New(context.Background())
}

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("init logger: %v", err)
	}
	return log
}

// fakeEdgeRepo is an in-memory PrerequisiteRepo.
type fakeEdgeRepo struct {
	mu           sync.Mutex
	rows         map[uuid.UUID]*types.Prerequisite
	visibleCalls int
	failNext     error
}

func newFakeEdgeRepo() *fakeEdgeRepo {
	return &fakeEdgeRepo{rows: map[uuid.UUID]*types.Prerequisite{}}
}

func (r *fakeEdgeRepo) takeErr() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *fakeEdgeRepo) Create(_ dbctx.Context, row *types.Prerequisite) (*types.Prerequisite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	if err := row.BeforeCreate(nil); err != nil {
		return nil, err
	}
	// Same uniqueness the edge index enforces.
	for _, e := range r.rows {
		if e.PrereqEntityID == row.PrereqEntityID &&
			e.UnlocksEntityID == row.UnlocksEntityID &&
			e.VersionID == row.VersionID {
			return nil, pkgerrors.ErrConflict
		}
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	cp := *row
	r.rows[row.ID] = &cp
	return row, nil
}

func (r *fakeEdgeRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Prerequisite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeEdgeRepo) GetVisible(_ dbctx.Context, subjectID uuid.UUID, includeDrafts bool) ([]*types.Prerequisite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visibleCalls++
	if err := r.takeErr(); err != nil {
		return nil, err
	}
	var out []*types.Prerequisite
	for _, row := range r.rows {
		if row.SubjectID != subjectID {
			continue
		}
		if row.IsDraft && !includeDrafts {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *fakeEdgeRepo) GetByEntity(_ dbctx.Context, entityID uuid.UUID, includeDrafts bool) ([]*types.Prerequisite, []*types.Prerequisite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var incoming, outgoing []*types.Prerequisite
	for _, row := range r.rows {
		if row.IsDraft && !includeDrafts {
			continue
		}
		cp := *row
		if row.UnlocksEntityID == entityID {
			incoming = append(incoming, &cp)
		}
		if row.PrereqEntityID == entityID {
			outgoing = append(outgoing, &cp)
		}
	}
	return incoming, outgoing, nil
}

func (r *fakeEdgeRepo) DeleteByID(_ dbctx.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

func (r *fakeEdgeRepo) PromoteDrafts(_ dbctx.Context, subjectID, versionID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.SubjectID == subjectID && row.IsDraft {
			row.IsDraft = false
			row.VersionID = versionID
			n++
		}
	}
	return n, nil
}

func (r *fakeEdgeRepo) DeleteByVersion(_ dbctx.Context, subjectID, versionID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, row := range r.rows {
		if row.SubjectID == subjectID && row.VersionID == versionID {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

// fakeResolver is an in-memory EntityResolver.
type fakeResolver struct {
	nodes map[uuid.UUID]types.GraphNode
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{nodes: map[uuid.UUID]types.GraphNode{}}
}

func (r *fakeResolver) addSkill(subjectID uuid.UUID, title string) types.EntityRef {
	s := types.Skill{ID: uuid.New(), UnitID: uuid.New(), Code: title, Title: title, IsActive: true}
	r.nodes[s.ID] = types.SkillNode{Skill: s, SubjectID: subjectID}
	return types.EntityRef{ID: s.ID, Type: types.EntitySkill}
}

func (r *fakeResolver) addSubskill(subjectID uuid.UUID, title string) types.EntityRef {
	s := types.Subskill{ID: uuid.New(), SkillID: uuid.New(), Code: title, Title: title, IsActive: true}
	r.nodes[s.ID] = types.SubskillNode{Subskill: s, SubjectID: subjectID}
	return types.EntityRef{ID: s.ID, Type: types.EntitySubskill}
}

func (r *fakeResolver) ResolveRefs(_ dbctx.Context, refs []types.EntityRef) (map[uuid.UUID]types.GraphNode, error) {
	out := map[uuid.UUID]types.GraphNode{}
	for _, ref := range refs {
		if n, ok := r.nodes[ref.ID]; ok {
			out[ref.ID] = n
		}
	}
	return out, nil
}

func (r *fakeResolver) SubjectForRef(dbc dbctx.Context, ref types.EntityRef) (uuid.UUID, error) {
	n, ok := r.nodes[ref.ID]
	if !ok {
		return uuid.Nil, pkgerrors.ErrNotFound
	}
	return n.Payload().SubjectID, nil
}

// fakeVersionRepo is an in-memory VersionRepo.
type fakeVersionRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.CurriculumVersion
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{rows: map[uuid.UUID]*types.CurriculumVersion{}}
}

func (r *fakeVersionRepo) Create(_ dbctx.Context, row *types.CurriculumVersion) (*types.CurriculumVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Same uniqueness the (subject, number) index enforces.
	for _, v := range r.rows {
		if v.SubjectID == row.SubjectID && v.Number == row.Number {
			return nil, pkgerrors.ErrConflict
		}
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.PublishedAt.IsZero() {
		row.PublishedAt = time.Now().UTC()
	}
	cp := *row
	r.rows[row.ID] = &cp
	return row, nil
}

func (r *fakeVersionRepo) GetActive(_ dbctx.Context, subjectID uuid.UUID) (*types.CurriculumVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *types.CurriculumVersion
	for _, row := range r.rows {
		if row.SubjectID == subjectID && row.Status == types.VersionActive {
			if best == nil || row.Number > best.Number {
				best = row
			}
		}
	}
	if best == nil {
		return nil, pkgerrors.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *fakeVersionRepo) GetBySubject(_ dbctx.Context, subjectID uuid.UUID) ([]*types.CurriculumVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.CurriculumVersion
	for _, row := range r.rows {
		if row.SubjectID == subjectID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (r *fakeVersionRepo) GetByNumber(_ dbctx.Context, subjectID uuid.UUID, number int) (*types.CurriculumVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.SubjectID == subjectID && row.Number == number {
			cp := *row
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrNotFound
}

func (r *fakeVersionRepo) UpdateStatus(_ dbctx.Context, id uuid.UUID, status types.VersionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.Status = status
	}
	return nil
}

// fakeSubjectRepo backs the version service's existence check.
type fakeSubjectRepo struct {
	subjects map[uuid.UUID]*types.Subject
}

func newFakeSubjectRepo(ids ...uuid.UUID) *fakeSubjectRepo {
	r := &fakeSubjectRepo{subjects: map[uuid.UUID]*types.Subject{}}
	for _, id := range ids {
		r.subjects[id] = &types.Subject{ID: id, Code: id.String()[:8], Title: "subject", IsActive: true}
	}
	return r
}

func (r *fakeSubjectRepo) Create(_ dbctx.Context, row *types.Subject) (*types.Subject, error) {
	r.subjects[row.ID] = row
	return row, nil
}

func (r *fakeSubjectRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Subject, error) {
	s, ok := r.subjects[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	return s, nil
}

func (r *fakeSubjectRepo) List(_ dbctx.Context) ([]*types.Subject, error) {
	var out []*types.Subject
	for _, s := range r.subjects {
		out = append(out, s)
	}
	return out, nil
}

// fakeCacheStore is an in-memory GraphCacheStore.
type fakeCacheStore struct {
	mu      sync.Mutex
	docs    map[string]*types.CachedGraph
	getErr  error
	putErr  error
	puts    int
	deletes int
}

var _ redisclient.GraphCacheStore = (*fakeCacheStore)(nil)

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{docs: map[string]*types.CachedGraph{}}
}

func slotID(subjectID uuid.UUID, vt types.VersionType) string {
	return subjectID.String() + ":" + string(vt)
}

func (s *fakeCacheStore) Get(_ context.Context, subjectID uuid.UUID, vt types.VersionType) (*types.CachedGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	doc, ok := s.docs[slotID(subjectID, vt)]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (s *fakeCacheStore) Put(_ context.Context, doc *types.CachedGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	cp := *doc
	s.docs[slotID(doc.SubjectID, doc.VersionType)] = &cp
	return nil
}

func (s *fakeCacheStore) Touch(_ context.Context, subjectID uuid.UUID, vt types.VersionType, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[slotID(subjectID, vt)]; ok {
		doc.LastAccessed = at
	}
	return nil
}

func (s *fakeCacheStore) Delete(_ context.Context, subjectID uuid.UUID, vt *types.VersionType) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vts := []types.VersionType{types.VersionTypePublished, types.VersionTypeDraft}
	if vt != nil {
		vts = []types.VersionType{*vt}
	}
	n := 0
	for _, v := range vts {
		if _, ok := s.docs[slotID(subjectID, v)]; ok {
			delete(s.docs, slotID(subjectID, v))
			n++
		}
	}
	s.deletes += n
	return n, nil
}

func (s *fakeCacheStore) List(_ context.Context) ([]*types.CachedGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.CachedGraph
	for _, doc := range s.docs {
		cp := *doc
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeCacheStore) Close() error { return nil }

// countingBuilder wraps PrerequisiteService to count rebuilds.
type countingBuilder struct {
	PrerequisiteService
	mu     sync.Mutex
	builds int
}

func (b *countingBuilder) BuildGraph(ctx context.Context, subjectID uuid.UUID, includeDrafts bool) (*types.Graph, error) {
	b.mu.Lock()
	b.builds++
	b.mu.Unlock()
	return b.PrerequisiteService.BuildGraph(ctx, subjectID, includeDrafts)
}

func (b *countingBuilder) buildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds
}
