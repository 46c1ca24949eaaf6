package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
)

type cacheHarness struct {
	svc     GraphCacheService
	store   *fakeCacheStore
	builder *countingBuilder
	prereqs *prereqHarness
}

func newCacheHarness(t *testing.T) *cacheHarness {
	t.Helper()
	ph := newPrereqHarness(t)
	store := newFakeCacheStore()
	builder := &countingBuilder{PrerequisiteService: ph.svc}
	return &cacheHarness{
		svc:     NewGraphCacheService(testLogger(t), store, builder, ph.versions),
		store:   store,
		builder: builder,
		prereqs: ph,
	}
}

func (h *cacheHarness) seedEdges(t *testing.T, n int) {
	t.Helper()
	prev := h.prereqs.skill(t, "node")
	for i := 0; i < n; i++ {
		next := h.prereqs.skill(t, "node")
		h.prereqs.mustCreate(t, prev, next)
		prev = next
	}
}

func TestGetGraphMissRebuildsAndCaches(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 2)

	doc, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 1, h.builder.buildCount())
	assert.Equal(t, types.VersionTypeDraft, doc.VersionType)
	assert.Equal(t, 2, doc.Metadata.EdgeCount)
	assert.Equal(t, 3, doc.Metadata.NodeCount)
	assert.Equal(t, 1, h.store.puts)

	// Version id comes from the active version pointer.
	active, err := h.prereqs.versions.GetActive(dbcBackground(), h.prereqs.subject)
	require.NoError(t, err)
	assert.Equal(t, active.ID, doc.VersionID)
	assert.Equal(t, types.CacheKey(h.prereqs.subject, active.ID, types.VersionTypeDraft), doc.Key)
}

func TestGetGraphHitSuppressesRebuild(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 2)

	_, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	require.Equal(t, 1, h.builder.buildCount())

	for i := 0; i < 3; i++ {
		doc, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
		require.NoError(t, err)
		require.NotNil(t, doc)
	}
	assert.Equal(t, 1, h.builder.buildCount())
}

func TestGetGraphForceRefreshBypassesCache(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 1)

	_, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)

	_, err = h.svc.GetGraph(context.Background(), h.prereqs.subject, true, true)
	require.NoError(t, err)
	assert.Equal(t, 2, h.builder.buildCount())
}

func TestGetGraphSeparatesDraftAndPublishedSlots(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 2)

	draft, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	published, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, false, false)
	require.NoError(t, err)

	assert.Equal(t, 2, h.builder.buildCount())
	assert.Equal(t, 2, draft.Metadata.EdgeCount)
	assert.Equal(t, 0, published.Metadata.EdgeCount)
}

func TestInvalidateTargetsOneSlot(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 2)

	_, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	_, err = h.svc.GetGraph(context.Background(), h.prereqs.subject, false, false)
	require.NoError(t, err)
	require.Equal(t, 2, h.builder.buildCount())

	vt := types.VersionTypeDraft
	deleted, err := h.svc.Invalidate(context.Background(), h.prereqs.subject, &vt)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// Published slot is untouched, only the draft read rebuilds.
	_, err = h.svc.GetGraph(context.Background(), h.prereqs.subject, false, false)
	require.NoError(t, err)
	assert.Equal(t, 2, h.builder.buildCount())

	_, err = h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	assert.Equal(t, 3, h.builder.buildCount())
}

func TestInvalidateBothSlots(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 1)

	_, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	_, err = h.svc.GetGraph(context.Background(), h.prereqs.subject, false, false)
	require.NoError(t, err)

	deleted, err := h.svc.Invalidate(context.Background(), h.prereqs.subject, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestInvalidateRejectsUnknownVersionType(t *testing.T) {
	h := newCacheHarness(t)
	vt := types.VersionType("nightly")
	_, err := h.svc.Invalidate(context.Background(), h.prereqs.subject, &vt)
	require.Error(t, err)
}

func TestGetGraphReadErrorFallsBackToRebuild(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 1)

	h.store.getErr = errors.New("connection refused")
	doc, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 1, h.builder.buildCount())
}

func TestGetGraphWriteErrorStillReturnsGraph(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 1)

	h.store.putErr = errors.New("read-only replica")
	doc, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 1, doc.Metadata.EdgeCount)

	// Nothing landed in the cache, so the next read rebuilds again.
	h.store.putErr = nil
	_, err = h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	assert.Equal(t, 2, h.builder.buildCount())
}

func TestRegenerateAllRefreshesBothSlots(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 2)

	stale, err := h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	out, err := h.svc.RegenerateAll(context.Background(), h.prereqs.subject)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Contains(t, out, types.VersionTypeDraft)
	require.Contains(t, out, types.VersionTypePublished)
	assert.True(t, out[types.VersionTypeDraft].GeneratedAt.After(stale.GeneratedAt))
}

func TestStatusReportsBothSlots(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 2)

	status, err := h.svc.Status(context.Background(), h.prereqs.subject)
	require.NoError(t, err)
	assert.False(t, status.Slots[types.VersionTypeDraft].Cached)
	assert.False(t, status.Slots[types.VersionTypePublished].Cached)

	_, err = h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)

	status, err = h.svc.Status(context.Background(), h.prereqs.subject)
	require.NoError(t, err)
	draft := status.Slots[types.VersionTypeDraft]
	require.True(t, draft.Cached)
	require.NotNil(t, draft.Metadata)
	assert.Equal(t, 2, draft.Metadata.EdgeCount)
	assert.False(t, status.Slots[types.VersionTypePublished].Cached)
}

func TestListCachedSubjects(t *testing.T) {
	h := newCacheHarness(t)
	h.seedEdges(t, 1)

	out, err := h.svc.ListCachedSubjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = h.svc.GetGraph(context.Background(), h.prereqs.subject, true, false)
	require.NoError(t, err)

	out, err = h.svc.ListCachedSubjects(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, h.prereqs.subject, out[0].SubjectID)
}

// gatedBuilder blocks each rebuild until released, to pin down overlap
// between concurrent cache reads.
type gatedBuilder struct {
	PrerequisiteService
	mu      sync.Mutex
	builds  int
	started chan struct{}
	release chan struct{}
}

func (b *gatedBuilder) BuildGraph(ctx context.Context, subjectID uuid.UUID, includeDrafts bool) (*types.Graph, error) {
	b.mu.Lock()
	b.builds++
	b.mu.Unlock()
	b.started <- struct{}{}
	<-b.release
	return b.PrerequisiteService.BuildGraph(ctx, subjectID, includeDrafts)
}

func TestForceRefreshDoesNotJoinInFlightRebuild(t *testing.T) {
	ph := newPrereqHarness(t)
	store := newFakeCacheStore()
	builder := &gatedBuilder{
		PrerequisiteService: ph.svc,
		started:             make(chan struct{}, 2),
		release:             make(chan struct{}),
	}
	svc := NewGraphCacheService(testLogger(t), store, builder, ph.versions)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = svc.GetGraph(context.Background(), ph.subject, true, false)
	}()
	<-builder.started

	// The forced refresh arrives while the miss-triggered rebuild is still
	// running; it must start a rebuild of its own.
	go func() {
		defer wg.Done()
		_, _ = svc.GetGraph(context.Background(), ph.subject, true, true)
	}()
	select {
	case <-builder.started:
	case <-time.After(2 * time.Second):
		t.Fatal("forced refresh was coalesced into the in-flight rebuild")
	}

	close(builder.release)
	wg.Wait()

	builder.mu.Lock()
	defer builder.mu.Unlock()
	assert.Equal(t, 2, builder.builds)
}

func TestGetGraphRequiresSubject(t *testing.T) {
	h := newCacheHarness(t)
	_, err := h.svc.GetGraph(context.Background(), uuid.Nil, true, false)
	require.Error(t, err)
}
