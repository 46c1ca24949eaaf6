package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
)

// GraphCacheStore is the durable backing store for built curriculum graphs,
// one document per (subject, version type) slot.
type GraphCacheStore interface {
	// Get returns the cached document for a slot, or (nil, nil) on a miss.
	Get(ctx context.Context, subjectID uuid.UUID, vt types.VersionType) (*types.CachedGraph, error)

	// Put upserts a slot document. Last writer wins.
	Put(ctx context.Context, doc *types.CachedGraph) error

	// Touch updates the last-accessed timestamp of a slot, if present.
	Touch(ctx context.Context, subjectID uuid.UUID, vt types.VersionType, at time.Time) error

	// Delete removes one slot (or both when vt is nil) and reports how many
	// documents were actually removed.
	Delete(ctx context.Context, subjectID uuid.UUID, vt *types.VersionType) (int, error)

	// List returns every cached document across subjects.
	List(ctx context.Context) ([]*types.CachedGraph, error)

	Close() error
}

type Options struct {
	Addr      string
	KeyPrefix string
	TTL       time.Duration
}

type graphCacheStore struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewGraphCacheStore(log *logger.Logger, opts Options) (GraphCacheStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "graph"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &graphCacheStore{
		log:    log.With("service", "GraphCacheStore"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    opts.TTL,
	}, nil
}

func (s *graphCacheStore) slotKey(subjectID uuid.UUID, vt types.VersionType) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, subjectID, vt)
}

func (s *graphCacheStore) indexKey() string {
	return s.prefix + ":index"
}

func (s *graphCacheStore) Get(ctx context.Context, subjectID uuid.UUID, vt types.VersionType) (*types.CachedGraph, error) {
	raw, err := s.rdb.Get(ctx, s.slotKey(subjectID, vt)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var doc types.CachedGraph
	if err := json.Unmarshal(raw, &doc); err != nil {
		// A corrupt document is treated as a miss; the slot will be rebuilt.
		s.log.Warn("dropping unreadable cache document", "key", s.slotKey(subjectID, vt), "error", err)
		return nil, nil
	}
	return &doc, nil
}

func (s *graphCacheStore) Put(ctx context.Context, doc *types.CachedGraph) error {
	if doc == nil {
		return fmt.Errorf("nil cache document")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	key := s.slotKey(doc.SubjectID, doc.VersionType)
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key, raw, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), fmt.Sprintf("%s:%s", doc.SubjectID, doc.VersionType))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *graphCacheStore) Touch(ctx context.Context, subjectID uuid.UUID, vt types.VersionType, at time.Time) error {
	doc, err := s.Get(ctx, subjectID, vt)
	if err != nil || doc == nil {
		return err
	}
	doc.LastAccessed = at.UTC()
	return s.Put(ctx, doc)
}

func (s *graphCacheStore) Delete(ctx context.Context, subjectID uuid.UUID, vt *types.VersionType) (int, error) {
	vts := []types.VersionType{types.VersionTypePublished, types.VersionTypeDraft}
	if vt != nil {
		vts = []types.VersionType{*vt}
	}
	deleted := 0
	for _, v := range vts {
		n, err := s.rdb.Del(ctx, s.slotKey(subjectID, v)).Result()
		if err != nil {
			return deleted, err
		}
		if err := s.rdb.SRem(ctx, s.indexKey(), fmt.Sprintf("%s:%s", subjectID, v)).Err(); err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (s *graphCacheStore) List(ctx context.Context) ([]*types.CachedGraph, error) {
	members, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*types.CachedGraph, 0, len(members))
	for _, m := range members {
		parts := strings.SplitN(m, ":", 2)
		if len(parts) != 2 {
			continue
		}
		subjectID, err := uuid.Parse(parts[0])
		if err != nil {
			continue
		}
		vt := types.VersionType(parts[1])
		doc, err := s.Get(ctx, subjectID, vt)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			// Index entry outlived its document (TTL expiry); drop it.
			_ = s.rdb.SRem(ctx, s.indexKey(), m).Err()
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *graphCacheStore) Close() error {
	return s.rdb.Close()
}
