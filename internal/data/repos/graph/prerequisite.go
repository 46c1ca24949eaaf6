package graph

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/pkg/dbctx"
	pkgerrors "github.com/lumenlearn/curricula-backend/internal/pkg/errors"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
)

type PrerequisiteRepo interface {
	Create(dbc dbctx.Context, row *types.Prerequisite) (*types.Prerequisite, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Prerequisite, error)

	// GetVisible returns the visible edge set for a subject scope:
	// published only, or published plus drafts. Ordering is stable.
	GetVisible(dbc dbctx.Context, subjectID uuid.UUID, includeDrafts bool) ([]*types.Prerequisite, error)

	// GetByEntity returns edges touching one entity: incoming (entity is
	// unlocked) and outgoing (entity is the prerequisite).
	GetByEntity(dbc dbctx.Context, entityID uuid.UUID, includeDrafts bool) (incoming, outgoing []*types.Prerequisite, err error)

	// DeleteByID removes one edge; returns false when the id is absent.
	// Removal is physical, so the unique edge slot is immediately reusable.
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (bool, error)

	// PromoteDrafts flips a subject's draft edges to published under a new
	// version id. Publish calls this inside its transaction.
	PromoteDrafts(dbc dbctx.Context, subjectID, versionID uuid.UUID) (int, error)

	// DeleteByVersion removes every edge belonging to one version.
	// Rollback calls this inside its transaction.
	DeleteByVersion(dbc dbctx.Context, subjectID, versionID uuid.UUID) (int, error)
}

type prerequisiteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPrerequisiteRepo(db *gorm.DB, baseLog *logger.Logger) PrerequisiteRepo {
	return &prerequisiteRepo{db: db, log: baseLog.With("repo", "PrerequisiteRepo")}
}

func (r *prerequisiteRepo) Create(dbc dbctx.Context, row *types.Prerequisite) (*types.Prerequisite, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *prerequisiteRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Prerequisite, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out types.Prerequisite
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *prerequisiteRepo) GetVisible(dbc dbctx.Context, subjectID uuid.UUID, includeDrafts bool) ([]*types.Prerequisite, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Where("subject_id = ?", subjectID)
	if !includeDrafts {
		q = q.Where("is_draft = ?", false)
	}
	var out []*types.Prerequisite
	if err := q.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *prerequisiteRepo) GetByEntity(dbc dbctx.Context, entityID uuid.UUID, includeDrafts bool) ([]*types.Prerequisite, []*types.Prerequisite, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	base := t.WithContext(dbc.Ctx)
	if !includeDrafts {
		base = base.Where("is_draft = ?", false)
	}

	var incoming []*types.Prerequisite
	if err := base.Session(&gorm.Session{}).
		Where("unlocks_entity_id = ?", entityID).
		Order("created_at ASC, id ASC").
		Find(&incoming).Error; err != nil {
		return nil, nil, err
	}
	var outgoing []*types.Prerequisite
	if err := base.Session(&gorm.Session{}).
		Where("prereq_entity_id = ?", entityID).
		Order("created_at ASC, id ASC").
		Find(&outgoing).Error; err != nil {
		return nil, nil, err
	}
	return incoming, outgoing, nil
}

func (r *prerequisiteRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.Prerequisite{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *prerequisiteRepo) PromoteDrafts(dbc dbctx.Context, subjectID, versionID uuid.UUID) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.Prerequisite{}).
		Where("subject_id = ? AND is_draft = ?", subjectID, true).
		Updates(map[string]interface{}{
			"is_draft":   false,
			"version_id": versionID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *prerequisiteRepo) DeleteByVersion(dbc dbctx.Context, subjectID, versionID uuid.UUID) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).
		Where("subject_id = ? AND version_id = ?", subjectID, versionID).
		Delete(&types.Prerequisite{})
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}
