package curriculum

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

type VersionRepo interface {
	Create(dbc dbctx.Context, row *types.CurriculumVersion) (*types.CurriculumVersion, error)
	GetActive(dbc dbctx.Context, subjectID uuid.UUID) (*types.CurriculumVersion, error)
	GetBySubject(dbc dbctx.Context, subjectID uuid.UUID) ([]*types.CurriculumVersion, error)
	GetByNumber(dbc dbctx.Context, subjectID uuid.UUID, number int) (*types.CurriculumVersion, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.VersionStatus) error
}

type versionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVersionRepo(db *gorm.DB, baseLog *logger.Logger) VersionRepo {
	return &versionRepo{db: db, log: baseLog.With("repo", "VersionRepo")}
}

func (r *versionRepo) Create(dbc dbctx.Context, row *types.CurriculumVersion) (*types.CurriculumVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.PublishedAt.IsZero() {
		row.PublishedAt = time.Now().UTC()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *versionRepo) GetActive(dbc dbctx.Context, subjectID uuid.UUID) (*types.CurriculumVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out types.CurriculumVersion
	err := t.WithContext(dbc.Ctx).
		Where("subject_id = ? AND status = ?", subjectID, types.VersionActive).
		Order("number DESC").
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *versionRepo) GetBySubject(dbc dbctx.Context, subjectID uuid.UUID) ([]*types.CurriculumVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.CurriculumVersion
	err := t.WithContext(dbc.Ctx).
		Where("subject_id = ?", subjectID).
		Order("number DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *versionRepo) GetByNumber(dbc dbctx.Context, subjectID uuid.UUID, number int) (*types.CurriculumVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out types.CurriculumVersion
	err := t.WithContext(dbc.Ctx).
		Where("subject_id = ? AND number = ?", subjectID, number).
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *versionRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status types.VersionStatus) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.CurriculumVersion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}
