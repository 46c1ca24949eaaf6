package curriculum

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/pkg/dbctx"
	pkgerrors "github.com/lumenlearn/curricula-backend/internal/pkg/errors"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
)

type SubjectRepo interface {
	Create(dbc dbctx.Context, row *types.Subject) (*types.Subject, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Subject, error)
	List(dbc dbctx.Context) ([]*types.Subject, error)
}

type subjectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubjectRepo(db *gorm.DB, baseLog *logger.Logger) SubjectRepo {
	return &subjectRepo{db: db, log: baseLog.With("repo", "SubjectRepo")}
}

func (r *subjectRepo) Create(dbc dbctx.Context, row *types.Subject) (*types.Subject, error) {
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

func (r *subjectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Subject, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out types.Subject
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *subjectRepo) List(dbc dbctx.Context) ([]*types.Subject, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Subject
	if err := t.WithContext(dbc.Ctx).Order("code ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
