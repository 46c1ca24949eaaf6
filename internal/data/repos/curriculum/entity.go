package curriculum

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
	"github.com/lumenlearn/curricula-backend/internal/pkg/dbctx"
	pkgerrors "github.com/lumenlearn/curricula-backend/internal/pkg/errors"
	"github.com/lumenlearn/curricula-backend/internal/pkg/logger"
)

// EntityResolver is the read-only view over the curriculum hierarchy used by
// the graph subsystem: edge endpoints in, graph nodes (with subject and
// display metadata) out.
type EntityResolver interface {
	// ResolveRefs resolves a batch of endpoints to graph nodes. Refs that do
	// not resolve are simply absent from the result; the caller decides how
	// to treat dangling edges.
	ResolveRefs(dbc dbctx.Context, refs []types.EntityRef) (map[uuid.UUID]types.GraphNode, error)

	// SubjectForRef resolves the owning subject of one entity.
	// Returns pkgerrors.ErrNotFound when the entity does not exist.
	SubjectForRef(dbc dbctx.Context, ref types.EntityRef) (uuid.UUID, error)
}

type entityResolver struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntityResolver(db *gorm.DB, baseLog *logger.Logger) EntityResolver {
	return &entityResolver{db: db, log: baseLog.With("repo", "EntityResolver")}
}

type skillRow struct {
	types.Skill
	SubjectID uuid.UUID
}

type subskillRow struct {
	types.Subskill
	SubjectID uuid.UUID
}

func (r *entityResolver) ResolveRefs(dbc dbctx.Context, refs []types.EntityRef) (map[uuid.UUID]types.GraphNode, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := make(map[uuid.UUID]types.GraphNode, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	var skillIDs, subskillIDs []uuid.UUID
	for _, ref := range refs {
		switch ref.Type {
		case types.EntitySkill:
			skillIDs = append(skillIDs, ref.ID)
		case types.EntitySubskill:
			subskillIDs = append(subskillIDs, ref.ID)
		}
	}

	if len(skillIDs) > 0 {
		var rows []skillRow
		err := t.WithContext(dbc.Ctx).
			Table("skill").
			Select("skill.*, unit.subject_id AS subject_id").
			Joins("JOIN unit ON unit.id = skill.unit_id AND unit.deleted_at IS NULL").
			Where("skill.id IN ? AND skill.deleted_at IS NULL", skillIDs).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[row.Skill.ID] = types.SkillNode{Skill: row.Skill, SubjectID: row.SubjectID}
		}
	}

	if len(subskillIDs) > 0 {
		var rows []subskillRow
		err := t.WithContext(dbc.Ctx).
			Table("subskill").
			Select("subskill.*, unit.subject_id AS subject_id").
			Joins("JOIN skill ON skill.id = subskill.skill_id AND skill.deleted_at IS NULL").
			Joins("JOIN unit ON unit.id = skill.unit_id AND unit.deleted_at IS NULL").
			Where("subskill.id IN ? AND subskill.deleted_at IS NULL", subskillIDs).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[row.Subskill.ID] = types.SubskillNode{Subskill: row.Subskill, SubjectID: row.SubjectID}
		}
	}

	return out, nil
}

func (r *entityResolver) SubjectForRef(dbc dbctx.Context, ref types.EntityRef) (uuid.UUID, error) {
	nodes, err := r.ResolveRefs(dbc, []types.EntityRef{ref})
	if err != nil {
		return uuid.Nil, err
	}
	node, ok := nodes[ref.ID]
	if !ok {
		return uuid.Nil, pkgerrors.ErrNotFound
	}
	return node.Payload().SubjectID, nil
}
