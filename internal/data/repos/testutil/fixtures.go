package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
)

func SeedSubject(tb testing.TB, ctx context.Context, tx *gorm.DB, code string) *types.Subject {
	tb.Helper()
	s := &types.Subject{
		ID:       uuid.New(),
		Code:     code,
		Title:    "Subject " + code,
		IsActive: true,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed subject: %v", err)
	}
	return s
}

func SeedUnit(tb testing.TB, ctx context.Context, tx *gorm.DB, subjectID uuid.UUID, position int) *types.Unit {
	tb.Helper()
	u := &types.Unit{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Title:     fmt.Sprintf("Unit %d", position),
		Position:  position,
		IsActive:  true,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed unit: %v", err)
	}
	return u
}

func SeedSkill(tb testing.TB, ctx context.Context, tx *gorm.DB, unitID uuid.UUID, code string) *types.Skill {
	tb.Helper()
	s := &types.Skill{
		ID:       uuid.New(),
		UnitID:   unitID,
		Code:     code,
		Title:    "Skill " + code,
		IsActive: true,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed skill: %v", err)
	}
	return s
}

func SeedSubskill(tb testing.TB, ctx context.Context, tx *gorm.DB, skillID uuid.UUID, code string) *types.Subskill {
	tb.Helper()
	s := &types.Subskill{
		ID:       uuid.New(),
		SkillID:  skillID,
		Code:     code,
		Title:    "Subskill " + code,
		IsActive: true,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed subskill: %v", err)
	}
	return s
}

func SeedVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, subjectID uuid.UUID, number int, status types.VersionStatus) *types.CurriculumVersion {
	tb.Helper()
	v := &types.CurriculumVersion{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Number:    number,
		Status:    status,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed version: %v", err)
	}
	return v
}

func SeedPrerequisite(tb testing.TB, ctx context.Context, tx *gorm.DB, subjectID, versionID uuid.UUID, from, to types.EntityRef, draft bool) *types.Prerequisite {
	tb.Helper()
	p := &types.Prerequisite{
		ID:                      uuid.New(),
		SubjectID:               subjectID,
		PrereqEntityID:          from.ID,
		PrereqEntityType:        from.Type,
		UnlocksEntityID:         to.ID,
		UnlocksEntityType:       to.Type,
		MinProficiencyThreshold: types.DefaultProficiencyThreshold,
		VersionID:               versionID,
		IsDraft:                 draft,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed prerequisite: %v", err)
	}
	return p
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }
