package db

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/lumenlearn/curricula-backend/internal/domain"
)

// The schema must migrate on sqlite too, since DB_DRIVER=sqlite is the local
// run mode. Function-call column defaults would fail here.
func TestAutoMigrateAllSQLite(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open("file:automigrate?mode=memory&cache=shared"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, AutoMigrateAll(gdb))

	subject := &types.Subject{ID: uuid.New(), Code: "math", Title: "Mathematics", IsActive: true}
	require.NoError(t, gdb.Create(subject).Error)

	var got types.Subject
	require.NoError(t, gdb.Where("id = ?", subject.ID).First(&got).Error)
	assert.Equal(t, "math", got.Code)
	assert.False(t, got.CreatedAt.IsZero())
}
