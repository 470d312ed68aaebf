package migrations_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/boutdepapier/dynamicfilters/pkg/db/migrations"
	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrations.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestMigrator_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := migrations.NewMigrator(openDB(t))

	count, err := m.MigrateCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = m.MigrateCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		assert.True(t, s.Applied, "migration %d", s.Version)
	}
}

func TestMigrator_Rollback(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := migrations.NewMigrator(db)

	require.NoError(t, m.Migrate(ctx))
	assert.True(t, db.Migrator().HasTable(&models.FilterSet{}))

	rolled, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rolled.Version)

	rolled, err = m.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rolled.Version)
	assert.False(t, db.Migrator().HasTable(&models.FilterSet{}))

	_, err = m.Rollback(ctx)
	assert.Error(t, err)

	statuses, err := m.Status(ctx)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.False(t, s.Applied)
	}
}
