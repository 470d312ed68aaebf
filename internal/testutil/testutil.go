// Package testutil provides fixtures shared by package tests: a migrated
// SQLite filter store and the seeded scheduler demo.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boutdepapier/dynamicfilters/internal/scheduler"
	"github.com/boutdepapier/dynamicfilters/pkg/db/store"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

// Today is the fixed clock of the seeded scheduler rows.
var Today = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

// Clock returns Today.
func Clock() time.Time {
	return Today
}

// NewStore opens a migrated SQLite filter store in a temporary directory.
func NewStore(t testing.TB) *store.GormStore {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "filters.db"),
	})
	require.NoError(t, err)
	require.NoError(t, st.Connect(ctx))
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(ctx))
	return st
}

// NewRegistry returns a registry holding the scheduler entities.
func NewRegistry(t testing.TB) *schema.Registry {
	t.Helper()

	registry := schema.NewRegistry()
	require.NoError(t, scheduler.Register(registry))
	return registry
}

// Event returns the scheduler Event entity of registry.
func Event(t testing.TB, registry *schema.Registry) *schema.EntityType {
	t.Helper()

	entity, err := registry.Lookup(scheduler.Namespace, "Event")
	require.NoError(t, err)
	return entity
}

// NewSchedulerStore opens a filter store whose database also holds the
// seeded scheduler tables.
func NewSchedulerStore(t testing.TB) *store.GormStore {
	t.Helper()
	ctx := context.Background()

	st := NewStore(t)
	require.NoError(t, scheduler.Migrate(ctx, st.DB()))
	require.NoError(t, scheduler.Seed(ctx, st.DB(), Today))
	return st
}
