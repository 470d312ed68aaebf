package store

import (
	"context"

	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
)

// FilterStore defines the interface for filter set persistence
type FilterStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Filter set operations
	GetOrCreateDefault(ctx context.Context, userID, viewPath, namespace, entity string) (*models.FilterSet, bool, error)
	GetOrCreateTemporary(ctx context.Context, userID, namespace, entity string) (*models.FilterSet, error)
	GetDefault(ctx context.Context, userID, viewPath string) (*models.FilterSet, error)
	GetFilterSet(ctx context.Context, id uint, userID string) (*models.FilterSet, error)
	ListPresets(ctx context.Context, userID, namespace, entity string) ([]models.FilterSet, error)
	ListFilterSets(ctx context.Context, userID string) ([]models.FilterSet, error)
	ActivatePreset(ctx context.Context, presetID uint, userID, namespace, entity string) error
	SaveFilterSet(ctx context.Context, set *models.FilterSet) error
	DeleteFilterSet(ctx context.Context, id uint, userID string) error
	ClearFilterSet(ctx context.Context, id uint) error

	// Criterion operations
	CreateCriterion(ctx context.Context, criterion *models.Criterion) error
	UpsertCriterion(ctx context.Context, criterion *models.Criterion) error
	DeleteCriterion(ctx context.Context, id uint) error

	// Bundled criterion operations
	CreateBundled(ctx context.Context, bundled *models.BundledCriterion) error
	UpsertBundled(ctx context.Context, bundled *models.BundledCriterion) error
	DeleteBundled(ctx context.Context, id uint) error
}
