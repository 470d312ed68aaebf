package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
	ferrors "github.com/boutdepapier/dynamicfilters/pkg/errors"
)

func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Criteria", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Bundled", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

func (s *GormStore) load(ctx context.Context, id uint) (*models.FilterSet, error) {
	var set models.FilterSet
	if err := withChildren(s.db.WithContext(ctx)).First(&set, id).Error; err != nil {
		return nil, err
	}
	return &set, nil
}

// Filter set operations

// GetOrCreateDefault returns the default filter set of (user, view path),
// creating an empty one on first access. The boolean reports creation.
//
// The lookup and the insert share one transaction; on SQLite the single
// writer connection serializes concurrent callers, on PostgreSQL two first
// accesses racing on separate connections may both insert.
func (s *GormStore) GetOrCreateDefault(ctx context.Context, userID, viewPath, namespace, entity string) (*models.FilterSet, bool, error) {
	var set models.FilterSet
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("user_id = ? AND view_path = ? AND namespace = ? AND entity_name = ? AND is_default = ?",
				userID, viewPath, namespace, entity, true).
			Order("id").
			Limit(1).
			Find(&set)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		set = models.FilterSet{
			UserID:     userID,
			ViewPath:   viewPath,
			Namespace:  namespace,
			EntityName: entity,
			IsDefault:  true,
		}
		created = true
		return tx.Create(&set).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create default filter set: %w", err)
	}

	loaded, err := s.load(ctx, set.ID)
	if err != nil {
		return nil, false, err
	}
	return loaded, created, nil
}

// GetOrCreateTemporary returns the scratch filter set used to compose a new
// preset.
func (s *GormStore) GetOrCreateTemporary(ctx context.Context, userID, namespace, entity string) (*models.FilterSet, error) {
	var set models.FilterSet

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("user_id = ? AND namespace = ? AND entity_name = ? AND is_default = ? AND name = ?",
				userID, namespace, entity, false, models.TemporaryName).
			Order("id").
			Limit(1).
			Find(&set)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		set = models.FilterSet{
			UserID:     userID,
			Namespace:  namespace,
			EntityName: entity,
		}
		set.SetName(models.TemporaryName)
		return tx.Create(&set).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get or create temporary filter set: %w", err)
	}

	return s.load(ctx, set.ID)
}

func (s *GormStore) GetDefault(ctx context.Context, userID, viewPath string) (*models.FilterSet, error) {
	var set models.FilterSet
	result := withChildren(s.db.WithContext(ctx)).
		Where("user_id = ? AND view_path = ? AND is_default = ?", userID, viewPath, true).
		Order("id").
		Limit(1).
		Find(&set)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ferrors.ErrNotFound("no default filter set for %s", viewPath)
	}
	return &set, nil
}

// GetFilterSet returns the filter set id owned by userID. An empty userID
// skips the ownership check.
func (s *GormStore) GetFilterSet(ctx context.Context, id uint, userID string) (*models.FilterSet, error) {
	query := withChildren(s.db.WithContext(ctx)).Where("id = ?", id)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var set models.FilterSet
	result := query.Limit(1).Find(&set)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ferrors.ErrNotFound("filter set %d not found", id)
	}
	return &set, nil
}

// ListPresets returns the non-default, non-temporary filter sets of the user
// for an entity type.
func (s *GormStore) ListPresets(ctx context.Context, userID, namespace, entity string) ([]models.FilterSet, error) {
	var sets []models.FilterSet
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND namespace = ? AND entity_name = ? AND is_default = ?", userID, namespace, entity, false).
		Where("(name IS NULL OR name <> ?)", models.TemporaryName).
		Order("id").
		Find(&sets).Error
	return sets, err
}

// ListFilterSets returns every filter set of the user, or of all users when
// userID is empty.
func (s *GormStore) ListFilterSets(ctx context.Context, userID string) ([]models.FilterSet, error) {
	query := withChildren(s.db.WithContext(ctx)).Order("id")
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var sets []models.FilterSet
	err := query.Find(&sets).Error
	return sets, err
}

// ActivatePreset makes presetID the only default filter set of the user for
// the entity type.
func (s *GormStore) ActivatePreset(ctx context.Context, presetID uint, userID, namespace, entity string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var preset models.FilterSet
		result := tx.
			Where("id = ? AND user_id = ? AND namespace = ? AND entity_name = ?", presetID, userID, namespace, entity).
			Limit(1).
			Find(&preset)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 || preset.IsTemporary() {
			return ferrors.ErrNotFound("filter set %d not found", presetID)
		}

		if err := tx.Model(&models.FilterSet{}).
			Where("user_id = ? AND namespace = ? AND entity_name = ?", userID, namespace, entity).
			UpdateColumn("is_default", false).Error; err != nil {
			return fmt.Errorf("failed to reset default filter set: %w", err)
		}

		return tx.Model(&models.FilterSet{}).
			Where("id = ?", presetID).
			UpdateColumn("is_default", true).Error
	})
}

// SaveFilterSet updates the columns of the filter set, leaving criteria
// untouched.
func (s *GormStore) SaveFilterSet(ctx context.Context, set *models.FilterSet) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(set).Error
}

// DeleteFilterSet deletes the filter set owned by userID together with its
// criteria and bundled criteria.
func (s *GormStore) DeleteFilterSet(ctx context.Context, id uint, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&models.FilterSet{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ferrors.ErrNotFound("filter set %d not found", id)
		}

		if err := deleteChildren(tx, id); err != nil {
			return err
		}
		return tx.Delete(&models.FilterSet{}, id).Error
	})
}

// ClearFilterSet removes every criterion and bundled criterion of the filter
// set.
func (s *GormStore) ClearFilterSet(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteChildren(tx, id)
	})
}

func deleteChildren(tx *gorm.DB, id uint) error {
	if err := tx.Where("filter_set_id = ?", id).Delete(&models.Criterion{}).Error; err != nil {
		return fmt.Errorf("failed to delete criteria: %w", err)
	}
	if err := tx.Where("filter_set_id = ?", id).Delete(&models.BundledCriterion{}).Error; err != nil {
		return fmt.Errorf("failed to delete bundled criteria: %w", err)
	}
	return nil
}

// Criterion operations

func (s *GormStore) CreateCriterion(ctx context.Context, criterion *models.Criterion) error {
	return s.db.WithContext(ctx).Create(criterion).Error
}

func (s *GormStore) UpsertCriterion(ctx context.Context, criterion *models.Criterion) error {
	return s.db.WithContext(ctx).Save(criterion).Error
}

func (s *GormStore) DeleteCriterion(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Criterion{}, id).Error
}

// Bundled criterion operations

func (s *GormStore) CreateBundled(ctx context.Context, bundled *models.BundledCriterion) error {
	return s.db.WithContext(ctx).Create(bundled).Error
}

func (s *GormStore) UpsertBundled(ctx context.Context, bundled *models.BundledCriterion) error {
	return s.db.WithContext(ctx).Save(bundled).Error
}

func (s *GormStore) DeleteBundled(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.BundledCriterion{}, id).Error
}
