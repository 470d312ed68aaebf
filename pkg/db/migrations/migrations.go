package migrations

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
)

// Migration represents a versioned schema change
type Migration struct {
	Version     int
	Description string
	Up          func(*gorm.DB) error
	Down        func(*gorm.DB) error
}

// appliedMigration tracks applied migrations
type appliedMigration struct {
	ID          uint   `gorm:"primaryKey"`
	Version     int    `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	AppliedAt   int64  `gorm:"autoCreateTime"`
}

func (appliedMigration) TableName() string {
	return "schema_migrations"
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
	AppliedAt   time.Time
}

// Migrator applies the filter set schema migrations
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: allMigrations(),
	}
}

func (m *Migrator) applied(ctx context.Context) (map[int]appliedMigration, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&appliedMigration{}); err != nil {
		return nil, fmt.Errorf("failed to create migration history table: %w", err)
	}

	var rows []appliedMigration
	if err := m.db.WithContext(ctx).Order("version").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", err)
	}

	applied := make(map[int]appliedMigration, len(rows))
	for _, row := range rows {
		applied[row.Version] = row
	}
	return applied, nil
}

// Migrate runs all pending migrations
func (m *Migrator) Migrate(ctx context.Context) error {
	_, err := m.MigrateCount(ctx)
	return err
}

// MigrateCount runs all pending migrations and returns how many were applied
func (m *Migrator) MigrateCount(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, migration := range m.migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&appliedMigration{
				Version:     migration.Version,
				Description: migration.Description,
			}).Error
		})
		if err != nil {
			return count, fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}
		count++
	}

	return count, nil
}

// Rollback reverts the most recently applied migration
func (m *Migrator) Rollback(ctx context.Context) (*Migration, error) {
	var last appliedMigration
	result := m.db.WithContext(ctx).Order("version DESC").Limit(1).Find(&last)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query migration history: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("no migrations to rollback")
	}

	for i := range m.migrations {
		migration := m.migrations[i]
		if migration.Version != last.Version {
			continue
		}

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := migration.Down(tx); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			return tx.Delete(&last).Error
		})
		if err != nil {
			return nil, err
		}
		return &migration, nil
	}

	return nil, fmt.Errorf("migration %d not found", last.Version)
}

// Status returns migration status
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, migration := range m.migrations {
		status := MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
		}
		if row, ok := applied[migration.Version]; ok {
			status.Applied = true
			status.AppliedAt = time.Unix(row.AppliedAt, 0).UTC()
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// allMigrations returns all migrations in order
func allMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create filter set tables",
			Up: func(db *gorm.DB) error {
				return db.AutoMigrate(
					&models.FilterSet{},
					&models.Criterion{},
					&models.BundledCriterion{},
				)
			},
			Down: func(db *gorm.DB) error {
				return db.Migrator().DropTable(
					&models.BundledCriterion{},
					&models.Criterion{},
					&models.FilterSet{},
				)
			},
		},
		{
			Version:     2,
			Description: "Index criteria by field path",
			Up: func(db *gorm.DB) error {
				return db.Exec("CREATE INDEX IF NOT EXISTS idx_criteria_field ON criteria (filter_set_id, field)").Error
			},
			Down: func(db *gorm.DB) error {
				return db.Exec("DROP INDEX IF EXISTS idx_criteria_field").Error
			},
		},
	}
}
