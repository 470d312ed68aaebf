// Package query applies compiled filter predicates to entity listings.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
	"github.com/boutdepapier/dynamicfilters/pkg/db/store"
	"github.com/boutdepapier/dynamicfilters/pkg/filter"
	"github.com/boutdepapier/dynamicfilters/pkg/log"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

// Executor runs entity listings against the host database.
type Executor struct {
	db       *gorm.DB
	dialect  string
	registry *schema.Registry
	bundled  *BundledRegistry
	logger   log.LoggerService
}

// ExecutorOptions configures an Executor. A nil Bundled registry disables
// bundled components.
type ExecutorOptions struct {
	Dialect string
	Bundled *BundledRegistry
	Logger  log.LoggerService
}

func NewExecutor(db *gorm.DB, registry *schema.Registry, opts ExecutorOptions) *Executor {
	if opts.Dialect == "" {
		opts.Dialect = store.DialectSQLite
	}
	if opts.Bundled == nil {
		opts.Bundled = NewBundledRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	return &Executor{
		db:       db,
		dialect:  opts.Dialect,
		registry: registry,
		bundled:  opts.Bundled,
		logger:   opts.Logger,
	}
}

// Bundled returns the bundled component registry of the executor.
func (e *Executor) Bundled() *BundledRegistry {
	return e.bundled
}

// Apply narrows tx with the compiled predicates of set. Inclusion predicates
// must apply. A failing exclusion step or bundled component is logged and
// skipped so the listing still renders.
func (e *Executor) Apply(ctx context.Context, tx *gorm.DB, entity *schema.EntityType, set *models.FilterSet, compiled filter.Result) (*gorm.DB, error) {
	include, err := e.expressions(tx, entity, compiled.Include)
	if err != nil {
		return nil, fmt.Errorf("failed to apply filters of '%s': %w", entity, err)
	}
	if len(include) > 0 {
		tx = tx.Where(clause.And(include...))
	}

	if len(compiled.Exclude) > 0 {
		exclude, err := e.expressions(tx, entity, compiled.Exclude)
		if err != nil {
			e.logger.Warn("Skipping exclusions of '%s': %v", entity, err)
		} else {
			tx = tx.Where(clause.Not(clause.And(exclude...)))
		}
	}

	if set != nil {
		for _, bundled := range set.Bundled {
			tx = e.applyBundled(ctx, tx, bundled, compiled)
		}
		tx = e.applyOrdering(tx, entity, set.OrderingFields())
	}

	return tx, nil
}

// expressions converts predicates in key order.
func (e *Executor) expressions(tx *gorm.DB, entity *schema.EntityType, predicates filter.Predicates) ([]clause.Expression, error) {
	keys := make([]string, 0, len(predicates))
	for key := range predicates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	expressions := make([]clause.Expression, 0, len(keys))
	for _, key := range keys {
		expr, err := e.expression(tx, entity, key, predicates[key])
		if err != nil {
			return nil, fmt.Errorf("predicate '%s': %w", key, err)
		}
		expressions = append(expressions, expr)
	}
	return expressions, nil
}

func (e *Executor) applyBundled(ctx context.Context, tx *gorm.DB, bundled models.BundledCriterion, compiled filter.Result) (result *gorm.DB) {
	result = tx

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Bundled filter '%s' panicked: %v", bundled.Identity(), r)
			result = tx
		}
	}()

	component, err := e.bundled.Resolve(bundled.ModuleName, bundled.ClassName)
	if err != nil {
		e.logger.Warn("Skipping bundled filter: %v", err)
		return tx
	}

	value, ok := compiled.Bundled[filter.BundledKey(bundled)]
	if !ok {
		value = bundled.Value
	}

	updated, err := component.Apply(ctx, tx, value)
	if err != nil {
		e.logger.Warn("Skipping bundled filter '%s': %v", bundled.Identity(), err)
		return tx
	}
	if updated == nil {
		return tx
	}
	return updated
}

// applyOrdering orders by the given fields; "-name" sorts descending.
// Fields not declared on the entity are ignored.
func (e *Executor) applyOrdering(tx *gorm.DB, entity *schema.EntityType, ordering []string) *gorm.DB {
	for _, name := range ordering {
		desc := strings.HasPrefix(name, "-")
		field, ok := entity.Field(strings.TrimPrefix(name, "-"))
		if !ok || field.Type == schema.FieldManyToMany {
			e.logger.Warn("Ignoring ordering '%s' of '%s'", name, entity)
			continue
		}
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: field.ColumnName()},
			Desc:   desc,
		})
	}
	return tx
}

// ListOptions pages a listing. A zero Limit returns every row.
type ListOptions struct {
	Limit  int
	Offset int
}

// List returns the rows of entity matching the compiled filter set.
func (e *Executor) List(ctx context.Context, entity *schema.EntityType, set *models.FilterSet, compiled filter.Result, opts ListOptions) ([]map[string]any, error) {
	tx, err := e.Apply(ctx, e.db.WithContext(ctx).Table(entity.TableName()), entity, set, compiled)
	if err != nil {
		return nil, err
	}
	if set == nil || len(set.OrderingFields()) == 0 {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: entity.PrimaryKey()}})
	}
	if opts.Limit > 0 {
		tx = tx.Limit(opts.Limit).Offset(opts.Offset)
	}

	var rows []map[string]any
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list '%s': %w", entity, err)
	}
	return rows, nil
}

// Count returns the number of rows of entity matching the compiled filter set.
func (e *Executor) Count(ctx context.Context, entity *schema.EntityType, set *models.FilterSet, compiled filter.Result) (int64, error) {
	tx, err := e.Apply(ctx, e.db.WithContext(ctx).Table(entity.TableName()), entity, set, compiled)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count '%s': %w", entity, err)
	}
	return count, nil
}

// RelatedChoices lists the related rows currently referenced by a relation
// field of entity, labelled by the display column of the related entity.
func (e *Executor) RelatedChoices(ctx context.Context, entity *schema.EntityType, field schema.Field) ([]schema.Choice, error) {
	related, err := e.registry.Related(entity, field)
	if err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)

	var referenced *gorm.DB
	switch field.Type {
	case schema.FieldForeignKey:
		column := clause.Column{Name: field.ColumnName()}
		referenced = db.Session(&gorm.Session{NewDB: true}).
			Table(entity.TableName()).
			Distinct(field.ColumnName()).
			Where(clause.Expr{SQL: "(? IS NOT NULL)", Vars: []any{column}})
	case schema.FieldManyToMany:
		through, err := throughOf(entity, field)
		if err != nil {
			return nil, err
		}
		referenced = db.Session(&gorm.Session{NewDB: true}).
			Table(through.Table).
			Distinct(through.TargetColumn)
	default:
		return nil, fmt.Errorf("field '%s' of '%s' is not a relation", field.Name, entity)
	}

	pk := clause.Column{Name: related.PrimaryKey()}
	display := clause.Column{Name: related.DisplayColumn()}

	var rows []map[string]any
	err = db.Table(related.TableName()).
		Select("? AS value, ? AS label", pk, display).
		Where(clause.Expr{SQL: "(? IN (?))", Vars: []any{pk, referenced}}).
		Order(clause.OrderByColumn{Column: display}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list choices of '%s': %w", field.Name, err)
	}

	choices := make([]schema.Choice, 0, len(rows))
	for _, row := range rows {
		choices = append(choices, schema.Choice{
			Value: cast.ToString(row["value"]),
			Label: cast.ToString(row["label"]),
		})
	}
	return choices, nil
}
