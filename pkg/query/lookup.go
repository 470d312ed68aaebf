package query

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/boutdepapier/dynamicfilters/pkg/db/store"
	ferrors "github.com/boutdepapier/dynamicfilters/pkg/errors"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

// Lookup is the suffix of a predicate key.
type Lookup string

const (
	LookupExact      Lookup = "exact"
	LookupIn         Lookup = "in"
	LookupGt         Lookup = "gt"
	LookupGte        Lookup = "gte"
	LookupLt         Lookup = "lt"
	LookupLte        Lookup = "lte"
	LookupContains   Lookup = "contains"
	LookupStartsWith Lookup = "startswith"
	LookupEndsWith   Lookup = "endswith"
	LookupIsNull     Lookup = "isnull"
	LookupDate       Lookup = "date"
	LookupYear       Lookup = "year"
)

func (l Lookup) valid() bool {
	switch l {
	case LookupExact, LookupIn, LookupGt, LookupGte, LookupLt, LookupLte,
		LookupContains, LookupStartsWith, LookupEndsWith, LookupIsNull,
		LookupDate, LookupYear:
		return true
	}
	return false
}

// SplitKey separates a predicate key into its field path and lookup. A key
// without a known lookup suffix is an exact match.
func SplitKey(key string) (string, Lookup) {
	i := strings.LastIndex(key, schema.PathSeparator)
	if i < 0 {
		return key, LookupExact
	}
	lookup := Lookup(key[i+len(schema.PathSeparator):])
	if !lookup.valid() {
		return key, LookupExact
	}
	return key[:i], lookup
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// columnExpression builds the condition of lookup against column.
func columnExpression(dialect string, column clause.Column, lookup Lookup, value any) (clause.Expression, error) {
	switch lookup {
	case LookupExact:
		if value == nil {
			return clause.Expr{SQL: "(? IS NULL)", Vars: []any{column}}, nil
		}
		return clause.Eq{Column: column, Value: value}, nil
	case LookupIn:
		values, err := toValues(value)
		if err != nil {
			return nil, err
		}
		return clause.IN{Column: column, Values: values}, nil
	case LookupGt:
		return clause.Gt{Column: column, Value: value}, nil
	case LookupGte:
		return clause.Gte{Column: column, Value: value}, nil
	case LookupLt:
		return clause.Lt{Column: column, Value: value}, nil
	case LookupLte:
		return clause.Lte{Column: column, Value: value}, nil
	case LookupContains:
		return likeExpression(column, "%"+likeEscaper.Replace(cast.ToString(value))+"%"), nil
	case LookupStartsWith:
		return likeExpression(column, likeEscaper.Replace(cast.ToString(value))+"%"), nil
	case LookupEndsWith:
		return likeExpression(column, "%"+likeEscaper.Replace(cast.ToString(value))), nil
	case LookupIsNull:
		isNull, err := cast.ToBoolE(value)
		if err != nil {
			return nil, fmt.Errorf("lookup 'isnull' requires a boolean: %w", err)
		}
		if isNull {
			return clause.Expr{SQL: "(? IS NULL)", Vars: []any{column}}, nil
		}
		return clause.Expr{SQL: "(? IS NOT NULL)", Vars: []any{column}}, nil
	case LookupDate:
		if dialect == store.DialectPostgres {
			return clause.Expr{SQL: "(CAST(? AS DATE) = CAST(? AS DATE))", Vars: []any{column, cast.ToString(value)}}, nil
		}
		return clause.Expr{SQL: "(substr(?, 1, 10) = ?)", Vars: []any{column, cast.ToString(value)}}, nil
	case LookupYear:
		year, err := cast.ToIntE(value)
		if err != nil {
			return nil, fmt.Errorf("lookup 'year' requires an integer: %w", err)
		}
		if dialect == store.DialectPostgres {
			return clause.Expr{SQL: "(EXTRACT(YEAR FROM ?) = ?)", Vars: []any{column, year}}, nil
		}
		return clause.Expr{SQL: "(CAST(substr(?, 1, 4) AS INTEGER) = ?)", Vars: []any{column, year}}, nil
	}
	return nil, fmt.Errorf("unsupported lookup '%s'", lookup)
}

func toValues(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		values := make([]any, len(v))
		for i := range v {
			values[i] = v[i]
		}
		return values, nil
	case []int64:
		values := make([]any, len(v))
		for i := range v {
			values[i] = v[i]
		}
		return values, nil
	}
	return nil, fmt.Errorf("lookup 'in' requires a list, got %T", value)
}

func likeExpression(column clause.Column, pattern string) clause.Expression {
	return clause.Expr{SQL: `(? LIKE ? ESCAPE '\')`, Vars: []any{column, pattern}}
}

// expression builds the condition of a single predicate on entity. Paths
// traversing a relation are expressed as subqueries against the related
// table.
func (e *Executor) expression(tx *gorm.DB, entity *schema.EntityType, key string, value any) (clause.Expression, error) {
	path, lookup := SplitKey(key)

	resolved, err := e.registry.ResolvePath(entity, path)
	if err != nil {
		return nil, err
	}

	// Direct field of the listed entity.
	if resolved.Relation == nil {
		field := resolved.Field
		if field.Type == schema.FieldManyToMany {
			return e.manyToManyExpression(tx, entity, field, lookup, value)
		}
		column := clause.Column{Table: clause.CurrentTable, Name: field.ColumnName()}
		return columnExpression(e.dialect, column, lookup, value)
	}

	// Field of a related entity.
	related := resolved.Owner
	inner, err := columnExpression(e.dialect, clause.Column{Name: resolved.Field.ColumnName()}, lookup, value)
	if err != nil {
		return nil, err
	}
	matching := e.subquery(tx).
		Table(related.TableName()).
		Select(related.PrimaryKey()).
		Where(inner)

	relation := *resolved.Relation
	switch relation.Type {
	case schema.FieldForeignKey:
		column := clause.Column{Table: clause.CurrentTable, Name: relation.ColumnName()}
		return clause.Expr{SQL: "(? IN (?))", Vars: []any{column, matching}}, nil
	case schema.FieldManyToMany:
		through, err := throughOf(entity, relation)
		if err != nil {
			return nil, err
		}
		linked := e.subquery(tx).
			Table(through.Table).
			Select(through.SourceColumn).
			Where(clause.Expr{SQL: "(? IN (?))", Vars: []any{clause.Column{Name: through.TargetColumn}, matching}})
		column := clause.Column{Table: clause.CurrentTable, Name: entity.PrimaryKey()}
		return clause.Expr{SQL: "(? IN (?))", Vars: []any{column, linked}}, nil
	}

	return nil, ferrors.ErrUnknownField(entity.String(), path)
}

// manyToManyExpression matches rows by the related ids stored in the join
// table of field.
func (e *Executor) manyToManyExpression(tx *gorm.DB, entity *schema.EntityType, field schema.Field, lookup Lookup, value any) (clause.Expression, error) {
	through, err := throughOf(entity, field)
	if err != nil {
		return nil, err
	}
	column := clause.Column{Table: clause.CurrentTable, Name: entity.PrimaryKey()}
	linked := e.subquery(tx).Table(through.Table).Select(through.SourceColumn)

	if lookup == LookupIsNull {
		isNull, err := cast.ToBoolE(value)
		if err != nil {
			return nil, fmt.Errorf("lookup 'isnull' requires a boolean: %w", err)
		}
		if isNull {
			return clause.Expr{SQL: "(? NOT IN (?))", Vars: []any{column, linked}}, nil
		}
		return clause.Expr{SQL: "(? IN (?))", Vars: []any{column, linked}}, nil
	}

	inner, err := columnExpression(e.dialect, clause.Column{Name: through.TargetColumn}, lookup, value)
	if err != nil {
		return nil, err
	}
	return clause.Expr{SQL: "(? IN (?))", Vars: []any{column, linked.Where(inner)}}, nil
}

func throughOf(entity *schema.EntityType, field schema.Field) (*schema.Through, error) {
	if field.Through == nil || field.Through.Table == "" {
		return nil, fmt.Errorf("many-to-many field '%s' of '%s' declares no join table", field.Name, entity)
	}
	return field.Through, nil
}

func (e *Executor) subquery(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true})
}
