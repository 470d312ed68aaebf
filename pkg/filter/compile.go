package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/spf13/cast"

	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
	"github.com/boutdepapier/dynamicfilters/pkg/log"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

// DateLayout formats the dates emitted by relative date operators.
const DateLayout = "2006-01-02"

// LookupSeparator joins a field path and its lookup in predicate keys.
const LookupSeparator = schema.PathSeparator

// Predicates maps "<field path>__<lookup>" to a value.
type Predicates map[string]any

// Result is the compiled form of a filter set.
type Result struct {
	Include Predicates
	Exclude Predicates
	// Bundled maps the parameter name of each bundled criterion to its
	// stored value.
	Bundled map[string]string
	// Warnings lists criteria that were skipped because their field or
	// stored value no longer matches the schema.
	Warnings []string
}

// CompileOptions configures Compile. A zero Now uses the current time.
type CompileOptions struct {
	Now    time.Time
	Logger log.LoggerService
}

// Key builds a predicate key.
func Key(path, lookup string) string {
	return path + LookupSeparator + lookup
}

// Compile translates the criteria of set into inclusion, exclusion and
// bundled predicates. Criteria without operator, with an unknown field path
// or with undecodable values are left out.
func Compile(set *models.FilterSet, entity *schema.EntityType, registry *schema.Registry, opts CompileOptions) Result {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}

	result := Result{
		Include: Predicates{},
		Exclude: Predicates{},
		Bundled: map[string]string{},
	}
	today := now.With(opts.Now).BeginningOfDay()

	for i := range set.Criteria {
		criterion := &set.Criteria[i]

		op := Operator(strings.TrimSpace(criterion.Operator))
		if op == "" {
			continue
		}

		resolved, err := registry.ResolvePath(entity, criterion.Field)
		if err != nil {
			result.Warnings = append(result.Warnings, driftWarning(entity, criterion.Field))
			continue
		}
		if !IsLegal(resolved.Field, op) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Operator '%s' is not available for field '%s' and was skipped", op, criterion.Field))
			continue
		}

		values, err := criterion.DecodeValue()
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Stored value of field '%s' is malformed and was skipped", criterion.Field))
			continue
		}

		path := resolved.Path

		switch op {
		case OpBetween:
			if len(values) < 2 || isBlank(values[0]) || isBlank(values[1]) {
				continue
			}
			result.Include[Key(path, "gt")] = coerce(resolved.Field, values[0])
			result.Include[Key(path, "lte")] = coerce(resolved.Field, values[1])

		case OpDaysAgo:
			raw := firstValue(values)
			if isBlank(raw) {
				continue
			}
			days, err := parseDecimal(raw)
			if err != nil {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Days ago value '%s' of field '%s' is not a number and was skipped", raw, criterion.Field))
				continue
			}
			result.Include[Key(path, "date")] = today.AddDate(0, 0, -int(days)).Format(DateLayout)

		case OpToday:
			result.Include[Key(path, "date")] = today.Format(DateLayout)

		case OpThisYear:
			result.Include[Key(path, "year")] = today.Year()

		case OpThisWeek, OpThisMonth:
			opts.Logger.Debug("Operator '%s' of field '%s' has no predicate and is ignored", op, criterion.Field)

		case OpIsNull:
			isNull := true
			if raw := firstValue(values); !isBlank(raw) {
				if parsed, err := cast.ToBoolE(strings.TrimSpace(raw)); err == nil {
					isNull = parsed
				}
			}
			result.Include[Key(path, "isnull")] = isNull

		default:
			present := nonBlank(values)
			if len(present) == 0 {
				continue
			}

			target := result.Include
			if op.Negated() {
				target = result.Exclude
			}

			if len(present) > 1 {
				list := make([]any, 0, len(present))
				for _, v := range present {
					list = append(list, coerce(resolved.Field, v))
				}
				target[Key(path, "in")] = list
				continue
			}
			target[Key(path, op.Lookup())] = coerce(resolved.Field, present[0])
		}
	}

	for _, bundled := range set.Bundled {
		result.Bundled[BundledKey(bundled)] = bundled.Value
	}

	return result
}

// BundledKey returns the key of a bundled criterion in Result.Bundled.
func BundledKey(bundled models.BundledCriterion) string {
	if bundled.FieldName != "" {
		return bundled.FieldName
	}
	return bundled.Identity()
}

// Validate reports criteria whose field path no longer resolves against the
// entity type.
func Validate(set *models.FilterSet, entity *schema.EntityType, registry *schema.Registry) []string {
	var warnings []string
	for _, criterion := range set.Criteria {
		if _, err := registry.ResolvePath(entity, criterion.Field); err != nil {
			warnings = append(warnings, driftWarning(entity, criterion.Field))
		}
	}
	return warnings
}

func driftWarning(entity *schema.EntityType, field string) string {
	return fmt.Sprintf("Field '%s' no longer exists on %s and was skipped", field, entity.Name)
}

// coerce converts a stored string to the scalar type of field.
func coerce(field schema.Field, raw string) any {
	value := strings.TrimSpace(raw)
	switch {
	case field.Type == schema.FieldBoolean:
		if b, err := cast.ToBoolE(value); err == nil {
			return b
		}
	case field.Type == schema.FieldInteger, field.IsRelation():
		if n, err := parseDecimal(value); err == nil {
			return n
		}
	}
	return value
}

// parseDecimal reads a base-10 integer; leading zeros never switch the base.
func parseDecimal(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func nonBlank(values []string) []string {
	present := make([]string, 0, len(values))
	for _, v := range values {
		if !isBlank(v) {
			present = append(present, v)
		}
	}
	return present
}
