// Package filter turns stored filter sets into query predicates and editable
// form schemas.
package filter

import (
	"context"
	"strings"

	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

// Operator is a stored comparison operator token.
type Operator string

const (
	OpExact       Operator = "exact"
	OpNot         Operator = "not"
	OpNotExact    Operator = "_not"
	OpGte         Operator = "gte"
	OpGt          Operator = "gt"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpBetween     Operator = "between"
	OpContains    Operator = "contains"
	OpNotContains Operator = "_notcontains"
	OpStartsWith  Operator = "startswith"
	OpEndsWith    Operator = "endswith"
	OpToday       Operator = "today"
	OpDaysAgo     Operator = "days_ago"
	OpThisWeek    Operator = "this_week"
	OpThisMonth   Operator = "this_month"
	OpThisYear    Operator = "this_year"
	OpIsNull      Operator = "isnull"
)

// OperatorChoice is an operator with its display label.
type OperatorChoice struct {
	Operator Operator `json:"value"`
	Label    string   `json:"label"`
}

var (
	choiceOperators = []OperatorChoice{
		{OpExact, "is"},
		{OpNot, "is not"},
	}

	integerOperators = []OperatorChoice{
		{OpExact, "is"},
		{OpNotExact, "is not"},
		{OpGte, ">="},
		{OpGt, ">"},
		{OpLt, "<"},
		{OpLte, "<="},
		{OpBetween, "between"},
	}

	charOperators = []OperatorChoice{
		{OpContains, "contains"},
		{OpNotContains, "doesn't contain"},
		{OpStartsWith, "starts with"},
		{OpEndsWith, "ends with"},
	}

	dateOperators = []OperatorChoice{
		{OpExact, "equal"},
		{OpGt, "later than"},
		{OpLt, "before than"},
		{OpBetween, "between"},
		{OpToday, "today"},
		{OpDaysAgo, "days ago"},
		{OpThisWeek, "this week"},
		{OpThisMonth, "this month"},
		{OpThisYear, "this year"},
	}

	booleanOperators = []OperatorChoice{
		{OpExact, "is"},
	}

	relationOperators = []OperatorChoice{
		{OpExact, "is"},
		{OpIsNull, "is null"},
	}

	booleanChoices = []schema.Choice{
		{Value: "true", Label: "True"},
		{Value: "false", Label: "False"},
	}
)

// Negated reports whether the operator restricts by exclusion.
func (o Operator) Negated() bool {
	return o == OpNot || strings.HasPrefix(string(o), "_not")
}

// Lookup returns the predicate suffix of the operator with any negation
// stripped.
func (o Operator) Lookup() string {
	lookup := string(o)
	switch {
	case strings.HasPrefix(lookup, "_not"):
		lookup = strings.TrimPrefix(lookup, "_not")
	case o == OpNot:
		lookup = ""
	}
	if lookup == "" {
		return string(OpExact)
	}
	return lookup
}

// LegalOperators returns the ordered operators available for field.
func LegalOperators(field schema.Field) []OperatorChoice {
	if field.HasChoices() && (field.Type == schema.FieldInteger || field.IsText()) {
		return choiceOperators
	}

	switch field.Type {
	case schema.FieldInteger:
		return integerOperators
	case schema.FieldChar, schema.FieldText:
		return charOperators
	case schema.FieldDate, schema.FieldDateTime:
		return dateOperators
	case schema.FieldBoolean:
		return booleanOperators
	case schema.FieldForeignKey, schema.FieldManyToMany:
		return relationOperators
	}
	return nil
}

func IsLegal(field schema.Field, op Operator) bool {
	for _, choice := range LegalOperators(field) {
		if choice.Operator == op {
			return true
		}
	}
	return false
}

// DefaultOperator returns the first legal operator of field.
func DefaultOperator(field schema.Field) Operator {
	operators := LegalOperators(field)
	if len(operators) == 0 {
		return OpExact
	}
	return operators[0].Operator
}

// ChoiceSource lists the related rows currently referenced by a relation
// field.
type ChoiceSource interface {
	RelatedChoices(ctx context.Context, entity *schema.EntityType, field schema.Field) ([]schema.Choice, error)
}

// Choices returns the selectable values of field: declared choices, the
// referenced related rows for relations, true/false for booleans, nil for
// free input.
func Choices(ctx context.Context, entity *schema.EntityType, field schema.Field, source ChoiceSource) ([]schema.Choice, error) {
	switch {
	case field.HasChoices() && (field.Type == schema.FieldInteger || field.IsText()):
		return field.Choices, nil
	case field.IsRelation():
		if source == nil {
			return []schema.Choice{}, nil
		}
		return source.RelatedChoices(ctx, entity, field)
	case field.Type == schema.FieldBoolean:
		return booleanChoices, nil
	}
	return nil, nil
}

// Widget selects the input used to edit a value.
type Widget string

const (
	WidgetText        Widget = "text"
	WidgetSelect      Widget = "select"
	WidgetMultiSelect Widget = "multiselect"
	WidgetDate        Widget = "date"
	WidgetDateTime    Widget = "datetime"
)

// WidgetFor returns the value widget of field.
func WidgetFor(field schema.Field, choices []schema.Choice, multiple bool) Widget {
	switch {
	case choices != nil:
		if multiple {
			return WidgetMultiSelect
		}
		return WidgetSelect
	case field.Type == schema.FieldDate:
		return WidgetDate
	case field.Type == schema.FieldDateTime:
		return WidgetDateTime
	}
	return WidgetText
}

// hasRange reports whether field takes start/end inputs.
func hasRange(field schema.Field) bool {
	if field.HasChoices() {
		return false
	}
	return field.Type == schema.FieldInteger || field.IsDate()
}
