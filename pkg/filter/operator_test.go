package filter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boutdepapier/dynamicfilters/pkg/filter"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

func operators(field schema.Field) []filter.Operator {
	var ops []filter.Operator
	for _, choice := range filter.LegalOperators(field) {
		ops = append(ops, choice.Operator)
	}
	return ops
}

func TestLegalOperators(t *testing.T) {
	tests := []struct {
		name  string
		field schema.Field
		want  []filter.Operator
	}{
		{
			name:  "integer with choices",
			field: schema.Field{Name: "status", Type: schema.FieldInteger, Choices: []schema.Choice{{Value: "0", Label: "New"}}},
			want:  []filter.Operator{filter.OpExact, filter.OpNot},
		},
		{
			name:  "integer",
			field: schema.Field{Name: "importance", Type: schema.FieldInteger},
			want: []filter.Operator{filter.OpExact, filter.OpNotExact, filter.OpGte, filter.OpGt,
				filter.OpLt, filter.OpLte, filter.OpBetween},
		},
		{
			name:  "char",
			field: schema.Field{Name: "name", Type: schema.FieldChar},
			want:  []filter.Operator{filter.OpContains, filter.OpNotContains, filter.OpStartsWith, filter.OpEndsWith},
		},
		{
			name:  "datetime",
			field: schema.Field{Name: "created", Type: schema.FieldDateTime},
			want: []filter.Operator{filter.OpExact, filter.OpGt, filter.OpLt, filter.OpBetween, filter.OpToday,
				filter.OpDaysAgo, filter.OpThisWeek, filter.OpThisMonth, filter.OpThisYear},
		},
		{
			name:  "boolean",
			field: schema.Field{Name: "active", Type: schema.FieldBoolean},
			want:  []filter.Operator{filter.OpExact},
		},
		{
			name:  "relation",
			field: schema.Field{Name: "user", Type: schema.FieldForeignKey},
			want:  []filter.Operator{filter.OpExact, filter.OpIsNull},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, operators(tt.field))
			assert.Equal(t, tt.want[0], filter.DefaultOperator(tt.field))
		})
	}

	assert.False(t, filter.IsLegal(schema.Field{Type: schema.FieldChar}, filter.OpExact))
	assert.True(t, filter.IsLegal(schema.Field{Type: schema.FieldDate}, filter.OpDaysAgo))
}

func TestOperator_Lookup(t *testing.T) {
	tests := []struct {
		op      filter.Operator
		negated bool
		lookup  string
	}{
		{filter.OpExact, false, "exact"},
		{filter.OpNot, true, "exact"},
		{filter.OpNotExact, true, "exact"},
		{filter.OpNotContains, true, "contains"},
		{filter.OpGte, false, "gte"},
		{filter.OpStartsWith, false, "startswith"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.negated, tt.op.Negated())
			assert.Equal(t, tt.lookup, tt.op.Lookup())
		})
	}
}

type stubChoices struct {
	calls   int
	choices []schema.Choice
}

func (s *stubChoices) RelatedChoices(ctx context.Context, entity *schema.EntityType, field schema.Field) ([]schema.Choice, error) {
	s.calls++
	return s.choices, nil
}

func TestChoicesAndWidgets(t *testing.T) {
	ctx := context.Background()
	entity := &schema.EntityType{Namespace: "scheduler", Name: "Event"}
	source := &stubChoices{choices: []schema.Choice{{Value: "1", Label: "alice"}}}

	status := schema.Field{Name: "status", Type: schema.FieldInteger, Choices: []schema.Choice{{Value: "0", Label: "New"}}}
	choices, err := filter.Choices(ctx, entity, status, source)
	require.NoError(t, err)
	assert.Equal(t, status.Choices, choices)
	assert.Equal(t, filter.WidgetSelect, filter.WidgetFor(status, choices, false))
	assert.Equal(t, filter.WidgetMultiSelect, filter.WidgetFor(status, choices, true))

	user := schema.Field{Name: "user", Type: schema.FieldForeignKey, Related: "auth.User"}
	choices, err = filter.Choices(ctx, entity, user, source)
	require.NoError(t, err)
	assert.Equal(t, source.choices, choices)
	assert.Equal(t, 1, source.calls)

	choices, err = filter.Choices(ctx, entity, user, nil)
	require.NoError(t, err)
	assert.Empty(t, choices)
	assert.Equal(t, filter.WidgetSelect, filter.WidgetFor(user, choices, false))

	active := schema.Field{Name: "active", Type: schema.FieldBoolean}
	choices, err = filter.Choices(ctx, entity, active, source)
	require.NoError(t, err)
	assert.Len(t, choices, 2)

	created := schema.Field{Name: "created", Type: schema.FieldDateTime}
	choices, err = filter.Choices(ctx, entity, created, source)
	require.NoError(t, err)
	assert.Nil(t, choices)
	assert.Equal(t, filter.WidgetDateTime, filter.WidgetFor(created, nil, false))
	assert.Equal(t, filter.WidgetDate, filter.WidgetFor(schema.Field{Type: schema.FieldDate}, nil, false))
	assert.Equal(t, filter.WidgetText, filter.WidgetFor(schema.Field{Type: schema.FieldChar}, nil, false))
}
