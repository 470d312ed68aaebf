package query_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boutdepapier/dynamicfilters/internal/scheduler"
	"github.com/boutdepapier/dynamicfilters/internal/testutil"
	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
	ferrors "github.com/boutdepapier/dynamicfilters/pkg/errors"
	"github.com/boutdepapier/dynamicfilters/pkg/filter"
	"github.com/boutdepapier/dynamicfilters/pkg/log"
	"github.com/boutdepapier/dynamicfilters/pkg/query"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

type panicking struct{}

func (panicking) ParameterName() string    { return "boom" }
func (panicking) Title() string            { return "Boom" }
func (panicking) Lookups() []schema.Choice { return nil }
func (panicking) Apply(ctx context.Context, tx *gorm.DB, value string) (*gorm.DB, error) {
	panic("component failure")
}

type fixture struct {
	executor *query.Executor
	registry *schema.Registry
	event    *schema.EntityType
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := testutil.NewSchedulerStore(t)
	registry := testutil.NewRegistry(t)

	bundled := query.NewBundledRegistry()
	require.NoError(t, scheduler.RegisterBundled(bundled, testutil.Clock))
	require.NoError(t, bundled.Register("tests", "Panicking", panicking{}))

	logs := &bytes.Buffer{}
	executor := query.NewExecutor(st.DB(), registry, query.ExecutorOptions{
		Dialect: st.Dialect(),
		Bundled: bundled,
		Logger:  log.NewWriterLogger("query", "debug", logs),
	})

	return &fixture{
		executor: executor,
		registry: registry,
		event:    testutil.Event(t, registry),
		logs:     logs,
	}
}

func (f *fixture) names(t *testing.T, set *models.FilterSet, compiled filter.Result) []string {
	t.Helper()

	rows, err := f.executor.List(context.Background(), f.event, set, compiled, query.ListOptions{})
	require.NoError(t, err)

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row["name"].(string))
	}

	count, err := f.executor.Count(context.Background(), f.event, set, compiled)
	require.NoError(t, err)
	assert.Equal(t, int64(len(names)), count)
	return names
}

func TestExecutor_Predicates(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		include filter.Predicates
		exclude filter.Predicates
		want    []string
	}{
		{
			name: "no predicates",
			want: []string{"Kickoff", "Conference trip", "Retrospective", "Archived draft"},
		},
		{
			name:    "exact",
			include: filter.Predicates{"status__exact": int64(1)},
			want:    []string{"Conference trip"},
		},
		{
			name:    "in",
			include: filter.Predicates{"status__in": []any{int64(1), int64(2)}},
			want:    []string{"Kickoff", "Conference trip"},
		},
		{
			name:    "exclude",
			exclude: filter.Predicates{"status__exact": int64(2)},
			want:    []string{"Conference trip", "Retrospective", "Archived draft"},
		},
		{
			name:    "include and exclude",
			include: filter.Predicates{"active__exact": true},
			exclude: filter.Predicates{"name__contains": "trip"},
			want:    []string{"Kickoff", "Retrospective"},
		},
		{
			name:    "boolean false",
			include: filter.Predicates{"active__exact": false},
			want:    []string{"Archived draft"},
		},
		{
			name:    "days ago",
			include: filter.Predicates{"created__date": "2024-06-08"},
			want:    []string{"Conference trip"},
		},
		{
			name:    "year",
			include: filter.Predicates{"created__year": 2023},
			want:    []string{"Archived draft"},
		},
		{
			name:    "range",
			include: filter.Predicates{"start__gt": "2024-06-01", "start__lte": "2024-06-15"},
			want:    []string{"Kickoff", "Conference trip"},
		},
		{
			name:    "starts with escapes wildcards",
			include: filter.Predicates{"name__startswith": "Con%"},
			want:    []string{},
		},
		{
			name:    "foreign key",
			include: filter.Predicates{"user__exact": int64(2)},
			want:    []string{"Conference trip"},
		},
		{
			name:    "foreign key is null",
			include: filter.Predicates{"user__isnull": true},
			want:    []string{"Archived draft"},
		},
		{
			name:    "field across foreign key",
			include: filter.Predicates{"user__username__contains": "ali"},
			want:    []string{"Kickoff", "Retrospective"},
		},
		{
			name:    "many to many",
			include: filter.Predicates{"category__exact": int64(2)},
			want:    []string{"Conference trip"},
		},
		{
			name:    "many to many is null",
			include: filter.Predicates{"category__isnull": true},
			want:    []string{"Archived draft"},
		},
		{
			name:    "field across many to many",
			include: filter.Predicates{"category__name__exact": "Meetings"},
			want:    []string{"Kickoff", "Conference trip", "Retrospective"},
		},
		{
			name:    "excluded relation",
			exclude: filter.Predicates{"category__name__exact": "Travel"},
			want:    []string{"Kickoff", "Retrospective", "Archived draft"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled := filter.Result{Include: tt.include, Exclude: tt.exclude}
			assert.Equal(t, tt.want, f.names(t, nil, compiled))
		})
	}
}

func TestExecutor_CompiledSet(t *testing.T) {
	f := newFixture(t)

	set := &models.FilterSet{
		Criteria: []models.Criterion{
			{Field: "created", Operator: "days_ago", Value: "7"},
			{Field: "name", Operator: "_notcontains", Value: "draft"},
		},
	}
	compiled := filter.Compile(set, f.event, f.registry, filter.CompileOptions{Now: testutil.Today})

	assert.Equal(t, []string{"Conference trip"}, f.names(t, set, compiled))
}

func TestExecutor_UnknownIncludeFails(t *testing.T) {
	f := newFixture(t)

	compiled := filter.Result{Include: filter.Predicates{"legacy_field__exact": "x"}}
	_, err := f.executor.List(context.Background(), f.event, nil, compiled, query.ListOptions{})
	require.Error(t, err)
	assert.True(t, ferrors.IsUnknownField(err))
}

func TestExecutor_FailingExclusionIsSkipped(t *testing.T) {
	f := newFixture(t)

	compiled := filter.Result{
		Include: filter.Predicates{"active__exact": true},
		Exclude: filter.Predicates{
			"status__exact":       int64(2),
			"legacy_field__exact": "x",
		},
	}

	assert.Equal(t, []string{"Kickoff", "Conference trip", "Retrospective"}, f.names(t, nil, compiled))
	assert.Contains(t, f.logs.String(), "Skipping exclusions")
}

func TestExecutor_Bundled(t *testing.T) {
	f := newFixture(t)

	period := models.BundledCriterion{ModuleName: scheduler.BundledModule, ClassName: scheduler.PeriodFilterClass, FieldName: "period"}

	tests := []struct {
		value string
		want  []string
	}{
		{value: "", want: []string{"Kickoff", "Conference trip", "Retrospective", "Archived draft"}},
		{value: scheduler.PeriodUpcoming, want: []string{"Retrospective"}},
		{value: scheduler.PeriodRunning, want: []string{"Conference trip"}},
		{value: scheduler.PeriodPast, want: []string{"Kickoff"}},
		{value: "someday", want: []string{"Kickoff", "Conference trip", "Retrospective", "Archived draft"}},
	}

	for _, tt := range tests {
		t.Run("period "+tt.value, func(t *testing.T) {
			set := &models.FilterSet{Bundled: []models.BundledCriterion{period}}
			compiled := filter.Compile(set, f.event, f.registry, filter.CompileOptions{Now: testutil.Today})
			compiled.Bundled["period"] = tt.value

			assert.Equal(t, tt.want, f.names(t, set, compiled))
		})
	}

	t.Run("stored value is used without compiled entry", func(t *testing.T) {
		stored := period
		stored.Value = scheduler.PeriodPast
		set := &models.FilterSet{Bundled: []models.BundledCriterion{stored}}

		assert.Equal(t, []string{"Kickoff"}, f.names(t, set, filter.Result{}))
	})

	t.Run("failing components are skipped", func(t *testing.T) {
		set := &models.FilterSet{
			Criteria: []models.Criterion{{Field: "status", Operator: "exact", Value: "0"}},
			Bundled: []models.BundledCriterion{
				{ModuleName: "tests", ClassName: "Panicking"},
				{ModuleName: "tests", ClassName: "Unregistered"},
			},
		}
		compiled := filter.Compile(set, f.event, f.registry, filter.CompileOptions{Now: testutil.Today})

		assert.Equal(t, []string{"Retrospective", "Archived draft"}, f.names(t, set, compiled))
		assert.Contains(t, f.logs.String(), "panicked")
		assert.Contains(t, f.logs.String(), "tests.Unregistered")
	})
}

func TestExecutor_OrderingAndPaging(t *testing.T) {
	f := newFixture(t)

	set := &models.FilterSet{}
	require.NoError(t, set.SetOrdering([]string{"status", "-name", "category", "missing"}))

	assert.Equal(t, []string{"Retrospective", "Archived draft", "Conference trip", "Kickoff"}, f.names(t, set, filter.Result{}))

	rows, err := f.executor.List(context.Background(), f.event, set, filter.Result{}, query.ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Archived draft", rows[0]["name"])
	assert.Equal(t, "Conference trip", rows[1]["name"])
}

func TestExecutor_RelatedChoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, _ := f.event.Field("user")
	choices, err := f.executor.RelatedChoices(ctx, f.event, user)
	require.NoError(t, err)
	assert.Equal(t, []schema.Choice{{Value: "1", Label: "alice"}, {Value: "2", Label: "bob"}}, choices)

	category, _ := f.event.Field("category")
	choices, err = f.executor.RelatedChoices(ctx, f.event, category)
	require.NoError(t, err)
	assert.Equal(t, []schema.Choice{{Value: "1", Label: "Meetings"}, {Value: "2", Label: "Travel"}}, choices)

	name, _ := f.event.Field("name")
	_, err = f.executor.RelatedChoices(ctx, f.event, name)
	assert.Error(t, err)
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key    string
		path   string
		lookup query.Lookup
	}{
		{"status__exact", "status", query.LookupExact},
		{"user__username__contains", "user__username", query.LookupContains},
		{"created__date", "created", query.LookupDate},
		{"user__username", "user__username", query.LookupExact},
		{"name", "name", query.LookupExact},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			path, lookup := query.SplitKey(tt.key)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.lookup, lookup)
		})
	}
}

func TestBundledRegistry(t *testing.T) {
	registry := query.NewBundledRegistry()
	require.NoError(t, registry.Register("tests", "Panicking", panicking{}))

	assert.Error(t, registry.Register("tests", "Panicking", panicking{}))
	assert.Error(t, registry.Register("", "Panicking", panicking{}))

	descriptor, ok := registry.Describe("tests", "Panicking")
	require.True(t, ok)
	assert.Equal(t, "boom", descriptor.ParameterName())

	_, ok = registry.Describe("tests", "Other")
	assert.False(t, ok)
	assert.Equal(t, []string{"tests.Panicking"}, registry.Identities())
}
