package filters_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boutdepapier/dynamicfilters/internal/filters"
	"github.com/boutdepapier/dynamicfilters/internal/scheduler"
	"github.com/boutdepapier/dynamicfilters/internal/testutil"
	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
	"github.com/boutdepapier/dynamicfilters/pkg/db/store"
	ferrors "github.com/boutdepapier/dynamicfilters/pkg/errors"
	"github.com/boutdepapier/dynamicfilters/pkg/filter"
	"github.com/boutdepapier/dynamicfilters/pkg/query"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

var alice = filters.Target{UserID: "alice", Namespace: "scheduler", Entity: "Event"}

func newService(t *testing.T) (*filters.Service, *store.GormStore) {
	t.Helper()

	st := testutil.NewSchedulerStore(t)
	registry := testutil.NewRegistry(t)

	bundled := query.NewBundledRegistry()
	require.NoError(t, scheduler.RegisterBundled(bundled, testutil.Clock))

	executor := query.NewExecutor(st.DB(), registry, query.ExecutorOptions{
		Dialect: st.Dialect(),
		Bundled: bundled,
	})
	return filters.NewService(st, registry, executor, filters.ServiceOptions{}), st
}

func listing(t *testing.T, svc *filters.Service, target filters.Target) *filters.Listing {
	t.Helper()

	l, err := svc.Listing(context.Background(), target, filters.RequestOptions{Now: testutil.Today}, filters.Links{})
	require.NoError(t, err)
	return l
}

func names(l *filters.Listing) []string {
	out := make([]string, 0, len(l.Rows))
	for _, row := range l.Rows {
		out = append(out, row["name"].(string))
	}
	return out
}

func TestService_ListingSeedsDefault(t *testing.T) {
	svc, _ := newService(t)

	first := listing(t, svc, alice)

	assert.True(t, first.FilterSet.IsDefault)
	assert.Equal(t, "default", first.FilterSet.Name)
	assert.Equal(t, "/admin/scheduler/event/", first.FilterSet.ViewPath)
	assert.Equal(t, 2, first.FilterSet.Criteria)
	assert.Equal(t, 1, first.FilterSet.Bundled)
	assert.Empty(t, first.Include)
	assert.Empty(t, first.Exclude)
	assert.Equal(t, int64(4), first.Count)
	assert.Len(t, first.Rows, 4)

	require.Len(t, first.Form.Rows, 2)
	assert.Equal(t, "status", first.Form.Rows[0].Field)
	assert.Equal(t, "user", first.Form.Rows[1].Field)
	assert.Len(t, first.Form.Rows[1].Choices, 2)
	require.Len(t, first.Form.Bundled, 1)
	assert.Equal(t, "period", first.Form.Bundled[0].Parameter)

	second := listing(t, svc, alice)
	assert.Equal(t, first.FilterSet.ID, second.FilterSet.ID)
	assert.Equal(t, 2, second.FilterSet.Criteria)
}

func TestService_ListingErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Listing(ctx, filters.Target{Namespace: "scheduler", Entity: "Event"}, filters.RequestOptions{}, filters.Links{})
	assert.True(t, ferrors.IsValidation(err))

	_, err = svc.Listing(ctx, filters.Target{UserID: "alice", Namespace: "scheduler", Entity: "Meeting"}, filters.RequestOptions{}, filters.Links{})
	assert.True(t, ferrors.IsUnknownField(err))
}

func TestService_SaveFilter(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	seeded := listing(t, svc, alice)

	response, err := svc.SaveFilter(ctx, alice, url.Values{
		"status_enabled":    {"on"},
		"status_criteria":   {"exact"},
		"status_value":      {"1"},
		"ordering":          {"-name"},
		"save_adminfilters": {"1"},
	})
	require.NoError(t, err)
	assert.True(t, response.Success)
	assert.Nil(t, response.Response)

	saved := listing(t, svc, alice)
	assert.Equal(t, seeded.FilterSet.ID, saved.FilterSet.ID)
	assert.Equal(t, 1, saved.FilterSet.Criteria)
	assert.Zero(t, saved.FilterSet.Bundled)
	assert.Equal(t, []string{"-name"}, saved.FilterSet.Ordering)
	if diff := cmp.Diff(filter.Predicates{"status__exact": int64(1)}, saved.Include); diff != "" {
		t.Errorf("include mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Conference trip"}, names(saved))

	set, err := st.GetFilterSet(ctx, saved.FilterSet.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, set.Columns())
}

func TestService_SaveFilterRange(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	listing(t, svc, alice)

	response, err := svc.SaveFilter(ctx, alice, url.Values{
		"importance_enabled":  {"on"},
		"importance_criteria": {"between"},
		"importance_start":    {"2"},
		"importance_end":      {"5"},
		"period_enabled":      {"on"},
		"period_criteria":     {scheduler.PeriodRunning},
		"save_adminfilters":   {"1"},
	})
	require.NoError(t, err)
	require.True(t, response.Success)

	saved := listing(t, svc, alice)
	if diff := cmp.Diff(filter.Predicates{"importance__gt": int64(2), "importance__lte": int64(5)}, saved.Include); diff != "" {
		t.Errorf("include mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Conference trip"}, names(saved))

	set, err := st.GetFilterSet(ctx, saved.FilterSet.ID, "alice")
	require.NoError(t, err)
	criterion, ok := set.Criterion("importance")
	require.True(t, ok)
	assert.True(t, criterion.IsMultiple)
	assert.Equal(t, []string{"2", "5"}, criterion.Values())
	require.Len(t, set.Bundled, 1)
	assert.Equal(t, scheduler.PeriodRunning, set.Bundled[0].Value)

	unfiltered, err := svc.Listing(ctx, alice, filters.RequestOptions{Now: testutil.Today, DisableFilters: true}, filters.Links{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), unfiltered.Count)
}

func TestService_SaveFilterAddField(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	listing(t, svc, alice)

	response, err := svc.SaveFilter(ctx, alice, url.Values{
		"status_enabled":   {"on"},
		"user_enabled":     {"on"},
		"add_adminfilters": {"name"},
	})
	require.NoError(t, err)
	require.True(t, response.Success)
	require.NotNil(t, response.Response)

	row, ok := response.Response.Row("name")
	require.True(t, ok)
	assert.True(t, row.Enabled)
	assert.Equal(t, filter.OpContains, row.Operator)

	assert.Equal(t, 2, listing(t, svc, alice).FilterSet.Criteria)
}

type fixedChoices []schema.Choice

func (f fixedChoices) RelatedChoices(context.Context, *schema.EntityType, schema.Field) ([]schema.Choice, error) {
	return f, nil
}

func TestService_ChoicesOption(t *testing.T) {
	st := testutil.NewSchedulerStore(t)
	registry := testutil.NewRegistry(t)
	executor := query.NewExecutor(st.DB(), registry, query.ExecutorOptions{Dialect: st.Dialect()})

	svc := filters.NewService(st, registry, executor, filters.ServiceOptions{
		Choices: fixedChoices{{Value: "42", Label: "carol"}},
	})
	listing(t, svc, alice)

	response, err := svc.SaveFilter(context.Background(), alice, url.Values{
		"add_adminfilters": {"user"},
	})
	require.NoError(t, err)
	require.NotNil(t, response.Response)

	row, ok := response.Response.Row("user")
	require.True(t, ok)
	assert.Equal(t, []string{"42"}, choiceValues(row.Choices))
}

type failingUpserts struct {
	*store.GormStore
}

func (failingUpserts) UpsertCriterion(context.Context, *models.Criterion) error {
	return errors.New("disk full")
}

func TestService_SaveFilterReportsFailedSteps(t *testing.T) {
	st := testutil.NewSchedulerStore(t)
	registry := testutil.NewRegistry(t)
	executor := query.NewExecutor(st.DB(), registry, query.ExecutorOptions{Dialect: st.Dialect()})
	svc := filters.NewService(failingUpserts{st}, registry, executor, filters.ServiceOptions{})
	listing(t, svc, alice)

	response, err := svc.SaveFilter(context.Background(), alice, url.Values{
		"status_enabled":    {"on"},
		"status_criteria":   {"exact"},
		"status_value":      {"1"},
		"save_adminfilters": {"1"},
	})
	require.NoError(t, err)
	assert.False(t, response.Success)
	require.NotNil(t, response.Response)
	assert.Equal(t, []string{"failed to save criterion 'status': disk full"}, response.Response.Errors)

	body, err := json.Marshal(response)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.Len(t, fields, 2)
	assert.Contains(t, fields, "success")
	assert.Contains(t, fields, "response")
}

func TestService_Presets(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	def := listing(t, svc, alice)

	composing, err := svc.AddPreset(ctx, alice, nil)
	require.NoError(t, err)
	require.NotNil(t, composing.Form)
	assert.Nil(t, composing.Created)
	assert.Empty(t, composing.Form.Rows)

	adding, err := svc.AddPreset(ctx, alice, url.Values{"add_adminfilters": {"status"}})
	require.NoError(t, err)
	_, ok := adding.Form.Row("status")
	assert.True(t, ok)

	created, err := svc.AddPreset(ctx, alice, url.Values{
		"name":            {"Finished"},
		"status_enabled":  {"on"},
		"status_criteria": {"exact"},
		"status_value":    {"2"},
	})
	require.NoError(t, err)
	require.NotNil(t, created.Created)
	assert.Equal(t, "Finished", created.Created.Name)
	assert.False(t, created.Created.IsDefault)
	assert.Equal(t, 1, created.Created.Criteria)
	assert.Equal(t, "/admin/scheduler/event/", created.Created.ViewPath)

	presets, err := st.ListPresets(ctx, "alice", "scheduler", "Event")
	require.NoError(t, err)
	require.Len(t, presets, 1)

	withPreset := listing(t, svc, alice)
	assert.Equal(t, []string{strconv.FormatUint(uint64(created.Created.ID), 10)}, choiceValues(withPreset.Form.PresetChoices))

	response, err := svc.SaveFilter(ctx, alice, url.Values{
		"load_adminfilters": {strconv.FormatUint(uint64(created.Created.ID), 10)},
	})
	require.NoError(t, err)
	assert.True(t, response.Success)

	loaded := listing(t, svc, alice)
	assert.Equal(t, created.Created.ID, loaded.FilterSet.ID)
	assert.Equal(t, []string{"Kickoff"}, names(loaded))

	sets, err := st.ListFilterSets(ctx, "alice")
	require.NoError(t, err)
	defaults := 0
	for _, set := range sets {
		if set.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)

	t.Run("previous default becomes a preset", func(t *testing.T) {
		presets, err := st.ListPresets(ctx, "alice", "scheduler", "Event")
		require.NoError(t, err)
		ids := make([]uint, 0, len(presets))
		for _, p := range presets {
			ids = append(ids, p.ID)
		}
		assert.Contains(t, ids, def.FilterSet.ID)
	})

	t.Run("unknown preset", func(t *testing.T) {
		_, err := svc.SaveFilter(ctx, alice, url.Values{"load_adminfilters": {"abc"}})
		assert.True(t, ferrors.IsNotFound(err))

		bob := alice
		bob.UserID = "bob"
		_, err = svc.SaveFilter(ctx, bob, url.Values{
			"load_adminfilters": {strconv.FormatUint(uint64(created.Created.ID), 10)},
		})
		assert.True(t, ferrors.IsNotFound(err))
	})
}

func TestService_AddPresetValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddPreset(ctx, alice, url.Values{"name": {"Empty"}})
	require.Error(t, err)
	assert.True(t, ferrors.IsValidation(err))
	assert.Equal(t, "Please add fields to filter set, do not leave it empty.", err.Error())

	_, err = svc.AddPreset(ctx, alice, url.Values{"status_enabled": {"on"}})
	require.Error(t, err)
	assert.Equal(t, "Please enter a name for the filter set.", err.Error())
}

func TestService_DeletePreset(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	created, err := svc.AddPreset(ctx, alice, url.Values{
		"name":           {"Mine"},
		"active_enabled": {"on"},
		"active_value":   {"true"},
	})
	require.NoError(t, err)
	id := created.Created.ID

	err = svc.DeletePreset(ctx, "bob", id)
	assert.True(t, ferrors.IsNotFound(err))

	require.NoError(t, svc.DeletePreset(ctx, "alice", id))
	_, err = st.GetFilterSet(ctx, id, "")
	assert.True(t, ferrors.IsNotFound(err))

	assert.True(t, ferrors.IsValidation(svc.DeletePreset(ctx, "", id)))
}

func TestService_ClearFilter(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	err := svc.ClearFilter(ctx, alice)
	assert.True(t, ferrors.IsNotFound(err))

	listing(t, svc, alice)
	require.NoError(t, svc.ClearFilter(ctx, alice))

	cleared := listing(t, svc, alice)
	assert.Zero(t, cleared.FilterSet.Criteria)
	assert.Zero(t, cleared.FilterSet.Bundled)
	assert.Empty(t, cleared.Form.Rows)
	assert.Equal(t, int64(4), cleared.Count)
}

func TestService_SchemaDrift(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	def := listing(t, svc, alice)
	require.NoError(t, st.CreateCriterion(ctx, &models.Criterion{
		FilterSetID: def.FilterSet.ID,
		Field:       "legacy_field",
		Operator:    "exact",
		Value:       "x",
	}))

	warnings, err := svc.Validate(ctx, "alice", def.FilterSet.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Field 'legacy_field' no longer exists on Event and was skipped"}, warnings)

	drifted := listing(t, svc, alice)
	assert.Equal(t, warnings, drifted.Warnings)
	assert.Len(t, drifted.Rows, 4)
	_, ok := drifted.Form.Row("legacy_field")
	assert.False(t, ok)
}

func TestLinks(t *testing.T) {
	links := filters.NewLinks("/admin", "scheduler", "Event", filter.ParamNames{})

	assert.Equal(t, "/admin/scheduler/event/", links.Listing)
	assert.Equal(t, "/admin/scheduler/event/add_filter/", links.Add)
	assert.Equal(t, "/admin/scheduler/event/save_filter/", links.Save)
	assert.Equal(t, "/admin/scheduler/event/clear_filter/", links.Clear)
	assert.Equal(t, "/admin/scheduler/event/save_filter/?load_adminfilters=", links.Load)
	assert.Empty(t, links.Delete)

	assert.Equal(t, "/admin/scheduler/event/delete_filter/3/", links.ForSet(3).Delete)
	assert.Equal(t, "/scheduler/event/", filters.ListingPath("", "scheduler", "Event"))
}

func choiceValues(choices []schema.Choice) []string {
	values := make([]string, 0, len(choices))
	for _, c := range choices {
		values = append(values, c.Value)
	}
	return values
}
