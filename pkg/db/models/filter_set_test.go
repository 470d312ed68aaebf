package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriterion_ValueEncoding(t *testing.T) {
	tests := []struct {
		name     string
		multiple bool
		stored   string
		values   []string
	}{
		{name: "single", stored: "abc", values: []string{"abc"}},
		{name: "single empty", stored: "", values: nil},
		{name: "multiple", multiple: true, stored: `["a","b"]`, values: []string{"a", "b"}},
		{name: "multiple empty", multiple: true, stored: `[]`, values: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Criterion{Field: "name", IsMultiple: tt.multiple, Value: tt.stored}

			decoded, err := c.DecodeValue()
			require.NoError(t, err)
			assert.Equal(t, tt.values, decoded)

			c.EncodeValue(decoded)
			assert.Equal(t, tt.stored, c.Value)
		})
	}
}

func TestCriterion_SingleKeepsFirstValue(t *testing.T) {
	c := Criterion{Field: "status"}
	c.EncodeValue([]string{"1", "2"})
	assert.Equal(t, "1", c.Value)
	assert.Equal(t, "1", c.Scalar())
}

func TestCriterion_MalformedValue(t *testing.T) {
	c := Criterion{Field: "status", IsMultiple: true, Value: "1,2"}

	_, err := c.DecodeValue()
	assert.Error(t, err)
	assert.Nil(t, c.Values())
	assert.Equal(t, "", c.Scalar())
}

func TestFilterSet_Ordering(t *testing.T) {
	t.Run("single field stays plain", func(t *testing.T) {
		var fs FilterSet
		require.NoError(t, fs.SetOrdering([]string{"-created"}))
		assert.Equal(t, "-created", fs.Ordering)
		assert.False(t, fs.OrderingIsList())
		assert.Equal(t, []string{"-created"}, fs.OrderingFields())
	})

	t.Run("several fields use a list", func(t *testing.T) {
		var fs FilterSet
		require.NoError(t, fs.SetOrdering([]string{"name", " ", "-created"}))
		assert.Equal(t, `["name","-created"]`, fs.Ordering)
		assert.Equal(t, []string{"name", "-created"}, fs.OrderingFields())
	})

	t.Run("list encoding is kept", func(t *testing.T) {
		fs := FilterSet{Ordering: `["name","-created"]`}
		require.NoError(t, fs.SetOrdering([]string{"name"}))
		assert.Equal(t, `["name"]`, fs.Ordering)
		assert.True(t, fs.OrderingIsList())
	})

	t.Run("empty", func(t *testing.T) {
		fs := FilterSet{Ordering: "name"}
		require.NoError(t, fs.SetOrdering(nil))
		assert.Equal(t, "", fs.Ordering)
		assert.Nil(t, fs.OrderingFields())
	})
}

func TestFilterSet_Names(t *testing.T) {
	var fs FilterSet
	assert.Equal(t, "default", fs.VerboseName())
	assert.False(t, fs.IsTemporary())

	fs.SetName(TemporaryName)
	assert.True(t, fs.IsTemporary())

	fs.SetName("Open tickets")
	assert.Equal(t, "Open tickets", fs.VerboseName())
}

func TestFilterSet_BeforeSaveFillsViewPath(t *testing.T) {
	fs := FilterSet{Namespace: "scheduler", EntityName: "Event"}
	require.NoError(t, fs.BeforeSave(nil))
	assert.Equal(t, "/admin/scheduler/event/", fs.ViewPath)

	fs.ViewPath = "/custom/"
	require.NoError(t, fs.BeforeSave(nil))
	assert.Equal(t, "/custom/", fs.ViewPath)
}

func TestFilterSet_Criterion(t *testing.T) {
	fs := FilterSet{Criteria: []Criterion{{Field: "status"}, {Field: "user"}}}

	c, ok := fs.Criterion("user")
	require.True(t, ok)
	c.Operator = "isnull"
	assert.Equal(t, "isnull", fs.Criteria[1].Operator)

	_, ok = fs.Criterion("name")
	assert.False(t, ok)
	assert.Equal(t, []string{"status", "user"}, fs.Columns())
}

func TestBundledCriterion_Identity(t *testing.T) {
	b := BundledCriterion{ModuleName: "scheduler.admin", ClassName: "PeriodFilter"}
	assert.Equal(t, "scheduler.admin.PeriodFilter", b.Identity())
}
