package filter

import (
	"context"
	"fmt"
	"strconv"

	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

// FieldRow is the editable state of one criterion.
type FieldRow struct {
	Field     string           `json:"field"`
	Label     string           `json:"label"`
	Type      schema.FieldType `json:"type"`
	Enabled   bool             `json:"enabled"`
	Operator  Operator         `json:"operator"`
	Operators []OperatorChoice `json:"operators"`
	Widget    Widget           `json:"widget"`
	Choices   []schema.Choice  `json:"choices,omitempty"`
	Values    []string         `json:"values"`

	HasRange   bool   `json:"has_range"`
	RangeStart string `json:"range_start,omitempty"`
	RangeEnd   string `json:"range_end,omitempty"`

	HasDaysAgo  bool   `json:"has_days_ago"`
	DaysAgo     string `json:"days_ago,omitempty"`
	ShowDaysAgo bool   `json:"show_days_ago"`
}

// BundledRow is the editable state of a bundled criterion.
type BundledRow struct {
	Parameter string          `json:"parameter"`
	Title     string          `json:"title"`
	Enabled   bool            `json:"enabled"`
	Value     string          `json:"value"`
	Lookups   []schema.Choice `json:"lookups"`
}

type OrderingField struct {
	Multiple bool            `json:"multiple"`
	Choices  []schema.Choice `json:"choices"`
	Selected []string        `json:"selected"`
}

// Form is the schema of the filter editing form.
type Form struct {
	FilterSetID   uint            `json:"filter_set_id"`
	Name          string          `json:"name"`
	Rows          []FieldRow      `json:"rows"`
	Bundled       []BundledRow    `json:"bundled,omitempty"`
	Ordering      OrderingField   `json:"ordering"`
	AddChoices    []schema.Choice `json:"add_choices,omitempty"`
	PresetChoices []schema.Choice `json:"preset_choices,omitempty"`
	// Errors lists the steps of a failed save.
	Errors []string `json:"errors,omitempty"`

	index map[string]int
}

// Row returns the row of a field path.
func (f *Form) Row(path string) (*FieldRow, bool) {
	i, ok := f.index[path]
	if !ok {
		return nil, false
	}
	return &f.Rows[i], true
}

// BundledDescriptor describes a bundled filter component to the form.
type BundledDescriptor interface {
	ParameterName() string
	Title() string
	Lookups() []schema.Choice
}

// BundledCatalog resolves stored bundled identities.
type BundledCatalog interface {
	Describe(module, class string) (BundledDescriptor, bool)
}

type FormInput struct {
	Set        *models.FilterSet
	Entity     *schema.EntityType
	Registry   *schema.Registry
	Submission *Submission
	Presets    []models.FilterSet
	Choices    ChoiceSource
	Bundled    BundledCatalog
}

// BuildForm builds one row per attached criterion followed by one row per
// field newly enabled in the submission. Criteria whose field no longer
// resolves get no row.
func BuildForm(ctx context.Context, in FormInput) (*Form, error) {
	set, entity := in.Set, in.Entity

	form := &Form{
		FilterSetID: set.ID,
		Name:        set.VerboseName(),
		index:       make(map[string]int),
	}
	if in.Submission != nil && in.Submission.Name != "" {
		form.Name = in.Submission.Name
	}

	for _, bundled := range set.Bundled {
		if in.Bundled == nil {
			break
		}
		descriptor, ok := in.Bundled.Describe(bundled.ModuleName, bundled.ClassName)
		if !ok {
			continue
		}
		row := BundledRow{
			Parameter: descriptor.ParameterName(),
			Title:     descriptor.Title(),
			Enabled:   true,
			Value:     bundled.Value,
			Lookups:   descriptor.Lookups(),
		}
		if in.Submission != nil && in.Submission.Bound {
			input := in.Submission.Field(row.Parameter)
			row.Enabled = input != nil && input.Enabled
			if input != nil && input.Operator != "" {
				row.Value = string(input.Operator)
			}
		}
		form.Bundled = append(form.Bundled, row)
	}

	criteria := append([]models.Criterion(nil), set.Criteria...)
	for _, path := range NewFields(set, entity, in.Registry, in.Submission, in.Bundled) {
		criteria = append(criteria, models.Criterion{FilterSetID: set.ID, Field: path})
	}

	exclude := make(map[string]bool, len(criteria))
	for _, criterion := range criteria {
		exclude[criterion.Field] = true

		resolved, err := in.Registry.ResolvePath(entity, criterion.Field)
		if err != nil {
			continue
		}
		row, err := buildRow(ctx, entity, resolved, criterion, in)
		if err != nil {
			return nil, err
		}
		form.index[row.Field] = len(form.Rows)
		form.Rows = append(form.Rows, row)
	}

	form.Ordering = OrderingField{
		Multiple: set.OrderingIsList(),
		Selected: set.OrderingFields(),
	}
	if !form.Ordering.Multiple {
		form.Ordering.Choices = append(form.Ordering.Choices, schema.Choice{})
	}
	form.Ordering.Choices = append(form.Ordering.Choices, entity.OrderingChoices()...)

	form.AddChoices = entity.AvailableChoices(exclude)

	for _, preset := range in.Presets {
		form.PresetChoices = append(form.PresetChoices, schema.Choice{
			Value: strconv.FormatUint(uint64(preset.ID), 10),
			Label: preset.VerboseName(),
		})
	}

	return form, nil
}

func buildRow(ctx context.Context, entity *schema.EntityType, resolved schema.ResolvedField, criterion models.Criterion, in FormInput) (FieldRow, error) {
	field := resolved.Field

	row := FieldRow{
		Field:      resolved.Path,
		Label:      fieldLabel(resolved),
		Type:       field.Type,
		Enabled:    true,
		Operator:   Operator(criterion.Operator),
		Operators:  LegalOperators(field),
		Values:     criterion.Values(),
		HasRange:   hasRange(field),
		HasDaysAgo: field.IsDate(),
	}
	if row.Operator == "" {
		row.Operator = DefaultOperator(field)
	}

	// A bound submission carries the state of every row; unchecked rows are
	// absent from it.
	input := in.Submission.Field(criterion.Field)
	if in.Submission != nil && in.Submission.Bound {
		row.Enabled = input != nil && input.Enabled
	}
	if input != nil {
		if input.Operator != "" {
			row.Operator = input.Operator
		}
		if input.Values != nil {
			row.Values = input.Values
		}
	}

	choices, err := Choices(ctx, entity, field, in.Choices)
	if err != nil {
		return FieldRow{}, fmt.Errorf("failed to list choices of '%s': %w", criterion.Field, err)
	}
	row.Choices = choices

	multiple := criterion.IsMultiple
	if input != nil && len(input.Values) > 1 {
		multiple = true
	}
	row.Widget = WidgetFor(field, choices, multiple)

	switch row.Operator {
	case OpBetween:
		stored := criterion.Values()
		if len(stored) > 0 {
			row.RangeStart = stored[0]
		}
		if len(stored) > 1 {
			row.RangeEnd = stored[1]
		}
		if input != nil && (input.RangeStart != "" || input.RangeEnd != "") {
			row.RangeStart, row.RangeEnd = input.RangeStart, input.RangeEnd
		}
		row.Values = nil
		row.DaysAgo = ""
	case OpDaysAgo:
		row.ShowDaysAgo = true
		row.DaysAgo = criterion.Scalar()
		if input != nil && input.DaysAgo != "" {
			row.DaysAgo = input.DaysAgo
		}
		row.Values = nil
	}

	if row.Values == nil {
		row.Values = []string{}
	}
	return row, nil
}

func fieldLabel(resolved schema.ResolvedField) string {
	if resolved.Relation == nil {
		return resolved.VerboseName()
	}
	return resolved.Relation.VerboseName() + " " + resolved.Field.VerboseName()
}
