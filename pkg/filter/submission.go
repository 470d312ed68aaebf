package filter

import (
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/boutdepapier/dynamicfilters/pkg/db/models"
	ferrors "github.com/boutdepapier/dynamicfilters/pkg/errors"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

// ParamNames holds the request parameter names driving the filter actions.
type ParamNames struct {
	Add  string `mapstructure:"add_param"  yaml:"add_param"`
	Load string `mapstructure:"load_param" yaml:"load_param"`
	Save string `mapstructure:"save_param" yaml:"save_param"`
}

func DefaultParamNames() ParamNames {
	return ParamNames{
		Add:  "add_adminfilters",
		Load: "load_adminfilters",
		Save: "save_adminfilters",
	}
}

func (p ParamNames) withDefaults() ParamNames {
	defaults := DefaultParamNames()
	if p.Add == "" {
		p.Add = defaults.Add
	}
	if p.Load == "" {
		p.Load = defaults.Load
	}
	if p.Save == "" {
		p.Save = defaults.Save
	}
	return p
}

// FieldInput is the submitted state of one form row.
type FieldInput struct {
	Enabled    bool     `json:"enabled"`
	Operator   Operator `json:"operator,omitempty"`
	Values     []string `json:"values,omitempty"`
	RangeStart string   `json:"range_start,omitempty"`
	RangeEnd   string   `json:"range_end,omitempty"`
	DaysAgo    string   `json:"days_ago,omitempty"`
}

// Submission is the structured form of the submitted filter form values.
type Submission struct {
	// Bound is false for an empty request, in which case rows show their
	// persisted state.
	Bound bool
	// Order lists the keys of Fields sorted by name.
	Order    []string
	Fields   map[string]*FieldInput
	Ordering []string
	Name     string
	Add      string
	Load     string
	Save     bool
}

var fieldSuffixes = []string{
	"_enabled",
	"_criteria",
	"_value_0",
	"_value_1",
	"_value",
	"_start_0",
	"_start_1",
	"_start",
	"_end_0",
	"_end_1",
	"_end",
	"_dago",
}

func splitFieldKey(key string) (string, string, bool) {
	for _, suffix := range fieldSuffixes {
		if strings.HasSuffix(key, suffix) && len(key) > len(suffix) {
			return strings.TrimSuffix(key, suffix), suffix, true
		}
	}
	return "", "", false
}

// joinSplit combines the date and time halves of a split datetime input.
func joinSplit(values url.Values, key string) string {
	date := strings.TrimSpace(values.Get(key + "_0"))
	clock := strings.TrimSpace(values.Get(key + "_1"))
	return strings.TrimSpace(date + " " + clock)
}

// ParseSubmission reads the per-field inputs and action parameters from
// submitted form values.
func ParseSubmission(values url.Values, params ParamNames) *Submission {
	params = params.withDefaults()

	sub := &Submission{
		Bound:  len(values) > 0,
		Fields: make(map[string]*FieldInput),
		Name:   strings.TrimSpace(values.Get("name")),
		Add:    strings.TrimSpace(values.Get(params.Add)),
		Load:   strings.TrimSpace(values.Get(params.Load)),
		Save:   values.Get(params.Save) != "",
	}

	for _, o := range values["ordering"] {
		if o = strings.TrimSpace(o); o != "" {
			sub.Ordering = append(sub.Ordering, o)
		}
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path, suffix, ok := splitFieldKey(key)
		if !ok {
			continue
		}
		input := sub.input(path)

		switch suffix {
		case "_enabled":
			input.Enabled = isTruthy(values.Get(key))
		case "_criteria":
			input.Operator = Operator(strings.TrimSpace(values.Get(key)))
		case "_value":
			input.Values = append([]string(nil), values[key]...)
		case "_value_0", "_value_1":
			if _, plain := values[path+"_value"]; !plain && input.Values == nil {
				if joined := joinSplit(values, path+"_value"); joined != "" {
					input.Values = []string{joined}
				}
			}
		case "_start":
			input.RangeStart = strings.TrimSpace(values.Get(key))
		case "_start_0", "_start_1":
			if _, plain := values[path+"_start"]; !plain {
				input.RangeStart = joinSplit(values, path+"_start")
			}
		case "_end":
			input.RangeEnd = strings.TrimSpace(values.Get(key))
		case "_end_0", "_end_1":
			if _, plain := values[path+"_end"]; !plain {
				input.RangeEnd = joinSplit(values, path+"_end")
			}
		case "_dago":
			input.DaysAgo = strings.TrimSpace(values.Get(key))
		}
	}

	if sub.Add != "" {
		sub.input(sub.Add).Enabled = true
	}

	return sub
}

func (s *Submission) input(path string) *FieldInput {
	input, ok := s.Fields[path]
	if !ok {
		input = &FieldInput{}
		s.Fields[path] = input
		s.Order = append(s.Order, path)
		sort.Strings(s.Order)
	}
	return input
}

// Field returns the submitted input of path, or nil.
func (s *Submission) Field(path string) *FieldInput {
	if s == nil {
		return nil
	}
	return s.Fields[path]
}

// Enabled reports whether the row of path was submitted enabled.
func (s *Submission) Enabled(path string) bool {
	input := s.Field(path)
	return input != nil && input.Enabled
}

// EnabledCount returns the number of enabled rows.
func (s *Submission) EnabledCount() int {
	if s == nil {
		return 0
	}
	count := 0
	for _, input := range s.Fields {
		if input.Enabled {
			count++
		}
	}
	return count
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	switch strings.ToLower(value) {
	case "on", "yes":
		return true
	case "off", "no":
		return false
	}
	if b, err := cast.ToBoolE(value); err == nil {
		return b
	}
	return true
}

// NewFields returns the fields enabled in the submission that are neither
// attached to set nor bundled parameters, in name order. Paths that do not
// resolve against entity are dropped.
func NewFields(set *models.FilterSet, entity *schema.EntityType, registry *schema.Registry, sub *Submission, catalog BundledCatalog) []string {
	if sub == nil {
		return nil
	}

	known := make(map[string]bool, len(set.Criteria)+len(set.Bundled))
	for _, c := range set.Criteria {
		known[c.Field] = true
	}
	for _, b := range set.Bundled {
		known[bundledParameter(b, catalog)] = true
	}

	var fields []string
	for _, path := range sub.Order {
		if known[path] || !sub.Enabled(path) {
			continue
		}
		if _, err := registry.ResolvePath(entity, path); err != nil {
			continue
		}
		fields = append(fields, path)
	}
	return fields
}

// Plan lists the persistence steps of a filter form save.
type Plan struct {
	Upserts        []models.Criterion
	Deletes        []uint
	BundledUpserts []models.BundledCriterion
	BundledDeletes []uint
	Ordering       []string
}

// PlanSave computes the criteria to upsert and delete for a submission. An
// enabled row is upserted with its submitted operator and value, a disabled
// persisted row is deleted. A missing or illegal operator is replaced by the
// default operator of the field.
func PlanSave(set *models.FilterSet, entity *schema.EntityType, registry *schema.Registry, sub *Submission, catalog BundledCatalog) Plan {
	plan := Plan{Ordering: sub.Ordering}

	for _, bundled := range set.Bundled {
		param := bundledParameter(bundled, catalog)
		if !sub.Enabled(param) {
			if bundled.ID != 0 {
				plan.BundledDeletes = append(plan.BundledDeletes, bundled.ID)
			}
			continue
		}
		bundled.FieldName = param
		bundled.Value = string(sub.Field(param).Operator)
		plan.BundledUpserts = append(plan.BundledUpserts, bundled)
	}

	criteria := append([]models.Criterion(nil), set.Criteria...)
	for _, path := range NewFields(set, entity, registry, sub, catalog) {
		criteria = append(criteria, models.Criterion{FilterSetID: set.ID, Field: path})
	}

	for _, criterion := range criteria {
		input := sub.Field(criterion.Field)
		if input == nil || !input.Enabled {
			if criterion.ID != 0 {
				plan.Deletes = append(plan.Deletes, criterion.ID)
			}
			continue
		}
		op := input.Operator
		if resolved, err := registry.ResolvePath(entity, criterion.Field); err == nil {
			if op == "" || !IsLegal(resolved.Field, op) {
				op = DefaultOperator(resolved.Field)
			}
		} else if op == "" {
			op = OpExact
		}
		applyInput(&criterion, input, op)
		plan.Upserts = append(plan.Upserts, criterion)
	}

	return plan
}

// applyInput stores op and the submitted value on criterion.
func applyInput(criterion *models.Criterion, input *FieldInput, op Operator) {
	criterion.Operator = string(op)

	switch op {
	case OpBetween:
		criterion.IsMultiple = true
		criterion.EncodeValue([]string{input.RangeStart, input.RangeEnd})
	case OpDaysAgo:
		criterion.IsMultiple = false
		criterion.EncodeValue([]string{input.DaysAgo})
	default:
		criterion.IsMultiple = len(input.Values) > 1
		criterion.EncodeValue(input.Values)
	}
}

// ValidateNewPreset checks the submission of the preset creation form.
func ValidateNewPreset(sub *Submission) error {
	if sub == nil || sub.EnabledCount() == 0 {
		return ferrors.ErrValidation("Please add fields to filter set, do not leave it empty.")
	}
	if strings.TrimSpace(sub.Name) == "" {
		return ferrors.ErrValidation("Please enter a name for the filter set.")
	}
	if sub.Name == models.TemporaryName {
		return ferrors.ErrValidation("The name '%s' is reserved.", models.TemporaryName)
	}
	return nil
}

func bundledParameter(bundled models.BundledCriterion, catalog BundledCatalog) string {
	if catalog != nil {
		if descriptor, ok := catalog.Describe(bundled.ModuleName, bundled.ClassName); ok {
			return descriptor.ParameterName()
		}
	}
	if bundled.FieldName != "" {
		return bundled.FieldName
	}
	return bundled.Identity()
}
