package schema

import (
	"fmt"
	"strings"
)

// EntityType is the descriptor of a filterable entity supplied by the host
// application.
type EntityType struct {
	Namespace string  `mapstructure:"namespace" yaml:"namespace"         json:"namespace"`
	Name      string  `mapstructure:"name"      yaml:"name"              json:"name"`
	Label     string  `mapstructure:"label"     yaml:"label,omitempty"   json:"label,omitempty"`
	Table     string  `mapstructure:"table"     yaml:"table,omitempty"   json:"table,omitempty"`
	Display   string  `mapstructure:"display"   yaml:"display,omitempty" json:"display,omitempty"`
	Fields    []Field `mapstructure:"fields"    yaml:"fields"            json:"fields"`

	// ListFilter names the fields attached to a freshly created default
	// filter set.
	ListFilter []string `mapstructure:"list_filter" yaml:"list_filter,omitempty" json:"list_filter,omitempty"`
	// BundledFilters lists "module.Class" identities of bundled components
	// attached to a freshly created default filter set.
	BundledFilters []string `mapstructure:"bundled_filters" yaml:"bundled_filters,omitempty" json:"bundled_filters,omitempty"`

	index map[string]int
}

func entityKey(namespace, name string) string {
	return strings.ToLower(namespace) + "." + strings.ToLower(name)
}

// Key returns the registry key of the entity type.
func (e *EntityType) Key() string {
	return entityKey(e.Namespace, e.Name)
}

func (e *EntityType) String() string {
	return e.Namespace + "." + e.Name
}

// TableName returns the storage table of the entity type.
func (e *EntityType) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return strings.ToLower(e.Name) + "s"
}

// ViewPath returns the default admin listing path of the entity type.
func (e *EntityType) ViewPath() string {
	return fmt.Sprintf("/admin/%s/%s/", e.Namespace, strings.ToLower(e.Name))
}

func (e *EntityType) buildIndex() error {
	e.index = make(map[string]int, len(e.Fields))
	for i, f := range e.Fields {
		if f.Name == "" {
			return fmt.Errorf("entity '%s' has a field without name", e)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("field '%s' of '%s' has invalid type '%s'", f.Name, e, f.Type)
		}
		if _, exists := e.index[f.Name]; exists {
			return fmt.Errorf("field '%s' declared twice on '%s'", f.Name, e)
		}
		e.index[f.Name] = i
	}
	return nil
}

// Field returns the field declared with name.
func (e *EntityType) Field(name string) (Field, bool) {
	if e.index == nil {
		for _, f := range e.Fields {
			if f.Name == name {
				return f, true
			}
		}
		return Field{}, false
	}
	i, ok := e.index[name]
	if !ok {
		return Field{}, false
	}
	return e.Fields[i], true
}

// PrimaryKey returns the primary key column name, "id" by default.
func (e *EntityType) PrimaryKey() string {
	for _, f := range e.Fields {
		if f.PrimaryKey {
			return f.ColumnName()
		}
	}
	return "id"
}

// DisplayColumn returns the column used to label rows of this entity when
// they are the target of a relation.
func (e *EntityType) DisplayColumn() string {
	if e.Display != "" {
		if f, ok := e.Field(e.Display); ok {
			return f.ColumnName()
		}
		return e.Display
	}
	return e.PrimaryKey()
}

// AvailableChoices lists the fields that can still be attached to a filter
// set. Primary keys and fields present in exclude are skipped.
func (e *EntityType) AvailableChoices(exclude map[string]bool) []Choice {
	var choices []Choice
	for _, f := range e.Fields {
		if f.PrimaryKey || exclude[f.Name] {
			continue
		}
		choices = append(choices, Choice{Value: f.Name, Label: f.VerboseName()})
	}
	return choices
}

// OrderingChoices lists ascending and descending ordering options for every
// field.
func (e *EntityType) OrderingChoices() []Choice {
	choices := make([]Choice, 0, len(e.Fields)*2)
	for _, f := range e.Fields {
		choices = append(choices,
			Choice{Value: f.Name, Label: f.VerboseName() + " (Asc)"},
			Choice{Value: "-" + f.Name, Label: f.VerboseName() + " (Desc)"})
	}
	return choices
}
