package schema

import (
	"strings"
)

// FieldType is the declared type category of an entity field.
type FieldType string

const (
	FieldChar       FieldType = "char"
	FieldText       FieldType = "text"
	FieldInteger    FieldType = "integer"
	FieldDate       FieldType = "date"
	FieldDateTime   FieldType = "datetime"
	FieldBoolean    FieldType = "boolean"
	FieldForeignKey FieldType = "foreignkey"
	FieldManyToMany FieldType = "manytomany"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldChar, FieldText, FieldInteger, FieldDate, FieldDateTime,
		FieldBoolean, FieldForeignKey, FieldManyToMany:
		return true
	}
	return false
}

// Choice is a (value, label) pair used for declared choices, select options
// and field pickers.
type Choice struct {
	Value string `mapstructure:"value" yaml:"value" json:"value"`
	Label string `mapstructure:"label" yaml:"label" json:"label"`
}

// Through describes the join table of a many-to-many field.
type Through struct {
	Table        string `mapstructure:"table"         yaml:"table"         json:"table"`
	SourceColumn string `mapstructure:"source_column" yaml:"source_column" json:"source_column"`
	TargetColumn string `mapstructure:"target_column" yaml:"target_column" json:"target_column"`
}

// Field describes a single field of an entity type.
type Field struct {
	Name       string    `mapstructure:"name"        yaml:"name"                  json:"name"`
	Label      string    `mapstructure:"label"       yaml:"label,omitempty"       json:"label,omitempty"`
	Type       FieldType `mapstructure:"type"        yaml:"type"                  json:"type"`
	Column     string    `mapstructure:"column"      yaml:"column,omitempty"      json:"column,omitempty"`
	PrimaryKey bool      `mapstructure:"primary_key" yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	Choices    []Choice  `mapstructure:"choices"     yaml:"choices,omitempty"     json:"choices,omitempty"`
	// Related references the target entity of a relation, either "Name"
	// within the same namespace or "namespace.Name".
	Related string   `mapstructure:"related" yaml:"related,omitempty" json:"related,omitempty"`
	Through *Through `mapstructure:"through" yaml:"through,omitempty" json:"through,omitempty"`
}

// VerboseName returns the capitalized label of the field.
func (f Field) VerboseName() string {
	label := f.Label
	if label == "" {
		label = strings.ReplaceAll(f.Name, "_", " ")
	}
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// ColumnName returns the storage column backing the field.
func (f Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	if f.Type == FieldForeignKey {
		return f.Name + "_id"
	}
	return f.Name
}

func (f Field) HasChoices() bool {
	return len(f.Choices) > 0
}

func (f Field) IsRelation() bool {
	return f.Type == FieldForeignKey || f.Type == FieldManyToMany
}

func (f Field) IsDate() bool {
	return f.Type == FieldDate || f.Type == FieldDateTime
}

func (f Field) IsText() bool {
	return f.Type == FieldChar || f.Type == FieldText
}

// ChoiceLabel returns the declared label for value, or value itself.
func (f Field) ChoiceLabel(value string) string {
	for _, c := range f.Choices {
		if c.Value == value {
			return c.Label
		}
	}
	return value
}
