package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// TemporaryName names the scratch filter set used while composing a preset.
const TemporaryName = "temporary"

// FilterSet represents a per-user collection of criteria and an ordering for
// one admin listing.
type FilterSet struct {
	ID         uint    `gorm:"primaryKey"`
	Name       *string `gorm:"type:text"`
	UserID     string  `gorm:"type:text;not null;index:idx_filter_set_owner"`
	ViewPath   string  `gorm:"type:text;not null;index:idx_filter_set_owner"`
	EntityName string  `gorm:"type:text;not null;index:idx_filter_set_entity"`
	Namespace  string  `gorm:"type:text;not null;index:idx_filter_set_entity"`
	IsDefault  bool    `gorm:"not null;default:false"`
	Ordering   string  `gorm:"type:text"` // "-created" or ["name","-created"]

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Criteria []Criterion        `gorm:"foreignKey:FilterSetID;constraint:OnDelete:CASCADE"`
	Bundled  []BundledCriterion `gorm:"foreignKey:FilterSetID;constraint:OnDelete:CASCADE"`
}

func (FilterSet) TableName() string {
	return "filter_sets"
}

// BeforeSave fills an empty view path with the default listing path of the
// entity.
func (fs *FilterSet) BeforeSave(tx *gorm.DB) error {
	if fs.ViewPath == "" {
		fs.ViewPath = fmt.Sprintf("/admin/%s/%s/", fs.Namespace, strings.ToLower(fs.EntityName))
	}
	return nil
}

func (fs *FilterSet) IsTemporary() bool {
	return fs.Name != nil && *fs.Name == TemporaryName
}

// VerboseName returns the preset name or "default".
func (fs *FilterSet) VerboseName() string {
	if fs.Name != nil && *fs.Name != "" {
		return *fs.Name
	}
	return "default"
}

func (fs *FilterSet) SetName(name string) {
	fs.Name = &name
}

// Columns returns the field paths of the attached criteria.
func (fs *FilterSet) Columns() []string {
	columns := make([]string, 0, len(fs.Criteria))
	for _, c := range fs.Criteria {
		columns = append(columns, c.Field)
	}
	return columns
}

// OrderingIsList reports whether the ordering is stored as a list.
func (fs *FilterSet) OrderingIsList() bool {
	return strings.HasPrefix(strings.TrimSpace(fs.Ordering), "[")
}

// OrderingFields decodes the stored ordering.
func (fs *FilterSet) OrderingFields() []string {
	raw := strings.TrimSpace(fs.Ordering)
	if raw == "" {
		return nil
	}
	if fs.OrderingIsList() {
		var fields []string
		if err := json.Unmarshal([]byte(raw), &fields); err == nil {
			return fields
		}
	}
	return []string{raw}
}

// SetOrdering stores fields, keeping the list encoding when it was already in
// use or when more than one field is given.
func (fs *FilterSet) SetOrdering(fields []string) error {
	cleaned := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			cleaned = append(cleaned, f)
		}
	}

	switch {
	case len(cleaned) == 0:
		fs.Ordering = ""
	case len(cleaned) == 1 && !fs.OrderingIsList():
		fs.Ordering = cleaned[0]
	default:
		data, err := json.Marshal(cleaned)
		if err != nil {
			return fmt.Errorf("failed to encode ordering: %w", err)
		}
		fs.Ordering = string(data)
	}
	return nil
}

// Criterion returns the attached criterion for field.
func (fs *FilterSet) Criterion(field string) (*Criterion, bool) {
	for i := range fs.Criteria {
		if fs.Criteria[i].Field == field {
			return &fs.Criteria[i], true
		}
	}
	return nil, false
}
