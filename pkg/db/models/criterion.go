package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Criterion represents a single field / operator / value rule of a filter set
type Criterion struct {
	ID          uint   `gorm:"primaryKey"`
	FilterSetID uint   `gorm:"not null;index:idx_criteria_filter_set"`
	Field       string `gorm:"type:text;not null"` // e.g., "status" or "category__name"
	Operator    string `gorm:"type:text"`          // empty while unset
	IsMultiple  bool   `gorm:"not null;default:false"`
	Value       string `gorm:"type:text"` // JSON array when IsMultiple

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Criterion) TableName() string {
	return "criteria"
}

// DecodeValue returns the stored value(s). A single value decodes to zero or
// one element, a multiple value decodes its JSON array.
func (c *Criterion) DecodeValue() ([]string, error) {
	if !c.IsMultiple {
		if c.Value == "" {
			return nil, nil
		}
		return []string{c.Value}, nil
	}

	if c.Value == "" {
		return []string{}, nil
	}

	var values []string
	if err := json.Unmarshal([]byte(c.Value), &values); err != nil {
		return nil, fmt.Errorf("failed to decode value of '%s': %w", c.Field, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// EncodeValue stores values according to IsMultiple. A single criterion keeps
// the first element only.
func (c *Criterion) EncodeValue(values []string) {
	if !c.IsMultiple {
		c.Value = ""
		if len(values) > 0 {
			c.Value = values[0]
		}
		return
	}

	if values == nil {
		values = []string{}
	}
	// A string slice always marshals.
	data, _ := json.Marshal(values)
	c.Value = string(data)
}

// Values decodes the stored value, returning nil on malformed data.
func (c *Criterion) Values() []string {
	values, err := c.DecodeValue()
	if err != nil {
		return nil
	}
	return values
}

// Scalar returns the first decoded value or "".
func (c *Criterion) Scalar() string {
	values := c.Values()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
