package models

import (
	"time"
)

// BundledCriterion references an externally registered filter component by
// its (module, class) identity together with its stored parameter.
type BundledCriterion struct {
	ID          uint   `gorm:"primaryKey"`
	FilterSetID uint   `gorm:"not null;index:idx_bundled_filter_set"`
	ModuleName  string `gorm:"type:text;not null"`
	ClassName   string `gorm:"type:text;not null"`
	FieldName   string `gorm:"type:text"`
	Value       string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the plural used by the other filter tables.
func (BundledCriterion) TableName() string {
	return "bundled_criteria"
}

// Identity returns "module.Class".
func (b *BundledCriterion) Identity() string {
	return b.ModuleName + "." + b.ClassName
}
