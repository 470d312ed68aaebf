// Package scheduler is a small demo application whose entities are
// registered for filtering when the agent runs with filters.demo enabled.
package scheduler

import (
	"time"
)

const (
	StatusNew        = 0
	StatusInProgress = 1
	StatusFinished   = 2
)

type User struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"type:text;not null;uniqueIndex"`
}

type Category struct {
	ID          uint    `gorm:"primaryKey"`
	Name        string  `gorm:"type:text;not null"`
	Description *string `gorm:"type:text"`
}

func (Category) TableName() string {
	return "categories"
}

type Event struct {
	ID          uint       `gorm:"primaryKey"`
	Name        string     `gorm:"type:text;not null"`
	Description *string    `gorm:"type:text"`
	Start       *time.Time `gorm:"column:start"`
	End         *time.Time `gorm:"column:end"`
	Status      int        `gorm:"not null;default:0"`
	UserID      *uint      `gorm:"index"`
	Active      bool       `gorm:"not null"`
	Importance  *int       `gorm:"default:3"`
	Created     time.Time

	User       *User      `gorm:"constraint:OnDelete:SET NULL"`
	Categories []Category `gorm:"many2many:event_categories;"`
}
