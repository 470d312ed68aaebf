package scheduler

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Migrate creates the demo tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&User{}, &Category{}, &Event{}); err != nil {
		return fmt.Errorf("failed to migrate scheduler tables: %w", err)
	}
	return nil
}

// Seed inserts sample rows into empty demo tables, relative to today.
func Seed(ctx context.Context, db *gorm.DB, today time.Time) error {
	var count int64
	if err := db.WithContext(ctx).Model(&Event{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	day := func(offset int) *time.Time {
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
		return &t
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alice := User{Username: "alice"}
		bob := User{Username: "bob"}
		if err := tx.Create([]*User{&alice, &bob}).Error; err != nil {
			return err
		}

		meetings := Category{Name: "Meetings"}
		travel := Category{Name: "Travel"}
		if err := tx.Create([]*Category{&meetings, &travel}).Error; err != nil {
			return err
		}

		events := []*Event{
			{Name: "Kickoff", Start: day(-10), End: day(-9), Status: StatusFinished, UserID: &alice.ID, Active: true, Created: *day(-30), Categories: []Category{meetings}},
			{Name: "Conference trip", Start: day(-1), End: day(2), Status: StatusInProgress, UserID: &bob.ID, Active: true, Created: *day(-7), Categories: []Category{travel, meetings}},
			{Name: "Retrospective", Start: day(5), End: day(5), Status: StatusNew, UserID: &alice.ID, Active: true, Created: *day(0), Categories: []Category{meetings}},
			{Name: "Archived draft", Status: StatusNew, Active: false, Created: *day(-400)},
		}
		return tx.Create(events).Error
	})
}
