package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/now"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/boutdepapier/dynamicfilters/pkg/query"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

const (
	BundledModule     = "scheduler.admin"
	PeriodFilterClass = "PeriodFilter"
)

const (
	PeriodUpcoming = "upcoming"
	PeriodRunning  = "running"
	PeriodPast     = "past"
)

// PeriodFilter narrows events by their position relative to today, which
// takes both the start and the end date into account.
type PeriodFilter struct {
	Now func() time.Time
}

var _ query.BundledComponent = (*PeriodFilter)(nil)

func (f *PeriodFilter) ParameterName() string {
	return "period"
}

func (f *PeriodFilter) Title() string {
	return "Period"
}

func (f *PeriodFilter) Lookups() []schema.Choice {
	return []schema.Choice{
		{Value: PeriodUpcoming, Label: "Upcoming"},
		{Value: PeriodRunning, Label: "Running"},
		{Value: PeriodPast, Label: "Past"},
	}
}

func (f *PeriodFilter) Apply(ctx context.Context, tx *gorm.DB, value string) (*gorm.DB, error) {
	clock := time.Now
	if f.Now != nil {
		clock = f.Now
	}
	today := now.With(clock()).BeginningOfDay().Format("2006-01-02")

	start := clause.Column{Table: clause.CurrentTable, Name: "start"}
	end := clause.Column{Table: clause.CurrentTable, Name: "end"}

	switch value {
	case "":
		return nil, nil
	case PeriodUpcoming:
		return tx.Where(clause.Expr{SQL: "(substr(?, 1, 10) > ?)", Vars: []any{start, today}}), nil
	case PeriodRunning:
		return tx.Where(clause.Expr{
			SQL:  "(substr(?, 1, 10) <= ? AND (? IS NULL OR substr(?, 1, 10) >= ?))",
			Vars: []any{start, today, end, end, today},
		}), nil
	case PeriodPast:
		return tx.Where(clause.Expr{SQL: "(substr(?, 1, 10) < ?)", Vars: []any{end, today}}), nil
	}
	return nil, fmt.Errorf("unknown period '%s'", value)
}

// RegisterBundled adds the demo bundled components to registry.
func RegisterBundled(registry *query.BundledRegistry, clock func() time.Time) error {
	return registry.Register(BundledModule, PeriodFilterClass, &PeriodFilter{Now: clock})
}
