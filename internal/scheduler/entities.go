package scheduler

import (
	"strconv"

	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

const Namespace = "scheduler"

// Entities returns the descriptors of the demo tables.
func Entities() []schema.EntityType {
	return []schema.EntityType{
		{
			Namespace: "auth",
			Name:      "User",
			Table:     "users",
			Display:   "username",
			Fields: []schema.Field{
				{Name: "id", Type: schema.FieldInteger, PrimaryKey: true},
				{Name: "username", Type: schema.FieldChar},
			},
		},
		{
			Namespace: Namespace,
			Name:      "Category",
			Table:     "categories",
			Display:   "name",
			Fields: []schema.Field{
				{Name: "id", Type: schema.FieldInteger, PrimaryKey: true},
				{Name: "name", Type: schema.FieldChar},
				{Name: "description", Type: schema.FieldText},
			},
		},
		{
			Namespace: Namespace,
			Name:      "Event",
			Table:     "events",
			Display:   "name",
			Fields: []schema.Field{
				{Name: "id", Type: schema.FieldInteger, PrimaryKey: true},
				{Name: "name", Type: schema.FieldChar},
				{Name: "description", Type: schema.FieldText},
				{Name: "start", Type: schema.FieldDate},
				{Name: "end", Type: schema.FieldDate},
				{Name: "status", Type: schema.FieldInteger, Choices: []schema.Choice{
					{Value: strconv.Itoa(StatusNew), Label: "New"},
					{Value: strconv.Itoa(StatusInProgress), Label: "In progress"},
					{Value: strconv.Itoa(StatusFinished), Label: "Finished"},
				}},
				{Name: "user", Type: schema.FieldForeignKey, Related: "auth.User"},
				{Name: "active", Type: schema.FieldBoolean},
				{Name: "importance", Type: schema.FieldInteger},
				{Name: "created", Type: schema.FieldDateTime},
				{Name: "category", Label: "categories", Type: schema.FieldManyToMany, Related: "Category", Through: &schema.Through{
					Table:        "event_categories",
					SourceColumn: "event_id",
					TargetColumn: "category_id",
				}},
			},
			ListFilter:     []string{"status", "user"},
			BundledFilters: []string{BundledModule + "." + PeriodFilterClass},
		},
	}
}

// Register adds the demo entities to registry.
func Register(registry *schema.Registry) error {
	for _, entity := range Entities() {
		if err := registry.Register(entity); err != nil {
			return err
		}
	}
	return nil
}
