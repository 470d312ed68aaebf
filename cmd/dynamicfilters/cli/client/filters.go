package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boutdepapier/dynamicfilters/internal/agent"
	config "github.com/boutdepapier/dynamicfilters/internal/config/server"
	"github.com/boutdepapier/dynamicfilters/internal/scheduler"
	"github.com/boutdepapier/dynamicfilters/pkg/db/store"
	"github.com/boutdepapier/dynamicfilters/pkg/filter"
	"github.com/boutdepapier/dynamicfilters/pkg/schema"
)

func NewFiltersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Inspect stored filter sets",
		Long:  "List, inspect, compile or remove the filter sets kept in the filter store.",
	}

	cmd.AddCommand(NewFiltersListCommand())
	cmd.AddCommand(NewFiltersShowCommand())
	cmd.AddCommand(NewFiltersCompileCommand())
	cmd.AddCommand(NewFiltersRemoveCommand())

	return cmd
}

type environment struct {
	store    *store.GormStore
	registry *schema.Registry
}

func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server configuration: %w", err)
	}

	registry := schema.NewRegistry()
	if cfg.Filters.EntitiesFile != "" {
		if err := registry.LoadFile(cfg.Filters.EntitiesFile); err != nil {
			return nil, err
		}
	}
	if cfg.Filters.Demo {
		if err := scheduler.Register(registry); err != nil {
			return nil, err
		}
	}

	st, err := agent.OpenStore(ctx, cfg.Metadata)
	if err != nil {
		return nil, err
	}
	return &environment{store: st, registry: registry}, nil
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid filter set id '%s'", arg)
	}
	return uint(id), nil
}

func NewFiltersListCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List filter sets",
		Long:  "List the filter sets of a user, or of every user when no user is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.store.Close()

			sets, err := env.store.ListFilterSets(cmd.Context(), user)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tENTITY\tNAME\tDEFAULT\tCRITERIA\tVIEW")
			for _, set := range sets {
				fmt.Fprintf(w, "%d\t%s\t%s.%s\t%s\t%t\t%d\t%s\n",
					set.ID, set.UserID, set.Namespace, set.EntityName, set.VerboseName(),
					set.IsDefault, len(set.Criteria)+len(set.Bundled), set.ViewPath)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Only list the filter sets of this user")

	return cmd
}

func NewFiltersShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the criteria of a filter set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := openEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.store.Close()

			set, err := env.store.GetFilterSet(cmd.Context(), id, "")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s.%s, user %s, default %t)\n",
				set.VerboseName(), set.Namespace, set.EntityName, set.UserID, set.IsDefault)
			if ordering := set.OrderingFields(); len(ordering) > 0 {
				fmt.Fprintf(out, "ordering: %v\n", ordering)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tOPERATOR\tMULTIPLE\tVALUE")
			for _, c := range set.Criteria {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", c.Field, c.Operator, c.IsMultiple, c.Value)
			}
			for _, b := range set.Bundled {
				fmt.Fprintf(w, "%s\t(bundled %s)\t-\t%s\n", filter.BundledKey(b), b.Identity(), b.Value)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if entity, err := env.registry.Lookup(set.Namespace, set.EntityName); err == nil {
				for _, warning := range filter.Validate(set, entity, env.registry) {
					fmt.Fprintf(out, "warning: %s\n", warning)
				}
			}
			return nil
		},
	}

	return cmd
}

func NewFiltersCompileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <id>",
		Short: "Print the predicates of a filter set",
		Long:  "Compile a filter set against its registered entity type and print the inclusion, exclusion and bundled predicates as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			env, err := openEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.store.Close()

			set, err := env.store.GetFilterSet(cmd.Context(), id, "")
			if err != nil {
				return err
			}
			entity, err := env.registry.Lookup(set.Namespace, set.EntityName)
			if err != nil {
				return err
			}

			result := filter.Compile(set, entity, env.registry, filter.CompileOptions{})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	return cmd
}

func NewFiltersRemoveCommand() *cobra.Command {
	var user string
	var confirm bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a filter set",
		Long:  "Removes a filter set of the given user together with its criteria. Needs confirmation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			if !confirm {
				return fmt.Errorf("refusing to delete filter set %d without --confirm", id)
			}

			env, err := openEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.store.Close()

			if err := env.store.DeleteFilterSet(cmd.Context(), id, user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed filter set %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Owner of the filter set")
	cmd.Flags().BoolVarP(&confirm, "confirm", "c", false, "Confirms the deletion")

	return cmd
}
