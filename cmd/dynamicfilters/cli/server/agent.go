package server

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boutdepapier/dynamicfilters/internal/agent"
	config "github.com/boutdepapier/dynamicfilters/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the filter server",
		Long:  `Start the HTTP server exposing the filter actions of every registered entity type.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			return agent.NewAgent(cfg).Serve(context.Background())
		},
	}

	return cmd
}
