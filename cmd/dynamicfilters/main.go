package main

import (
	"fmt"
	"os"

	"github.com/boutdepapier/dynamicfilters/cmd/dynamicfilters/cli"
	"github.com/boutdepapier/dynamicfilters/cmd/dynamicfilters/cli/client"
	"github.com/boutdepapier/dynamicfilters/cmd/dynamicfilters/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	info := cli.VersionInfo{
		Version: version,
		Commit:  commit,
	}
	root := cli.NewRootCommand(info)

	root.AddCommand(cli.NewVersionCommand(info))

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())
	root.AddCommand(server.NewMigrateCommand())

	root.AddCommand(client.NewFiltersCommand())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
