package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalog",
		Short:         "Manage hierarchical catalog taxonomies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCommand(),
		newSeedCommand(),
		newServeCommand(),
		newTypesCommand(),
		newTypeCommand(),
		newListCommand(),
		newDetailCommand(),
		newTreeCommand(),
		newCreateCommand(),
		newUpdateCommand(),
		newMoveCommand(),
		newDeleteCommand(),
	)
	return root
}
