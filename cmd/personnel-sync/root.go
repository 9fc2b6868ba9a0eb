package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	organisationsFile string
	stateStorage      string
}

func newRootCmd() *cobra.Command {
	var g globalOptions
	cmd := &cobra.Command{
		Use:           "personnel-sync",
		Short:         "Keeps archive personnel folders in step with the HR source",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.organisationsFile, "organisations", "", "Organisations file (overrides ORGANISATIONS_FILE)")
	cmd.PersistentFlags().StringVar(&g.stateStorage, "state-storage", "", "postgres or memory (overrides STATE_STORAGE)")

	cmd.AddCommand(newServeCmd(&g))
	cmd.AddCommand(newRunCmd(&g, "bulk"))
	cmd.AddCommand(newRunCmd(&g, "delta"))
	cmd.AddCommand(newRunCmd(&g, "retry"))
	cmd.AddCommand(newProvisionCmd(&g))
	cmd.AddCommand(newPreviewCmd(&g))
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
