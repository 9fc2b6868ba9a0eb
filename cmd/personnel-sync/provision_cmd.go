package main

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/iota-uz/personnel-sync/modules/personnel/services"
	"github.com/iota-uz/personnel-sync/pkg/configuration"
)

func newProvisionCmd(g *globalOptions) *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "provision <username>",
		Short: "Reconcile the personnel folder of one username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.orch.ProvisionOne(ctx, orgID, args[0])
			if err != nil {
				return singleError(err)
			}
			return writeJSONLine(res)
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "Organisation id (required)")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newPreviewCmd(g *globalOptions) *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "preview <username>",
		Short: "Print the personnel folder of one username without writing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.orch.Preview(ctx, orgID, args[0])
			if err != nil {
				return singleError(err)
			}
			return writeJSONLine(res)
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "Organisation id (required)")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func singleError(err error) error {
	switch {
	case errors.Is(err, configuration.ErrNoConfiguration), errors.Is(err, services.ErrUsernameRequired):
		return withCode(exitUsage, err)
	default:
		return withCode(exitUpstream, err)
	}
}
