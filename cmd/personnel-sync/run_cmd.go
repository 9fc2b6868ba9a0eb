package main

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/iota-uz/personnel-sync/modules/personnel/services"
	"github.com/iota-uz/personnel-sync/pkg/configuration"
)

type runOptions struct {
	orgs  []string
	limit int
}

// newRunCmd builds the bulk, delta and retry commands. Each runs once for the given
// organisations, or for every organisation, and prints one summary line per organisation.
func newRunCmd(g *globalOptions, kind string) *cobra.Command {
	var opts runOptions
	short := map[string]string{
		"bulk":  "Reconcile every employee of the organisations",
		"delta": "Reconcile the employees changed since the last delta run",
		"retry": "Reconcile again the employees whose folder ended in INTERNAL_SERVER_ERROR",
	}[kind]

	cmd := &cobra.Command{
		Use:   kind,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.limit < 0 {
				return withCode(exitUsage, fmt.Errorf("--limit must be non-negative"))
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()
			return runPasses(ctx, a, kind, opts, cmd.Flags().Changed("limit"))
		},
	}
	cmd.Flags().StringSliceVar(&opts.orgs, "org", nil, "Organisation id (repeatable, default all)")
	if kind == "bulk" {
		cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum usernames per organisation (default the organisation's bulkLimit, 0 unlimited)")
	}
	return cmd
}

func runPasses(ctx context.Context, a *app, kind string, opts runOptions, limitSet bool) error {
	orgIDs := opts.orgs
	if len(orgIDs) == 0 {
		orgIDs = a.registry.IDs()
	}

	var failed int
	for _, orgID := range orgIDs {
		var (
			summary services.RunSummary
			err     error
		)
		switch kind {
		case "bulk":
			limit := opts.limit
			if !limitSet {
				if oc, gerr := a.registry.Get(orgID); gerr == nil {
					limit = oc.Org.BulkLimit
				}
			}
			summary, err = a.orch.Bulk(ctx, orgID, limit)
		case "delta":
			summary, err = a.orch.Delta(ctx, orgID)
		case "retry":
			summary, err = a.orch.Retry(ctx, orgID)
		}
		if err != nil {
			if errors.Is(err, configuration.ErrNoConfiguration) {
				return withCode(exitUsage, err)
			}
			if ctx.Err() != nil {
				return withCode(exitRun, ctx.Err())
			}
			a.logger.WithError(err).WithField("org_id", orgID).Error(kind + " failed")
			failed++
			continue
		}
		if err := writeJSONLine(summary); err != nil {
			return err
		}
	}
	if failed > 0 {
		return withCode(exitUpstream, fmt.Errorf("%s failed for %d of %d organisations", kind, failed, len(orgIDs)))
	}
	return nil
}
