package main

import (
	"github.com/spf13/cobra"

	"github.com/iota-uz/personnel-sync/modules/personnel/infrastructure/persistence"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the provisioning state schema",
	}
	cmd.AddCommand(
		migrateSubCmd("up", "Apply every pending migration"),
		migrateSubCmd("down", "Roll back the most recent migration"),
		migrateSubCmd("status", "Print the state of every migration"),
	)
	return cmd
}

func migrateSubCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conf, err := loadConfiguration(&globalOptions{})
			if err != nil {
				return err
			}
			defer conf.Unload()

			pool, err := connectDB(ctx, conf)
			if err != nil {
				return err
			}
			defer pool.Close()

			log := conf.Logger().WithField("component", "migrate")
			switch action {
			case "up":
				err = persistence.Migrate(ctx, pool, log)
			case "down":
				err = persistence.MigrateDown(ctx, pool, log)
			default:
				var statuses []persistence.MigrationStatus
				if statuses, err = persistence.MigrationStatuses(ctx, pool); err == nil {
					for _, s := range statuses {
						if err = writeJSONLine(s); err != nil {
							return err
						}
					}
				}
			}
			if err != nil {
				return withCode(exitDB, err)
			}
			return nil
		},
	}
}
