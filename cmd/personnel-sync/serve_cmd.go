package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/personnel-sync/modules/personnel/presentation/controllers"
	"github.com/iota-uz/personnel-sync/modules/personnel/services"
	"github.com/iota-uz/personnel-sync/pkg/metrics"
	"github.com/iota-uz/personnel-sync/pkg/middleware"
	"github.com/iota-uz/personnel-sync/pkg/server"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the scheduled bulk, delta and retry passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			ctrls := []server.Controller{controllers.NewPersonnelAPIController(a.orch, a.state)}
			if a.conf.Prometheus.Enabled {
				ctrls = append(ctrls, metrics.NewPrometheusController(a.conf.Prometheus.Path))
			}
			mws := []mux.MiddlewareFunc{
				middleware.WithLogger(a.logger, middleware.LoggerOptions{RequestIDHeader: a.conf.RequestIDHeader}),
				middleware.Cors(a.conf.Origins()...),
			}
			if guard := a.conf.OpsGuard; guard.Enabled {
				metricsPath := a.conf.Prometheus.Path
				mws = append(mws, middleware.OpsGuard(middleware.OpsGuardOptions{
					CIDRs:         guard.CIDRs,
					Token:         guard.Token,
					BasicAuthUser: guard.BasicAuthUser,
					BasicAuthPass: guard.BasicAuthPass,
					RealIPHeader:  guard.RealIPHeader,
					Guarded: func(r *http.Request) bool {
						return r.Method == http.MethodPost || r.URL.Path == metricsPath
					},
				}))
			}
			srv := server.NewHTTPServer(ctrls, mws...)

			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				a.logger.WithField("address", a.conf.SocketAddress).Info("listening")
				return srv.Start(ctx, a.conf.SocketAddress)
			})
			if !noScheduler {
				sched := services.NewScheduler(a.orch, services.ScheduleOptions{
					BulkInterval:  a.conf.Schedule.BulkInterval,
					DeltaInterval: a.conf.Schedule.DeltaInterval,
					RetryInterval: a.conf.Schedule.RetryInterval,
					InitialDelay:  a.conf.Schedule.InitialDelay,
					Logger:        a.logger.WithField("component", "scheduler"),
				})
				group.Go(func() error { return sched.Run(ctx) })
			}
			if err := group.Wait(); err != nil {
				return withCode(exitRun, err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Serve the API without scheduled passes")
	return cmd
}
