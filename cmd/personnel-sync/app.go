package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/provisioning"
	"github.com/iota-uz/personnel-sync/modules/personnel/infrastructure/cursor"
	"github.com/iota-uz/personnel-sync/modules/personnel/infrastructure/fint"
	"github.com/iota-uz/personnel-sync/modules/personnel/infrastructure/persistence"
	"github.com/iota-uz/personnel-sync/modules/personnel/infrastructure/transform"
	"github.com/iota-uz/personnel-sync/modules/personnel/services"
	"github.com/iota-uz/personnel-sync/pkg/configuration"
	"github.com/iota-uz/personnel-sync/pkg/logging"
	"github.com/iota-uz/personnel-sync/pkg/ratelimit"
	"github.com/iota-uz/personnel-sync/pkg/retry"
)

// app is the wired service shared by every command.
type app struct {
	conf     *configuration.Configuration
	logger   *logrus.Logger
	registry *services.Registry
	repo     provisioning.Repository
	orch     *services.Orchestrator
	state    *services.StateService

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfiguration(g *globalOptions) (*configuration.Configuration, error) {
	conf, err := configuration.Load()
	if err != nil {
		return nil, withCode(exitConfig, err)
	}
	if g.organisationsFile != "" {
		conf.OrganisationsFile = g.organisationsFile
	}
	switch g.stateStorage {
	case "":
	case "postgres", "memory":
		conf.StateStorage = g.stateStorage
	default:
		return nil, withCode(exitUsage, fmt.Errorf("invalid --state-storage %q (expected postgres|memory)", g.stateStorage))
	}
	return conf, nil
}

func newApp(ctx context.Context, g *globalOptions) (*app, error) {
	conf, err := loadConfiguration(g)
	if err != nil {
		return nil, err
	}
	a := &app{conf: conf, logger: conf.Logger()}
	a.closers = append(a.closers, conf.Unload)

	if conf.OpenTelemetry.Enabled {
		a.closers = append(a.closers, logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL))
	}

	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	conf, logger := a.conf, a.logger

	orgs, err := configuration.LoadOrganisations(conf.OrganisationsFile)
	if err != nil {
		return withCode(exitConfig, err)
	}

	var rdb *redis.Client
	if conf.CursorStorage == "redis" || conf.RateLimit.Storage == "redis" {
		rdb = redis.NewClient(&redis.Options{Addr: conf.RedisURL})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return withCode(exitDB, errors.Wrap(err, "redis ping"))
		}
	}

	switch conf.StateStorage {
	case "memory":
		logger.Warn("provisioning state is kept in memory and lost on exit")
		a.repo = persistence.NewMemoryRepository()
	default:
		pool, err := connectDB(ctx, conf)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.repo = persistence.NewRecordRepository(pool)
	}

	var cursors services.CursorStore = cursor.NewMemoryStore()
	if conf.CursorStorage == "redis" {
		cursors = cursor.NewRedisStore(rdb)
	}

	submitStore := ratelimit.NewMemoryStore()
	if conf.RateLimit.Storage == "redis" {
		if submitStore, err = ratelimit.NewRedisStore(rdb); err != nil {
			return withCode(exitDB, err)
		}
	}

	chain := transform.NewChain(logger.WithField("component", "transform"))
	a.registry = services.NewRegistry()
	for _, org := range orgs.All() {
		oc, err := a.orgContext(org, cursors)
		if err != nil {
			return withCode(exitConfig, errors.Wrapf(err, "org %q", org.ID))
		}
		scripts, err := transform.LoadScripts(org.TransformationScripts)
		if err != nil {
			return withCode(exitConfig, errors.Wrapf(err, "org %q transformation scripts", org.ID))
		}
		chain.Set(org.ID, scripts)
		a.registry.Add(oc)
	}

	provision, err := services.NewProvisionService(a.repo, services.ProvisionOptions{
		Policy: retry.Policy{
			Mode:        retry.Mode(conf.Retry.Mode),
			BaseDelay:   conf.Retry.BaseDelay,
			MaxDelay:    conf.Retry.MaxDelay,
			MaxAttempts: conf.Retry.MaxAttempts,
			Timeout:     conf.Retry.Timeout,
			JitterMax:   conf.Retry.JitterMax,
		},
		Transformer: chain,
		Logger:      logger.WithField("component", "provision"),
	})
	if err != nil {
		return withCode(exitConfig, err)
	}

	sidePass := services.NewArchiveResourceService(services.ArchiveResourceOptions{
		Pacer:  ratelimit.NewPacer(ratelimit.PacerOptions{Interval: nonZero(conf.RateLimit.ArchiveResourceInterval), Store: submitStore}),
		Logger: logger.WithField("component", "archive_resource"),
	})
	a.orch = services.NewOrchestrator(a.registry, provision, a.repo, sidePass, services.OrchestratorOptions{
		Pacer:   ratelimit.NewPacer(ratelimit.PacerOptions{Interval: nonZero(conf.RateLimit.SubmitInterval), Store: submitStore}),
		UnitTTL: conf.Schedule.UnitRefreshTTL,
		Logger:  logger.WithField("component", "orchestrator"),
	})
	a.state = services.NewStateService(a.registry, a.repo, nil)
	return nil
}

func (a *app) orgContext(org configuration.Organisation, cursors services.CursorStore) (*services.OrgContext, error) {
	masker, err := provisioning.NewMasker(provisioning.MaskingMode(org.IdentityMasking), []byte(a.conf.IdentityMaskingKey))
	if err != nil {
		return nil, err
	}
	client, err := fint.NewClient(org, fint.Options{
		Timeout:         a.conf.HTTPTimeout,
		RequestIDHeader: a.conf.RequestIDHeader,
		Logger:          a.logger.WithFields(logrus.Fields{"component": "fint", "org_id": org.ID}),
	})
	if err != nil {
		return nil, err
	}
	return services.NewOrgContext(org, client, client, masker, cursors), nil
}

func connectDB(ctx context.Context, conf *configuration.Configuration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, withCode(exitDB, errors.Wrap(err, "connect database"))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, errors.Wrap(err, "ping database"))
	}
	return pool, nil
}

// nonZero keeps a configured zero interval from falling back to the pacer default.
func nonZero(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Nanosecond
	}
	return d
}
