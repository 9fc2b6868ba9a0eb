package services

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/folder"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/provisioning"
	"github.com/iota-uz/personnel-sync/pkg/ratelimit"
)

var (
	ErrNoAdmittedEmployment = errors.New("no admitted employment")
	ErrUsernameRequired     = errors.New("username is required")
)

type RunKind string

const (
	RunBulk  RunKind = "bulk"
	RunDelta RunKind = "delta"
	RunRetry RunKind = "retry"
	RunOne   RunKind = "one"
)

// RunSummary reports one organisation run.
type RunSummary struct {
	RunID      string          `json:"runId"`
	OrgID      string          `json:"orgId"`
	Kind       RunKind         `json:"kind"`
	Usernames  int             `json:"usernames"`
	Processed  int             `json:"processed"`
	Outcomes   map[Outcome]int `json:"outcomes"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	// ArchiveResources is the number of archive resources rewritten by the side pass.
	ArchiveResources int `json:"archiveResources,omitempty"`
}

// Result is the reconciliation of one username.
type Result struct {
	Username string               `json:"username"`
	Outcome  Outcome              `json:"outcome"`
	Record   *provisioning.Record `json:"record,omitempty"`
	Reason   string               `json:"reason,omitempty"`
}

// PreviewResult is the personnel folder a username would be reconciled with.
type PreviewResult struct {
	Username string         `json:"username"`
	Folder   *folder.Folder `json:"folder,omitempty"`
	Eligible bool           `json:"eligible"`
	Reason   string         `json:"reason,omitempty"`
}

type OrchestratorOptions struct {
	// Pacer spaces successive reconciliations of one organisation.
	Pacer *ratelimit.Pacer
	// UnitTTL is the age after which delta, retry and single runs refresh the unit cache.
	UnitTTL time.Duration
	Now     func() time.Time
	Logger  *logrus.Entry
}

func (o *OrchestratorOptions) setDefaults() {
	if o.Pacer == nil {
		o.Pacer = ratelimit.NewPacer(ratelimit.PacerOptions{})
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logrusNop()
	}
}

// Orchestrator drives the bulk, delta and retry runs of each organisation.
type Orchestrator struct {
	registry  *Registry
	provision *ProvisionService
	repo      provisioning.Repository
	sidePass  *ArchiveResourceService
	opts      OrchestratorOptions
	m         *metrics
	tracer    trace.Tracer
}

func NewOrchestrator(registry *Registry, provision *ProvisionService, repo provisioning.Repository, sidePass *ArchiveResourceService, opts OrchestratorOptions) *Orchestrator {
	opts.setDefaults()
	return &Orchestrator{
		registry:  registry,
		provision: provision,
		repo:      repo,
		sidePass:  sidePass,
		opts:      opts,
		m:         getMetrics(),
		tracer:    otel.Tracer(tracerName),
	}
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Bulk reconciles every employee of the organisation, at most limit of them when limit is
// positive.
func (o *Orchestrator) Bulk(ctx context.Context, orgID string, limit int) (summary RunSummary, err error) {
	oc, err := o.registry.Get(orgID)
	if err != nil {
		return summary, err
	}
	ctx, summary, done := o.begin(ctx, oc, RunBulk)
	defer func() { done(&summary, err) }()

	if err := oc.RefreshUnits(ctx, o.opts.Now()); err != nil {
		if len(oc.Units()) == 0 {
			return summary, err
		}
		o.log(oc, RunBulk).WithError(err).Warn("administrative unit refresh failed, using cached units")
	}

	resources, err := oc.Source.PersonnelResources(ctx)
	if err != nil {
		return summary, errors.Wrap(err, "fetch personnel resources")
	}

	var wg sync.WaitGroup
	if oc.Org.ArchiveResource && o.sidePass != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := o.sidePass.Run(ctx, oc, resources)
			if err != nil {
				o.log(oc, RunBulk).WithError(err).Error("archive resource pass failed")
			}
			summary.ArchiveResources = n
		}()
	}

	err = o.reconcileAll(ctx, oc, RunBulk, Usernames(resources, limit), &summary)
	wg.Wait()
	return summary, err
}

// Delta reconciles the employees changed since the organisation's cursor and advances it.
func (o *Orchestrator) Delta(ctx context.Context, orgID string) (summary RunSummary, err error) {
	oc, err := o.registry.Get(orgID)
	if err != nil {
		return summary, err
	}
	ctx, summary, done := o.begin(ctx, oc, RunDelta)
	defer func() { done(&summary, err) }()

	if err := oc.EnsureUnits(ctx, o.opts.Now(), o.opts.UnitTTL); err != nil {
		return summary, err
	}
	since, err := oc.Cursor(ctx)
	if err != nil {
		return summary, errors.Wrap(err, "read delta cursor")
	}
	resources, next, err := oc.Source.PersonnelResourcesSince(ctx, since)
	if err != nil {
		return summary, errors.Wrap(err, "fetch changed personnel resources")
	}
	if next > 0 {
		if err := oc.AdvanceCursor(ctx, next); err != nil {
			return summary, errors.Wrap(err, "advance delta cursor")
		}
	}
	o.log(oc, RunDelta).WithFields(logrus.Fields{"since": since, "next": next, "changed": len(resources)}).Debug("delta fetched")

	return summary, o.reconcileAll(ctx, oc, RunDelta, Usernames(resources, 0), &summary)
}

// Retry reconciles again every username whose record ended in INTERNAL_SERVER_ERROR.
func (o *Orchestrator) Retry(ctx context.Context, orgID string) (summary RunSummary, err error) {
	oc, err := o.registry.Get(orgID)
	if err != nil {
		return summary, err
	}
	ctx, summary, done := o.begin(ctx, oc, RunRetry)
	defer func() { done(&summary, err) }()

	records, err := o.repo.List(ctx, provisioning.ListParams{
		OrgID:    orgID,
		Statuses: []provisioning.Status{provisioning.StatusInternalServerError},
	})
	if err != nil {
		return summary, errors.Wrap(err, "list failed records")
	}
	if len(records) == 0 {
		return summary, nil
	}
	if err := oc.EnsureUnits(ctx, o.opts.Now(), o.opts.UnitTTL); err != nil {
		return summary, err
	}

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Username)
	}
	return summary, o.reconcileAll(ctx, oc, RunRetry, normalizeUsernames(names, 0), &summary)
}

// ProvisionOne reconciles a single username without pacing.
func (o *Orchestrator) ProvisionOne(ctx context.Context, orgID, username string) (Result, error) {
	oc, err := o.registry.Get(orgID)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(username) == "" {
		return Result{}, ErrUsernameRequired
	}
	if err := oc.EnsureUnits(ctx, o.opts.Now(), o.opts.UnitTTL); err != nil {
		return Result{}, err
	}
	res := o.reconcile(ctx, oc, strings.TrimSpace(username))
	o.m.runTotal.WithLabelValues(orgID, string(RunOne), "ok").Inc()
	return res, nil
}

// Preview builds the personnel folder of username without writing anything.
func (o *Orchestrator) Preview(ctx context.Context, orgID, username string) (PreviewResult, error) {
	oc, err := o.registry.Get(orgID)
	if err != nil {
		return PreviewResult{}, err
	}
	if err := oc.EnsureUnits(ctx, o.opts.Now(), o.opts.UnitTTL); err != nil {
		return PreviewResult{}, err
	}
	out := PreviewResult{Username: username}
	res, err := oc.Source.PersonnelResource(ctx, username)
	if err != nil {
		return out, errors.Wrap(err, "fetch personnel resource")
	}
	f, err := o.buildFolder(oc, res)
	out.Folder = f
	if err != nil {
		out.Reason = err.Error()
		return out, nil
	}
	out.Eligible = true
	return out, nil
}

func (o *Orchestrator) reconcileAll(ctx context.Context, oc *OrgContext, kind RunKind, usernames []string, summary *RunSummary) error {
	summary.Usernames = len(usernames)
	o.m.runUsernames.WithLabelValues(oc.ID(), string(kind)).Add(float64(len(usernames)))
	o.log(oc, kind).WithField("usernames", len(usernames)).Info("run started")

	key := "submit:" + oc.ID()
	for _, username := range usernames {
		if err := o.opts.Pacer.Wait(ctx, key); err != nil {
			return err
		}
		res := o.reconcile(ctx, oc, username)
		summary.Processed++
		summary.Outcomes[res.Outcome]++
	}
	return nil
}

// reconcile resolves, validates and provisions one username.
func (o *Orchestrator) reconcile(ctx context.Context, oc *OrgContext, username string) Result {
	log := o.opts.Logger.WithFields(logrus.Fields{"org_id": oc.ID(), "username": username})
	out := Result{Username: username}

	res, err := oc.Source.PersonnelResource(ctx, username)
	if err != nil {
		log.WithError(err).Error("fetch personnel resource")
		out.Outcome, out.Reason = OutcomeSourceError, err.Error()
		return out
	}
	f, err := o.buildFolder(oc, res)
	if err != nil {
		log.WithError(err).Trace("personnel folder not admissible")
		o.m.ineligibleTotal.WithLabelValues(oc.ID(), ineligibleReason(err)).Inc()
		out.Outcome, out.Reason = OutcomeIneligible, err.Error()
		return out
	}

	rec, outcome := o.provision.Provision(ctx, oc, f)
	out.Outcome, out.Record = outcome, &rec
	return out
}

func (o *Orchestrator) buildFolder(oc *OrgContext, res *employment.Resource) (*folder.Folder, error) {
	f, ok := BuildFolder(res, oc.Units(), oc.Criteria(o.opts.Now()))
	if !ok {
		return nil, ErrNoAdmittedEmployment
	}
	if err := oc.Validator.Validate(f); err != nil {
		return f, err
	}
	return f, nil
}

func ineligibleReason(err error) string {
	switch {
	case errors.Is(err, ErrNoAdmittedEmployment):
		return "no_employment"
	case errors.Is(err, folder.ErrLeaderIsSubject):
		return "leader_is_subject"
	case errors.Is(err, folder.ErrExcludedWorkplace):
		return "excluded_workplace"
	default:
		return "incomplete"
	}
}

// begin opens the run span and returns the function that closes it.
func (o *Orchestrator) begin(ctx context.Context, oc *OrgContext, kind RunKind) (context.Context, RunSummary, func(*RunSummary, error)) {
	orgID := oc.ID()
	summary := RunSummary{
		RunID:     uuid.NewString(),
		OrgID:     orgID,
		Kind:      kind,
		Outcomes:  map[Outcome]int{},
		StartedAt: o.opts.Now(),
	}
	ctx, span := o.tracer.Start(ctx, "personnel.run", trace.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.String("kind", string(kind)),
		attribute.String("run_id", summary.RunID),
	))

	done := func(s *RunSummary, err error) {
		s.FinishedAt = o.opts.Now()
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("usernames", s.Usernames), attribute.Int("processed", s.Processed))
		span.End()
		o.m.runTotal.WithLabelValues(orgID, string(kind), result).Inc()

		entry := o.opts.Logger.WithFields(logrus.Fields{
			"org_id":    orgID,
			"kind":      kind,
			"run_id":    s.RunID,
			"processed": s.Processed,
			"outcomes":  s.Outcomes,
			"duration":  s.FinishedAt.Sub(s.StartedAt).String(),
		})
		if err != nil {
			entry.WithError(err).Error("run failed")
			return
		}
		entry.Info("run finished")
	}
	return ctx, summary, done
}

func (o *Orchestrator) log(oc *OrgContext, kind RunKind) *logrus.Entry {
	return o.opts.Logger.WithFields(logrus.Fields{"org_id": oc.ID(), "kind": kind})
}

// Usernames returns the distinct non-empty usernames of resources in reverse lexicographic
// order, at most limit of them when limit is positive.
func Usernames(resources []employment.Resource, limit int) []string {
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, r.Username)
	}
	return normalizeUsernames(names, limit)
}

func normalizeUsernames(names []string, limit int) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	if limit > 0 && len(out) > limit {
		out = slices.Clone(out[:limit])
	}
	return out
}
