package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/archive"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/folder"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/provisioning"
	"github.com/iota-uz/personnel-sync/pkg/retry"
)

const tracerName = "github.com/iota-uz/personnel-sync/modules/personnel/services"

// Outcome is how one reconciliation ended.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeConflict    Outcome = "conflict"
	OutcomeBadRequest  Outcome = "bad_request"
	OutcomeServerError Outcome = "server_error"
	OutcomeGone        Outcome = "gone"
	// OutcomePending means the archive did not resolve the write before the retry policy gave up.
	OutcomePending Outcome = "pending"
	// OutcomeUnchanged means the archive answered an unexpected status; the record is untouched.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeFailed means nothing reached the archive.
	OutcomeFailed Outcome = "failed"

	OutcomeIneligible  Outcome = "ineligible"
	OutcomeSourceError Outcome = "source_error"
)

type ProvisionOptions struct {
	Policy      retry.Policy
	Transformer Transformer
	Logger      *logrus.Entry
	Now         func() time.Time
	// MaxMessageBytes bounds the archive answer stored as a record message.
	MaxMessageBytes int
}

func (o *ProvisionOptions) setDefaults() {
	if o.Logger == nil {
		o.Logger = logrusNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = defaultMaxMessageBytes
	}
}

// ProvisionService is the reconciliation engine: it writes one personnel folder to the
// archive, follows the asynchronous write to its final status and records the outcome.
type ProvisionService struct {
	repo   provisioning.Repository
	opts   ProvisionOptions
	m      *metrics
	tracer trace.Tracer
}

func NewProvisionService(repo provisioning.Repository, opts ProvisionOptions) (*ProvisionService, error) {
	if repo == nil {
		return nil, errors.New("provision service: repository is required")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()
	return &ProvisionService{
		repo:   repo,
		opts:   opts,
		m:      getMetrics(),
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Provision reconciles f for the organisation of oc. Failures are recorded on the returned
// record and logged, never returned.
func (s *ProvisionService) Provision(ctx context.Context, oc *OrgContext, f *folder.Folder) (provisioning.Record, Outcome) {
	ctx, span := s.tracer.Start(ctx, "personnel.provision", trace.WithAttributes(
		attribute.String("org_id", oc.ID()),
		attribute.String("username", f.Username()),
	))
	defer span.End()

	start := time.Now()
	rec, outcome := s.provision(ctx, oc, f)

	span.SetAttributes(attribute.String("outcome", string(outcome)))
	switch outcome {
	case OutcomeCreated, OutcomePending:
	default:
		span.SetStatus(codes.Error, string(outcome))
	}
	s.m.provisionTotal.WithLabelValues(oc.ID(), string(outcome)).Inc()
	s.m.provisionDuration.WithLabelValues(oc.ID(), string(outcome)).Observe(time.Since(start).Seconds())
	return rec, outcome
}

func (s *ProvisionService) provision(ctx context.Context, oc *OrgContext, f *folder.Folder) (provisioning.Record, Outcome) {
	log := s.opts.Logger.WithFields(logrus.Fields{"org_id": oc.ID(), "username": f.Username()})

	id := oc.Identity(f.NIN())
	rec, err := s.repo.Get(ctx, id)
	switch {
	case errors.Is(err, provisioning.ErrNotFound):
		rec = provisioning.Record{ID: id, OrgID: oc.ID()}
	case err != nil:
		log.WithError(err).Error("load provisioning record")
		return provisioning.Record{ID: id, OrgID: oc.ID()}, OutcomeFailed
	}
	prior := rec
	rec.Username, rec.Leader, rec.Workplace = f.Username(), f.Leader(), f.Workplace()

	payload := s.transform(ctx, oc, f, log)

	var resp archive.Response
	if rec.HasAssociation() {
		log.WithField("association", rec.Association).Debug("update personnel folder")
		resp, err = oc.Archive.Update(ctx, rec.Association, payload)
	} else {
		log.Debug("create personnel folder")
		resp, err = oc.Archive.Create(ctx, payload)
	}
	if err != nil {
		var se *archive.StatusError
		if errors.As(err, &se) {
			return s.settle(ctx, oc, rec, se, log)
		}
		log.WithError(err).Error("submit personnel folder")
		return rec, OutcomeFailed
	}
	if resp.Location == "" {
		log.WithField("status", resp.Status).Error("archive accepted personnel folder without status location")
		return rec, OutcomeUnchanged
	}

	rec.MarkPending(f.Username(), f.Leader(), f.Workplace())
	rec = s.save(ctx, rec, log)

	final, attempts, err := retry.Poll(ctx, s.opts.Policy, func(ctx context.Context, attempt int) (retry.Result[archive.Response], error) {
		r, err := oc.Archive.PollStatus(ctx, resp.Location)
		if err != nil {
			return retry.Result[archive.Response]{}, err
		}
		if r.Accepted() {
			log.WithField("attempt", attempt).Debug("personnel folder status pending")
			return retry.Pending[archive.Response](), nil
		}
		return retry.Final(r), nil
	})
	s.m.pollAttempts.WithLabelValues(oc.ID()).Observe(float64(attempts))

	if err != nil {
		var se *archive.StatusError
		switch {
		case errors.As(err, &se):
			settled, outcome := s.settle(ctx, oc, rec, se, log)
			if outcome == OutcomeUnchanged {
				return s.restore(ctx, prior, settled, log), outcome
			}
			return settled, outcome
		case errors.Is(err, retry.ErrExhausted), errors.Is(err, retry.ErrTimeout):
			log.WithError(err).WithField("attempts", attempts).Warn("personnel folder status still pending")
		default:
			log.WithError(err).Error("poll personnel folder status")
		}
		return rec, OutcomePending
	}

	if !final.Redirect() || final.Location == "" {
		log.WithField("status", final.Status).Error("unexpected personnel folder status")
		return s.restore(ctx, prior, rec, log), OutcomeUnchanged
	}

	rec.MarkCreated(final.Location)
	return s.save(ctx, rec, log), OutcomeCreated
}

// settle records a definitive error answer of the archive.
func (s *ProvisionService) settle(ctx context.Context, oc *OrgContext, rec provisioning.Record, se *archive.StatusError, log *logrus.Entry) (provisioning.Record, Outcome) {
	log = log.WithField("status", se.Status)

	var outcome Outcome
	switch se.Status {
	case http.StatusConflict:
		matches, err := archive.ConflictMatches(se.Body)
		switch {
		case err != nil:
			rec.MarkFailed(provisioning.StatusConflict, truncateString("unreadable conflict response: "+err.Error(), s.opts.MaxMessageBytes))
			outcome = OutcomeConflict
		case len(matches) == 1 && matches[0] != "":
			rec.MarkCreated(matches[0])
			outcome = OutcomeCreated
		default:
			rec.MarkFailed(provisioning.StatusConflict, fmt.Sprintf("%d matching personnel folders in archive", len(matches)))
			outcome = OutcomeConflict
		}
	case http.StatusBadRequest:
		rec.MarkFailed(provisioning.StatusBadRequest, truncateString(string(se.Body), s.opts.MaxMessageBytes))
		rec.Association = ""
		outcome = OutcomeBadRequest
	case http.StatusInternalServerError:
		rec.MarkFailed(provisioning.StatusInternalServerError, truncateString(string(se.Body), s.opts.MaxMessageBytes))
		outcome = OutcomeServerError
	case http.StatusGone:
		rec.MarkGone()
		outcome = OutcomeGone
	default:
		log.WithError(se).Error("unexpected archive status")
		return rec, OutcomeUnchanged
	}

	log.WithField("outcome", outcome).Info("archive rejected personnel folder")
	if rec.OrgID == "" {
		rec.OrgID = oc.ID()
	}
	return s.save(ctx, rec, log), outcome
}

// restore writes back the rest state rec had before its pending write. A record that was
// never at rest keeps its pending status.
func (s *ProvisionService) restore(ctx context.Context, prior, rec provisioning.Record, log *logrus.Entry) provisioning.Record {
	if !prior.Status.Terminal() {
		return rec
	}
	rec.Status, rec.Message, rec.Association = prior.Status, prior.Message, prior.Association
	return s.save(ctx, rec, log)
}

// save writes rec and returns the stored record. A failed write is logged with the
// attempted record and rec is returned unchanged.
func (s *ProvisionService) save(ctx context.Context, rec provisioning.Record, log *logrus.Entry) provisioning.Record {
	stored, err := s.repo.Upsert(ctx, rec)
	if err != nil {
		reason := "other"
		if errors.Is(err, provisioning.ErrVersionConflict) {
			reason = "version_conflict"
		}
		s.m.saveFailures.WithLabelValues(rec.OrgID, reason).Inc()
		log.WithError(err).WithField("record", fmt.Sprintf("%+v", rec)).Error("save provisioning record")
		return rec
	}
	return stored
}

// transform runs the organisation's transformation scripts. A failing script leaves the
// payload as the previous scripts made it.
func (s *ProvisionService) transform(ctx context.Context, oc *OrgContext, f *folder.Folder, log *logrus.Entry) any {
	if s.opts.Transformer == nil {
		return f
	}
	doc, err := toDocument(f)
	if err != nil {
		log.WithError(err).Error("encode personnel folder for transformation")
		return f
	}
	out, err := s.opts.Transformer.Transform(ctx, oc.ID(), doc)
	if err != nil {
		log.WithError(err).Warn("transformation failed")
	}
	if out == nil {
		return doc
	}
	return out
}

func toDocument(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
