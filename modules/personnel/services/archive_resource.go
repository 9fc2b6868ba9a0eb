package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
	"github.com/iota-uz/personnel-sync/pkg/ratelimit"
)

type ArchiveResourceOptions struct {
	// Pacer spaces the status checks of rewritten archive resources.
	Pacer  *ratelimit.Pacer
	Logger *logrus.Entry
}

// ArchiveResourceService rewrites the archive resources (arkivressurs) linked to the given
// employees so that the archive refreshes them from the HR source.
type ArchiveResourceService struct {
	opts ArchiveResourceOptions
	m    *metrics
}

func NewArchiveResourceService(opts ArchiveResourceOptions) *ArchiveResourceService {
	if opts.Pacer == nil {
		opts.Pacer = ratelimit.NewPacer(ratelimit.PacerOptions{Interval: 10 * time.Second})
	}
	if opts.Logger == nil {
		opts.Logger = logrusNop()
	}
	return &ArchiveResourceService{opts: opts, m: getMetrics()}
}

// Run puts back every archive resource linked to one of the resources' self links and checks
// the returned status location. Failures of single resources are logged and skipped. It
// returns the number of resources whose status was checked.
func (s *ArchiveResourceService) Run(ctx context.Context, oc *OrgContext, resources []employment.Resource) (int, error) {
	log := s.opts.Logger.WithField("org_id", oc.ID())

	selfLinks := map[string]struct{}{}
	for _, r := range resources {
		for _, l := range r.SelfLinks {
			selfLinks[l] = struct{}{}
		}
	}
	if len(selfLinks) == 0 {
		return 0, nil
	}

	all, err := oc.Archive.ArchiveResources(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "fetch archive resources")
	}

	key := "archive:" + oc.ID()
	updated := 0
	for _, ar := range all {
		if ar.SelfLink == "" || !linked(ar.PersonnelResourceLinks, selfLinks) {
			continue
		}
		resp, err := oc.Archive.PutArchiveResource(ctx, ar)
		if err != nil {
			log.WithError(err).WithField("archive_resource", ar.SelfLink).Info("archive resource update failed")
			s.m.archiveResourceTotal.WithLabelValues(oc.ID(), "put_error").Inc()
			continue
		}
		if resp.Location == "" {
			continue
		}
		if err := s.opts.Pacer.Wait(ctx, key); err != nil {
			return updated, err
		}
		status, err := oc.Archive.Head(ctx, resp.Location)
		if err != nil {
			log.WithError(err).WithField("location", resp.Location).Info("archive resource status failed")
			s.m.archiveResourceTotal.WithLabelValues(oc.ID(), "status_error").Inc()
			continue
		}
		log.WithFields(logrus.Fields{"status": status.Status, "location": status.Location}).Info("archive resource updated")
		s.m.archiveResourceTotal.WithLabelValues(oc.ID(), "ok").Inc()
		updated++
	}
	log.WithField("updated", updated).Info("archive resource pass finished")
	return updated, nil
}

func linked(links []string, selfLinks map[string]struct{}) bool {
	for _, l := range links {
		if _, ok := selfLinks[l]; ok {
			return true
		}
	}
	return false
}
