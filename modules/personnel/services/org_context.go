package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/folder"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/provisioning"
	"github.com/iota-uz/personnel-sync/pkg/configuration"
)

var ErrNoAdministrativeUnits = errors.New("no administrative units found")

// UnitSet is the set of administrative unit ids of an organisation. A published set is never
// mutated.
type UnitSet map[string]struct{}

func NewUnitSet(ids ...string) UnitSet {
	s := make(UnitSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s UnitSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// OrgContext is the per-organisation state shared by the runs of that organisation: its
// collaborators, its administrative unit cache and its delta cursor.
type OrgContext struct {
	Org       configuration.Organisation
	Source    Source
	Archive   Archive
	Masker    provisioning.Masker
	Validator folder.Validator

	cursors CursorStore

	mu          sync.RWMutex
	units       UnitSet
	refreshedAt time.Time
}

func NewOrgContext(org configuration.Organisation, source Source, arch Archive, masker provisioning.Masker, cursors CursorStore) *OrgContext {
	if masker == nil {
		masker = provisioning.LegacyMasker{}
	}
	return &OrgContext{
		Org:       org,
		Source:    source,
		Archive:   arch,
		Masker:    masker,
		Validator: folder.NewValidator(org.Excluded),
		cursors:   cursors,
		units:     UnitSet{},
	}
}

func (c *OrgContext) ID() string {
	return c.Org.ID
}

func (c *OrgContext) Units() UnitSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.units
}

func (c *OrgContext) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// RefreshUnits replaces the unit cache. An empty answer keeps the previous set.
func (c *OrgContext) RefreshUnits(ctx context.Context, now time.Time) error {
	ids, err := c.Source.AdministrativeUnitIDs(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch administrative units")
	}
	if len(ids) == 0 {
		return ErrNoAdministrativeUnits
	}
	units := NewUnitSet(ids...)

	c.mu.Lock()
	c.units = units
	c.refreshedAt = now
	c.mu.Unlock()

	getMetrics().unitCacheSize.WithLabelValues(c.ID()).Set(float64(len(units)))
	return nil
}

// EnsureUnits refreshes the unit cache when it is empty or older than ttl. A failed refresh
// of a non-empty cache keeps the stale set and returns nil.
func (c *OrgContext) EnsureUnits(ctx context.Context, now time.Time, ttl time.Duration) error {
	c.mu.RLock()
	empty := len(c.units) == 0
	stale := ttl > 0 && now.Sub(c.refreshedAt) >= ttl
	c.mu.RUnlock()

	if !empty && !stale {
		return nil
	}
	if err := c.RefreshUnits(ctx, now); err != nil {
		if empty {
			return err
		}
	}
	return nil
}

func (c *OrgContext) Criteria(now time.Time) employment.Criteria {
	return employment.Criteria{
		Now:        now,
		StartGrace: c.Org.StartGrace(),
		Categories: c.Org.Categories,
	}
}

func (c *OrgContext) Identity(nin string) string {
	return provisioning.Identity(c.ID(), c.Masker, nin)
}

func (c *OrgContext) Cursor(ctx context.Context) (int64, error) {
	if c.cursors == nil {
		return 0, errors.New("no cursor store")
	}
	return c.cursors.Get(ctx, c.ID())
}

func (c *OrgContext) AdvanceCursor(ctx context.Context, value int64) error {
	if c.cursors == nil {
		return errors.New("no cursor store")
	}
	if err := c.cursors.Set(ctx, c.ID(), value); err != nil {
		return err
	}
	getMetrics().deltaCursor.WithLabelValues(c.ID()).Set(float64(value))
	return nil
}

// Registry holds the organisation contexts by id.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*OrgContext
	order []string
}

func NewRegistry(contexts ...*OrgContext) *Registry {
	r := &Registry{byID: make(map[string]*OrgContext, len(contexts))}
	for _, oc := range contexts {
		r.Add(oc)
	}
	return r
}

func (r *Registry) Add(oc *OrgContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[oc.ID()]; !ok {
		r.order = append(r.order, oc.ID())
	}
	r.byID[oc.ID()] = oc
}

// Get returns configuration.ErrNoConfiguration for an unknown organisation.
func (r *Registry) Get(orgID string) (*OrgContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	oc, ok := r.byID[orgID]
	if !ok {
		return nil, errors.Wrapf(configuration.ErrNoConfiguration, "org %q", orgID)
	}
	return oc, nil
}

func (r *Registry) All() []*OrgContext {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*OrgContext, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
