package persistence

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/provisioning"
)

// MemoryRepository keeps provisioning records in process memory with the same version
// semantics as RecordRepository.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]provisioning.Record
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: map[string]provisioning.Record{}, now: time.Now}
}

// SetClock replaces the clock stamping Created and LastModified.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryRepository) Get(_ context.Context, id string) (provisioning.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return provisioning.Record{}, provisioning.ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, rec provisioning.Record) (provisioning.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	stored, exists := r.records[rec.ID]
	switch {
	case rec.IsNew() && exists:
		return provisioning.Record{}, provisioning.ErrVersionConflict
	case rec.IsNew():
		rec.Created = now
	case !exists || stored.Version != rec.Version:
		return provisioning.Record{}, provisioning.ErrVersionConflict
	default:
		rec.Created = stored.Created
	}
	rec.Version++
	rec.LastModified = now
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *MemoryRepository) List(_ context.Context, params provisioning.ListParams) ([]provisioning.Record, error) {
	r.mu.RLock()
	out := make([]provisioning.Record, 0, len(r.records))
	for _, rec := range r.records {
		if params.OrgID != "" && rec.OrgID != params.OrgID {
			continue
		}
		if !params.Since.IsZero() && rec.LastModified.Before(params.Since) {
			continue
		}
		if len(params.Statuses) > 0 && !slices.Contains(params.Statuses, rec.Status) {
			continue
		}
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].ID < out[j].ID
	})
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}
