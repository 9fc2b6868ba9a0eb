package provisioning

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	ErrNotFound        = errors.New("provisioning record not found")
	ErrVersionConflict = errors.New("provisioning record was modified concurrently")
)

type ListParams struct {
	OrgID string
	// Since excludes records last modified before it; zero means no lower bound.
	Since    time.Time
	Statuses []Status
	Limit    int
}

// Repository is the state store of provisioning records.
type Repository interface {
	// Get returns ErrNotFound when no record has the id.
	Get(ctx context.Context, id string) (Record, error)
	// Upsert writes the record if its version matches the stored one (0 for a new record)
	// and returns the stored record. A mismatch returns ErrVersionConflict.
	Upsert(ctx context.Context, r Record) (Record, error)
	// List returns matching records ordered by last modification, newest first.
	List(ctx context.Context, params ListParams) ([]Record, error)
}
