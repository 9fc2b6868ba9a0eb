// Package services holds the personnel folder reconciliation engine and the runs that drive it.
package services

import (
	"context"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/archive"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
)

// Source is the HR system of one organisation.
type Source interface {
	// PersonnelResource returns nil without error for an unknown username.
	PersonnelResource(ctx context.Context, username string) (*employment.Resource, error)
	PersonnelResources(ctx context.Context) ([]employment.Resource, error)
	// PersonnelResourcesSince returns the resources changed since the cursor and the next cursor.
	PersonnelResourcesSince(ctx context.Context, since int64) ([]employment.Resource, int64, error)
	AdministrativeUnitIDs(ctx context.Context) ([]string, error)
}

// Archive is the archive system of one organisation. Error statuses are returned as
// *archive.StatusError.
type Archive interface {
	Create(ctx context.Context, payload any) (archive.Response, error)
	Update(ctx context.Context, uri string, payload any) (archive.Response, error)
	PollStatus(ctx context.Context, location string) (archive.Response, error)
	ArchiveResources(ctx context.Context) ([]archive.Resource, error)
	PutArchiveResource(ctx context.Context, r archive.Resource) (archive.Response, error)
	Head(ctx context.Context, location string) (archive.Response, error)
}

// Transformer applies an organisation's transformation scripts to an outgoing folder document.
type Transformer interface {
	Transform(ctx context.Context, orgID string, doc map[string]any) (map[string]any, error)
}

// CursorStore keeps the delta cursor of each organisation.
type CursorStore interface {
	Get(ctx context.Context, orgID string) (int64, error)
	Set(ctx context.Context, orgID string, value int64) error
}
