package fint

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/archive"
)

// Create posts a new personnel folder. The archive answers 202 with a status location.
func (c *Client) Create(ctx context.Context, payload any) (archive.Response, error) {
	return c.write(ctx, http.MethodPost, c.endpoint(c.org.Endpoints.PersonnelFolder), payload)
}

// Update replaces the personnel folder at uri.
func (c *Client) Update(ctx context.Context, uri string, payload any) (archive.Response, error) {
	return c.write(ctx, http.MethodPut, uri, payload)
}

// PollStatus reads a status location without following its redirect.
func (c *Client) PollStatus(ctx context.Context, location string) (archive.Response, error) {
	return c.write(ctx, http.MethodGet, location, nil)
}

func (c *Client) Head(ctx context.Context, location string) (archive.Response, error) {
	return c.write(ctx, http.MethodHead, location, nil)
}

func (c *Client) ArchiveResources(ctx context.Context) ([]archive.Resource, error) {
	var col collection[json.RawMessage]
	if err := c.getJSON(ctx, c.endpoint(c.org.Endpoints.ArchiveResource), &col); err != nil {
		return nil, err
	}
	out := make([]archive.Resource, 0, len(col.Embedded.Entries))
	for _, raw := range col.Embedded.Entries {
		var entry struct {
			Links map[string][]halLink `json:"_links"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, errors.Wrap(err, "decode archive resource")
		}
		self := hrefs(entry.Links, "self")
		r := archive.Resource{
			PersonnelResourceLinks: hrefs(entry.Links, "personalressurs"),
			Raw:                    raw,
		}
		if len(self) > 0 {
			r.SelfLink = self[0]
		}
		out = append(out, r)
	}
	return out, nil
}

// PutArchiveResource writes r back unchanged to its self link.
func (c *Client) PutArchiveResource(ctx context.Context, r archive.Resource) (archive.Response, error) {
	if r.SelfLink == "" {
		return archive.Response{}, errors.New("archive resource has no self link")
	}
	return c.write(ctx, http.MethodPut, r.SelfLink, r.Raw)
}
