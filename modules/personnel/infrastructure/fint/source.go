package fint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/folder"
)

// PersonnelResource runs the personnel resource GraphQL query. A username unknown to the
// source returns nil without error.
func (c *Client) PersonnelResource(ctx context.Context, username string) (*employment.Resource, error) {
	resp, err := c.do(ctx, http.MethodPost, c.endpoint(c.org.Endpoints.GraphQL), graphQLRequest{
		Query:     c.query,
		Variables: map[string]any{usernameVariable: username},
	})
	if err != nil {
		return nil, err
	}

	var out gqlPersonnelResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, errors.Wrap(err, "decode graphql response")
	}
	if len(out.Errors) > 0 {
		return nil, errors.Errorf("graphql: %s", out.Errors[0].Message)
	}
	if out.Data == nil || out.Data.Personnel == nil {
		return nil, nil
	}
	return toResource(out.Data.Personnel), nil
}

// PersonnelResources lists every personnel resource with its username and self links.
func (c *Client) PersonnelResources(ctx context.Context) ([]employment.Resource, error) {
	return c.personnelResources(ctx, c.endpoint(c.org.Endpoints.PersonnelResource))
}

// PersonnelResourcesSince lists personnel resources changed since the given cursor and
// returns the source's last-updated timestamp to use as the next cursor. The timestamp is
// read before the listing so that changes made while listing are seen again next time.
func (c *Client) PersonnelResourcesSince(ctx context.Context, since int64) ([]employment.Resource, int64, error) {
	base := c.endpoint(c.org.Endpoints.PersonnelResource)

	var lu lastUpdated
	if err := c.getJSON(ctx, base+"/last-updated", &lu); err != nil {
		return nil, 0, err
	}
	next, err := lu.LastUpdated.Int64()
	if err != nil {
		return nil, 0, errors.Wrapf(err, "parse lastUpdated %q", lu.LastUpdated)
	}

	q := url.Values{}
	q.Set("sinceTimeStamp", strconv.FormatInt(since, 10))
	resources, err := c.personnelResources(ctx, base+"?"+q.Encode())
	if err != nil {
		return nil, 0, err
	}
	return resources, next, nil
}

func (c *Client) personnelResources(ctx context.Context, target string) ([]employment.Resource, error) {
	var col collection[personnelEntry]
	if err := c.getJSON(ctx, target, &col); err != nil {
		return nil, err
	}
	out := make([]employment.Resource, 0, len(col.Embedded.Entries))
	for _, e := range col.Embedded.Entries {
		out = append(out, employment.Resource{
			Username:  e.Username.value(),
			SelfLinks: hrefs(e.Links, "self"),
		})
	}
	return out, nil
}

// AdministrativeUnitIDs returns the organisation element ids linked from the archive's
// administrative units.
func (c *Client) AdministrativeUnitIDs(ctx context.Context) ([]string, error) {
	var col collection[administrativeUnitEntry]
	if err := c.getJSON(ctx, c.endpoint(c.org.Endpoints.AdministrativeUnit), &col); err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range col.Embedded.Entries {
		for _, href := range hrefs(e.Links, "organisasjonselement") {
			if id := folder.LastSegment(href); id != "" && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
