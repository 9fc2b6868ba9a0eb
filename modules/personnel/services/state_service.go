package services

import (
	"context"
	"io"
	"slices"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/provisioning"
)

const exportSheet = "Personalmapper"

var exportHeader = []any{"Brukernavn", "Leder", "Arbeidssted", "Status", "Melding", "Lenke", "Opprettet", "Sist endret"}

type StateFilter struct {
	Statuses []provisioning.Status
	// Query keeps records whose username fuzzily matches it, best match first.
	Query string
}

// StateService reads the provisioning records of an organisation within its history window.
type StateService struct {
	registry *Registry
	repo     provisioning.Repository
	now      func() time.Time
}

func NewStateService(registry *Registry, repo provisioning.Repository, now func() time.Time) *StateService {
	if now == nil {
		now = time.Now
	}
	return &StateService{registry: registry, repo: repo, now: now}
}

// List returns the records modified within the organisation's history window, newest first.
func (s *StateService) List(ctx context.Context, orgID string, filter StateFilter) ([]provisioning.Record, error) {
	oc, err := s.registry.Get(orgID)
	if err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, errors.Errorf("unknown status %q", st)
		}
	}

	params := provisioning.ListParams{OrgID: orgID, Statuses: filter.Statuses}
	if window := oc.Org.HistoryLimit(); window > 0 {
		params.Since = s.now().Add(-window)
	}
	records, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "list provisioning records")
	}
	if filter.Query == "" {
		return records, nil
	}

	usernames := make([]string, len(records))
	for i, r := range records {
		usernames[i] = r.Username
	}
	ranks := fuzzy.RankFindNormalizedFold(filter.Query, usernames)
	sort.Stable(ranks)

	out := make([]provisioning.Record, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, records[rank.OriginalIndex])
	}
	return out, nil
}

// Export writes the records List returns as an xlsx workbook.
func (s *StateService) Export(ctx context.Context, orgID string, filter StateFilter, w io.Writer) error {
	records, err := s.List(ctx, orgID, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return errors.Wrap(err, "name sheet")
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.Username,
			r.Leader,
			r.Workplace,
			string(r.Status),
			r.Message,
			r.Association,
			formatTime(r.Created),
			formatTime(r.LastModified),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write row %d", i+2)
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "H", 20); err != nil {
		return errors.Wrap(err, "set column width")
	}
	if err := f.AutoFilter(exportSheet, "A1:H1", nil); err != nil {
		return errors.Wrap(err, "set auto filter")
	}
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

// ParseStatuses parses status names, ignoring empty ones.
func ParseStatuses(names []string) ([]provisioning.Status, error) {
	var out []provisioning.Status
	for _, n := range names {
		if n == "" {
			continue
		}
		st := provisioning.Status(n)
		if !st.Valid() {
			return nil, errors.Errorf("unknown status %q, expected one of %v", n, provisioning.Statuses())
		}
		if !slices.Contains(out, st) {
			out = append(out, st)
		}
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
