package employment

import (
	"slices"
	"sort"
	"time"
)

// IsActive reports whether now falls within the employment's validity period.
//
// The period is [start, end), with the start shifted forward by grace so an employment
// starting at or before now+grace is admitted. A missing end is open-ended.
func IsActive(e Employment, now time.Time, grace time.Duration) bool {
	if e.Period == nil || e.Period.Start.IsZero() {
		return false
	}
	if e.Period.Start.After(now.Add(grace)) {
		return false
	}
	if e.Period.End == nil {
		return true
	}
	return now.Before(*e.Period.End)
}

func IsPrimary(e Employment) bool {
	return e.Primary
}

func HasCategory(e Employment, allowed []string) bool {
	category := e.Category()
	if category == "" {
		return false
	}
	return slices.Contains(allowed, category)
}

// Criteria selects the employment a personnel folder is built from.
type Criteria struct {
	Now        time.Time
	StartGrace time.Duration
	Categories []string
}

func (c Criteria) Admits(e Employment) bool {
	return IsActive(e, c.Now, c.StartGrace) && IsPrimary(e) && HasCategory(e, c.Categories)
}

// Select returns the admitted employment with the earliest validity start. Ties keep the
// source order.
func Select(employments []Employment, c Criteria) (Employment, bool) {
	admitted := make([]Employment, 0, len(employments))
	for _, e := range employments {
		if c.Admits(e) {
			admitted = append(admitted, e)
		}
	}
	if len(admitted) == 0 {
		return Employment{}, false
	}
	sort.SliceStable(admitted, func(i, j int) bool {
		return admitted[i].StartOrMax().Before(admitted[j].StartOrMax())
	})
	return admitted[0], true
}
