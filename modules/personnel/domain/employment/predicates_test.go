package employment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func period(start time.Time, end *time.Time) *Period {
	return &Period{Start: start, End: end}
}

func TestIsActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)
	soon := now.Add(7 * 24 * time.Hour)

	cases := []struct {
		name  string
		e     Employment
		grace time.Duration
		want  bool
	}{
		{name: "no period", e: Employment{}, want: false},
		{name: "open ended started", e: Employment{Period: period(past, nil)}, want: true},
		{name: "ended", e: Employment{Period: period(past.AddDate(0, -1, 0), &past)}, want: false},
		{name: "end is exclusive", e: Employment{Period: period(past, &now)}, want: false},
		{name: "running", e: Employment{Period: period(past, &future)}, want: true},
		{name: "starts soon without grace", e: Employment{Period: period(soon, nil)}, want: false},
		{name: "starts soon with grace", e: Employment{Period: period(soon, nil)}, grace: DefaultStartGrace, want: true},
		{name: "starts after grace", e: Employment{Period: period(future, nil)}, grace: DefaultStartGrace, want: false},
		{name: "start equals now is inclusive", e: Employment{Period: period(now, nil)}, want: true},
		{name: "start equals now plus grace", e: Employment{Period: period(now.Add(DefaultStartGrace), nil)}, grace: DefaultStartGrace, want: true},
		{name: "start just after now", e: Employment{Period: period(now.Add(time.Nanosecond), nil)}, want: false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, IsActive(tc.e, now, tc.grace), tc.name)
	}
}

func TestSelect_PicksEarliestAdmittedStart(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	res := &Resource{Username: "ann01", Category: "F"}
	early := Employment{Resource: res, Primary: true, Period: period(now.AddDate(-2, 0, 0), nil), Workplace: &Unit{ID: "U1"}}
	late := Employment{Resource: res, Primary: true, Period: period(now.AddDate(-1, 0, 0), nil), Workplace: &Unit{ID: "U2"}}
	secondary := Employment{Resource: res, Primary: false, Period: period(now.AddDate(-3, 0, 0), nil), Workplace: &Unit{ID: "U3"}}

	got, ok := Select([]Employment{late, secondary, early}, Criteria{Now: now, Categories: []string{"F"}})
	require.True(t, ok)
	require.Equal(t, "U1", got.WorkplaceID())
}

func TestSelect_RejectsCategoryOutsideAllowList(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	e := Employment{
		Resource: &Resource{Username: "ann01", Category: "T"},
		Primary:  true,
		Period:   period(now.AddDate(-1, 0, 0), nil),
	}

	_, ok := Select([]Employment{e}, Criteria{Now: now, Categories: []string{"F", "M"}})
	require.False(t, ok)

	_, ok = Select(nil, Criteria{Now: now, Categories: []string{"F"}})
	require.False(t, ok)
}
