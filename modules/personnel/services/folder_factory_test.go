package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/folder"
)

func criteria() employment.Criteria {
	return employment.Criteria{Now: testNow, StartGrace: employment.DefaultStartGrace, Categories: []string{"F"}}
}

func TestBuildFolder_NewHireKeepsImmediateLeader(t *testing.T) {
	t.Parallel()

	res := personnel("ann01", "01017012345", &employment.Unit{ID: "U100", Leader: "bob02"})
	f, ok := BuildFolder(res, NewUnitSet("U100"), criteria())
	require.True(t, ok)

	require.Equal(t, "ann01", f.Username())
	require.Equal(t, "bob02", f.Leader())
	require.Equal(t, "U100", f.Workplace())
	require.Equal(t, "01017012345", f.NIN())
	require.Equal(t, folder.PlaceholderTitle, f.Title)
	require.Len(t, f.Parts, 1)
	require.NoError(t, folder.NewValidator(nil).Validate(f))
}

func TestBuildFolder_SelfLeadingEmployeeEscalates(t *testing.T) {
	t.Parallel()

	unit := &employment.Unit{
		ID:     "U200",
		Leader: "carol03",
		Parent: &employment.Unit{ID: "U050", Leader: "dave04"},
	}
	f, ok := BuildFolder(personnel("carol03", "02027012345", unit), NewUnitSet("U200", "U050"), criteria())
	require.True(t, ok)
	require.Equal(t, "dave04", f.Leader())
	require.Equal(t, "U050", f.Workplace())
}

func TestResolveLeader(t *testing.T) {
	t.Parallel()

	parent := &employment.Unit{ID: "U050", Leader: "dave04"}
	cases := []struct {
		name          string
		username      string
		unit          *employment.Unit
		units         UnitSet
		wantLeader    string
		wantWorkplace string
	}{
		{
			name:     "immediate",
			username: "ann01", unit: &employment.Unit{ID: "U100", Leader: "bob02", Parent: parent},
			units:      NewUnitSet("U100"),
			wantLeader: "bob02", wantWorkplace: "U100",
		},
		{
			name:     "leader is subject ignoring case",
			username: "carol03", unit: &employment.Unit{ID: "U200", Leader: "CAROL03", Parent: parent},
			units:      NewUnitSet("U200"),
			wantLeader: "dave04", wantWorkplace: "U050",
		},
		{
			name:     "workplace not an administrative unit",
			username: "eve05", unit: &employment.Unit{ID: "U300", Leader: "bob02", Parent: parent},
			units:      NewUnitSet("U100"),
			wantLeader: "dave04", wantWorkplace: "U050",
		},
		{
			name:     "empty cache escalates",
			username: "eve05", unit: &employment.Unit{ID: "U300", Leader: "bob02", Parent: parent},
			units:      UnitSet{},
			wantLeader: "dave04", wantWorkplace: "U050",
		},
		{
			name:     "escalation without parent leader",
			username: "carol03", unit: &employment.Unit{ID: "U200", Leader: "carol03", Parent: &employment.Unit{ID: "U050"}},
			units:         NewUnitSet("U200"),
			wantWorkplace: "U050",
		},
		{
			name:     "escalation without parent",
			username: "carol03", unit: &employment.Unit{ID: "U200", Leader: "carol03"},
			units: NewUnitSet("U200"),
		},
		{
			name:     "no immediate leader",
			username: "ann01", unit: &employment.Unit{ID: "U100", Parent: parent},
			units: NewUnitSet("U100"),
		},
	}

	for _, tc := range cases {
		e := activeEmployment(tc.username, "F", "1", tc.unit)
		leader, workplace := ResolveLeader(e, tc.units)
		require.Equal(t, tc.wantLeader, leader, tc.name)
		require.Equal(t, tc.wantWorkplace, workplace, tc.name)
	}
}

func TestBuildFolder_EscalationWithoutParentLeaderIsInadmissible(t *testing.T) {
	t.Parallel()

	unit := &employment.Unit{ID: "U200", Leader: "carol03", Parent: &employment.Unit{ID: "U050"}}
	f, ok := BuildFolder(personnel("carol03", "02027012345", unit), NewUnitSet("U200"), criteria())
	require.True(t, ok)
	require.False(t, f.HasLink(folder.RelLeader))
	require.ErrorIs(t, folder.NewValidator(nil).Validate(f), folder.ErrMissingLeader)
}

func TestBuildFolder_ExcludedUnitIsRejected(t *testing.T) {
	t.Parallel()

	res := personnel("frank06", "03037012345", &employment.Unit{ID: "U999", Leader: "bob02"})
	f, ok := BuildFolder(res, NewUnitSet("U999"), criteria())
	require.True(t, ok)
	require.ErrorIs(t, folder.NewValidator([]string{"U999"}).Validate(f), folder.ErrExcludedWorkplace)
}

func TestBuildFolder_NoAdmittedEmployment(t *testing.T) {
	t.Parallel()

	res := personnel("ann01", "01017012345", &employment.Unit{ID: "U100", Leader: "bob02"})
	res.Employments[0].Primary = false

	_, ok := BuildFolder(res, NewUnitSet("U100"), criteria())
	require.False(t, ok)

	_, ok = BuildFolder(nil, NewUnitSet("U100"), criteria())
	require.False(t, ok)
}
