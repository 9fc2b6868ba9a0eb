package folder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
)

func validFolder() *Folder {
	f := New()
	f.Name = &employment.Name{First: "Ann", Last: "Hansen"}
	f.AddLink(RelPerson, PersonLink("01017012345"))
	f.AddLink(RelPersonnelResource, PersonnelResourceLink("ann01"))
	f.AddLink(RelLeader, PersonnelResourceLink("bob02"))
	f.AddLink(RelWorkplace, UnitLink("U100"))
	return f
}

func TestValidator_AcceptsCompleteFolder(t *testing.T) {
	t.Parallel()
	require.NoError(t, NewValidator(nil).Validate(validFolder()))
}

func TestValidator_RejectsMissingParts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(f *Folder)
		want   error
	}{
		{name: "name", mutate: func(f *Folder) { f.Name = nil }, want: ErrMissingName},
		{name: "blank name", mutate: func(f *Folder) { f.Name = &employment.Name{} }, want: ErrMissingName},
		{name: "person", mutate: func(f *Folder) { delete(f.Links, RelPerson) }, want: ErrMissingPerson},
		{name: "personnel resource", mutate: func(f *Folder) { delete(f.Links, RelPersonnelResource) }, want: ErrMissingPersonnelResource},
		{name: "workplace", mutate: func(f *Folder) { delete(f.Links, RelWorkplace) }, want: ErrMissingWorkplace},
		{name: "leader", mutate: func(f *Folder) { delete(f.Links, RelLeader) }, want: ErrMissingLeader},
		{name: "empty leader href", mutate: func(f *Folder) { f.Links[RelLeader] = []Link{{Href: ""}} }, want: ErrMissingLeader},
	}

	v := NewValidator(nil)
	for _, tc := range cases {
		f := validFolder()
		tc.mutate(f)
		require.ErrorIs(t, v.Validate(f), tc.want, tc.name)
	}
}

func TestValidator_RejectsLeaderEqualToSubject(t *testing.T) {
	t.Parallel()

	f := validFolder()
	f.Links[RelLeader] = []Link{PersonnelResourceLink("ann01")}
	require.ErrorIs(t, NewValidator(nil).Validate(f), ErrLeaderIsSubject)
}

func TestValidator_RejectsExcludedWorkplace(t *testing.T) {
	t.Parallel()

	f := validFolder()
	f.Links[RelWorkplace] = []Link{UnitLink("U999")}

	require.ErrorIs(t, NewValidator([]string{"U999"}).Validate(f), ErrExcludedWorkplace)
	require.NoError(t, NewValidator([]string{"U998"}).Validate(f))
}

func TestFolder_WireForm(t *testing.T) {
	t.Parallel()

	f := validFolder()
	f.Title = PlaceholderTitle
	f.Parts = []Part{{}}

	raw, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "DUMMY", decoded["tittel"])
	links := decoded["_links"].(map[string]any)
	leader := links["leder"].([]any)[0].(map[string]any)
	require.Equal(t, "${administrasjon.personal.personalressurs}/brukernavn/bob02", leader["href"])

	require.Equal(t, "ann01", f.Username())
	require.Equal(t, "bob02", f.Leader())
	require.Equal(t, "U100", f.Workplace())
	require.Equal(t, "01017012345", f.NIN())
}
