package services

import (
	"strings"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/folder"
)

// BuildFolder derives the personnel folder of res from its selected employment. It returns
// false when no employment is admitted.
func BuildFolder(res *employment.Resource, units UnitSet, c employment.Criteria) (*folder.Folder, bool) {
	if res == nil {
		return nil, false
	}
	selected, ok := employment.Select(res.Employments, c)
	if !ok {
		return nil, false
	}

	f := folder.New()
	person := res.Person
	if selected.Resource != nil && selected.Resource.Person != nil {
		person = selected.Resource.Person
	}
	if person != nil {
		if person.Name != nil {
			name := *person.Name
			f.Name = &name
		}
		if person.NIN != "" {
			f.AddLink(folder.RelPerson, folder.PersonLink(person.NIN))
		}
	}

	username := selected.Username()
	if username != "" {
		f.AddLink(folder.RelPersonnelResource, folder.PersonnelResourceLink(username))
	}

	leader, workplace := ResolveLeader(selected, units)
	if leader != "" {
		f.AddLink(folder.RelLeader, folder.PersonnelResourceLink(leader))
	}
	if workplace != "" {
		f.AddLink(folder.RelWorkplace, folder.UnitLink(workplace))
	}

	f.Parts = []folder.Part{{}}
	f.Title = folder.PlaceholderTitle
	return f, true
}

// ResolveLeader returns the leader and workplace a folder is attributed to. A subject leading
// its own workplace, or working in a unit that is not an administrative unit, is attributed to
// the parent unit and its leader. Without an immediate leader nothing is attributed.
func ResolveLeader(e employment.Employment, units UnitSet) (leader, workplace string) {
	leader = e.Leader()
	if leader == "" {
		return "", ""
	}
	workplace = e.WorkplaceID()
	if strings.EqualFold(leader, e.Username()) || !units.Contains(workplace) {
		return e.ParentLeader(), e.ParentWorkplaceID()
	}
	return leader, workplace
}
