package folder

import (
	"github.com/go-faster/errors"
)

var (
	ErrMissingName              = errors.New("personnel folder has no name")
	ErrMissingPerson            = errors.New("personnel folder has no person link")
	ErrMissingPersonnelResource = errors.New("personnel folder has no personnel resource link")
	ErrMissingWorkplace         = errors.New("personnel folder has no workplace link")
	ErrMissingLeader            = errors.New("personnel folder has no leader link")
	ErrLeaderIsSubject          = errors.New("personnel folder leader is the subject")
	ErrExcludedWorkplace        = errors.New("personnel folder workplace is excluded")
)

// Validator decides whether a constructed folder may be submitted.
type Validator struct {
	excluded map[string]struct{}
}

func NewValidator(excludedUnits []string) Validator {
	v := Validator{excluded: make(map[string]struct{}, len(excludedUnits))}
	for _, id := range excludedUnits {
		if id != "" {
			v.excluded[id] = struct{}{}
		}
	}
	return v
}

// Validate returns nil for an admissible folder, or the first failed rule.
func (v Validator) Validate(f *Folder) error {
	if f == nil || f.Name == nil || f.Name.IsZero() {
		return ErrMissingName
	}
	if !f.HasLink(RelPerson) {
		return ErrMissingPerson
	}
	if !f.HasLink(RelPersonnelResource) {
		return ErrMissingPersonnelResource
	}
	if !f.HasLink(RelWorkplace) {
		return ErrMissingWorkplace
	}
	if !f.HasLink(RelLeader) {
		return ErrMissingLeader
	}
	if f.first(RelPersonnelResource) == f.first(RelLeader) {
		return ErrLeaderIsSubject
	}
	if len(v.excluded) > 0 {
		for _, l := range f.Links[RelWorkplace] {
			if _, ok := v.excluded[LastSegment(l.Href)]; ok {
				return ErrExcludedWorkplace
			}
		}
	}
	return nil
}
