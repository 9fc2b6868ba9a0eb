// Package employment models the HR source records a personnel folder is derived from.
package employment

import (
	"strings"
	"time"
)

// DefaultStartGrace admits employments that start within the next two weeks.
const DefaultStartGrace = 14 * 24 * time.Hour

type Name struct {
	First  string `json:"fornavn,omitempty"`
	Middle string `json:"mellomnavn,omitempty"`
	Last   string `json:"etternavn,omitempty"`
}

func (n Name) IsZero() bool {
	return strings.TrimSpace(n.First) == "" && strings.TrimSpace(n.Middle) == "" && strings.TrimSpace(n.Last) == ""
}

type Person struct {
	NIN  string
	Name *Name
}

// Unit is an organisational unit with one level of parent lookup.
type Unit struct {
	ID     string
	Code   string
	Leader string
	Parent *Unit
}

type Period struct {
	Start time.Time
	End   *time.Time
}

// Resource is the personnel resource (employee) as returned by the source system.
type Resource struct {
	Username       string
	EmployeeNumber string
	Category       string
	Person         *Person
	SelfLinks      []string
	Employments    []Employment
}

// Employment is one employment relationship of a personnel resource.
type Employment struct {
	Workplace *Unit
	Resource  *Resource
	Period    *Period
	Primary   bool
}

func (e Employment) Username() string {
	if e.Resource == nil {
		return ""
	}
	return e.Resource.Username
}

func (e Employment) Category() string {
	if e.Resource == nil {
		return ""
	}
	return e.Resource.Category
}

func (e Employment) Leader() string {
	if e.Workplace == nil {
		return ""
	}
	return e.Workplace.Leader
}

func (e Employment) WorkplaceID() string {
	if e.Workplace == nil {
		return ""
	}
	return e.Workplace.ID
}

func (e Employment) ParentLeader() string {
	if e.Workplace == nil || e.Workplace.Parent == nil {
		return ""
	}
	return e.Workplace.Parent.Leader
}

func (e Employment) ParentWorkplaceID() string {
	if e.Workplace == nil || e.Workplace.Parent == nil {
		return ""
	}
	return e.Workplace.Parent.ID
}

// StartOrMax returns the validity start, or the far future when no period is known.
func (e Employment) StartOrMax() time.Time {
	if e.Period == nil || e.Period.Start.IsZero() {
		return time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	return e.Period.Start
}
