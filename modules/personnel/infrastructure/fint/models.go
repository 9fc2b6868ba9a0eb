package fint

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
)

type identifier struct {
	Value string `json:"identifikatorverdi"`
}

func (i *identifier) value() string {
	if i == nil {
		return ""
	}
	return strings.TrimSpace(i.Value)
}

type gqlPerson struct {
	NIN  *identifier      `json:"fodselsnummer"`
	Name *employment.Name `json:"navn"`
}

type gqlCategory struct {
	Code string `json:"kode"`
}

type gqlPeriod struct {
	Start *fintTime `json:"start"`
	End   *fintTime `json:"slutt"`
}

type gqlUnit struct {
	ID     *identifier   `json:"organisasjonsId"`
	Code   *identifier   `json:"organisasjonsKode"`
	Leader *gqlPersonnel `json:"leder"`
	Parent *gqlUnit      `json:"overordnet"`
}

type gqlEmployment struct {
	Period    *gqlPeriod    `json:"gyldighetsperiode"`
	Primary   *bool         `json:"hovedstilling"`
	Personnel *gqlPersonnel `json:"personalressurs"`
	Workplace *gqlUnit      `json:"arbeidssted"`
}

type gqlPersonnel struct {
	EmployeeNumber *identifier      `json:"ansattnummer"`
	Username       *identifier      `json:"brukernavn"`
	Category       *gqlCategory     `json:"personalressurskategori"`
	Person         *gqlPerson       `json:"person"`
	Employments    []*gqlEmployment `json:"arbeidsforhold"`
}

type gqlPersonnelResponse struct {
	Data *struct {
		Personnel *gqlPersonnel `json:"personalressurs"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// fintTime accepts RFC 3339 timestamps as well as zone-less date-times and dates, read as UTC.
type fintTime struct {
	time.Time
}

var fintTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *fintTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range fintTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return errors.Errorf("unsupported time %q", s)
}

func (p *gqlPersonnel) username() string {
	if p == nil {
		return ""
	}
	return p.Username.value()
}

func toUnit(u *gqlUnit, depth int) *employment.Unit {
	if u == nil {
		return nil
	}
	out := &employment.Unit{
		ID:     u.ID.value(),
		Code:   u.Code.value(),
		Leader: u.Leader.username(),
	}
	if depth > 0 {
		out.Parent = toUnit(u.Parent, depth-1)
	}
	return out
}

func toPerson(p *gqlPerson) *employment.Person {
	if p == nil {
		return nil
	}
	return &employment.Person{NIN: p.NIN.value(), Name: p.Name}
}

// toResource maps the GraphQL personnel resource. The personnel resource nested in an
// employment takes precedence over the top level one for that employment.
func toResource(p *gqlPersonnel) *employment.Resource {
	if p == nil {
		return nil
	}
	top := &employment.Resource{
		Username:       p.username(),
		EmployeeNumber: p.EmployeeNumber.value(),
		Person:         toPerson(p.Person),
	}
	if p.Category != nil {
		top.Category = strings.TrimSpace(p.Category.Code)
	}

	for _, e := range p.Employments {
		if e == nil {
			continue
		}
		emp := employment.Employment{
			Workplace: toUnit(e.Workplace, 1),
			Resource:  mergeResource(top, e.Personnel),
			Primary:   e.Primary != nil && *e.Primary,
		}
		if e.Period != nil && e.Period.Start != nil {
			emp.Period = &employment.Period{Start: e.Period.Start.Time}
			if e.Period.End != nil && !e.Period.End.IsZero() {
				end := e.Period.End.Time
				emp.Period.End = &end
			}
		}
		top.Employments = append(top.Employments, emp)
	}
	return top
}

func mergeResource(top *employment.Resource, nested *gqlPersonnel) *employment.Resource {
	if nested == nil {
		return top
	}
	out := &employment.Resource{
		Username:       nested.username(),
		EmployeeNumber: top.EmployeeNumber,
		Person:         toPerson(nested.Person),
		Category:       top.Category,
	}
	if out.Username == "" {
		out.Username = top.Username
	}
	if out.Person == nil {
		out.Person = top.Person
	}
	if nested.Category != nil && strings.TrimSpace(nested.Category.Code) != "" {
		out.Category = strings.TrimSpace(nested.Category.Code)
	}
	return out
}

type halLink struct {
	Href string `json:"href"`
}

type personnelEntry struct {
	Username *identifier          `json:"brukernavn"`
	Links    map[string][]halLink `json:"_links"`
}

type collection[T any] struct {
	Embedded struct {
		Entries []T `json:"_entries"`
	} `json:"_embedded"`
	TotalItems int `json:"total_items"`
}

type administrativeUnitEntry struct {
	Links map[string][]halLink `json:"_links"`
}

type lastUpdated struct {
	LastUpdated json.Number `json:"lastUpdated"`
}

func hrefs(links map[string][]halLink, rel string) []string {
	var out []string
	for _, l := range links[rel] {
		if h := strings.TrimSpace(l.Href); h != "" {
			out = append(out, h)
		}
	}
	return out
}
