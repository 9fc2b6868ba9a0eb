// Package folder holds the personnel folder resource written to the archive system.
package folder

import (
	"strings"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
)

const (
	RelPerson            = "person"
	RelPersonnelResource = "personalressurs"
	RelLeader            = "leder"
	RelWorkplace         = "arbeidssted"
)

// PlaceholderTitle is the fixed title the archive replaces with its own case title.
const PlaceholderTitle = "DUMMY"

const (
	personHrefPrefix            = "${felles.person}/fodselsnummer/"
	personnelResourceHrefPrefix = "${administrasjon.personal.personalressurs}/brukernavn/"
	unitHrefPrefix              = "${administrasjon.organisasjon.organisasjonselement}/organisasjonsid/"
)

type Link struct {
	Href string `json:"href"`
}

// Part is an opaque party entry; the factory only emits an empty placeholder.
type Part map[string]any

// Folder is the personnel folder resource in its wire form.
type Folder struct {
	Name  *employment.Name  `json:"navn,omitempty"`
	Title string            `json:"tittel,omitempty"`
	Parts []Part            `json:"part,omitempty"`
	Links map[string][]Link `json:"_links,omitempty"`
}

func New() *Folder {
	return &Folder{Links: map[string][]Link{}}
}

func PersonLink(nin string) Link {
	return Link{Href: personHrefPrefix + nin}
}

func PersonnelResourceLink(username string) Link {
	return Link{Href: personnelResourceHrefPrefix + username}
}

func UnitLink(unitID string) Link {
	return Link{Href: unitHrefPrefix + unitID}
}

func (f *Folder) AddLink(rel string, l Link) {
	if f.Links == nil {
		f.Links = map[string][]Link{}
	}
	f.Links[rel] = append(f.Links[rel], l)
}

func (f *Folder) first(rel string) string {
	if f == nil {
		return ""
	}
	for _, l := range f.Links[rel] {
		if strings.TrimSpace(l.Href) != "" {
			return l.Href
		}
	}
	return ""
}

// LastSegment returns the identifier after the final slash of an href.
func LastSegment(href string) string {
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}

func (f *Folder) Username() string        { return LastSegment(f.first(RelPersonnelResource)) }
func (f *Folder) NIN() string             { return LastSegment(f.first(RelPerson)) }
func (f *Folder) Leader() string          { return LastSegment(f.first(RelLeader)) }
func (f *Folder) Workplace() string       { return LastSegment(f.first(RelWorkplace)) }
func (f *Folder) HasLink(rel string) bool { return f.first(rel) != "" }
