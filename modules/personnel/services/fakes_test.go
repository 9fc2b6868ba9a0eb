package services

import (
	"context"
	"sync"
	"time"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/archive"
	"github.com/iota-uz/personnel-sync/modules/personnel/domain/employment"
	"github.com/iota-uz/personnel-sync/modules/personnel/infrastructure/cursor"
	"github.com/iota-uz/personnel-sync/pkg/configuration"
	"github.com/iota-uz/personnel-sync/pkg/ratelimit"
	"github.com/iota-uz/personnel-sync/pkg/retry"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu        sync.Mutex
	resources map[string]*employment.Resource
	list      []employment.Resource
	units     []string
	unitCalls int
	since     []int64
	lastSeen  int64
	err       error
}

func newFakeSource(units ...string) *fakeSource {
	return &fakeSource{resources: map[string]*employment.Resource{}, units: units}
}

func (s *fakeSource) add(res *employment.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[res.Username] = res
	s.list = append(s.list, employment.Resource{Username: res.Username, SelfLinks: res.SelfLinks})
}

func (s *fakeSource) PersonnelResource(_ context.Context, username string) (*employment.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.resources[username], nil
}

func (s *fakeSource) PersonnelResources(context.Context) ([]employment.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]employment.Resource(nil), s.list...), nil
}

func (s *fakeSource) PersonnelResourcesSince(_ context.Context, since int64) ([]employment.Resource, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.since = append(s.since, since)
	if s.err != nil {
		return nil, 0, s.err
	}
	return append([]employment.Resource(nil), s.list...), s.lastSeen, nil
}

func (s *fakeSource) AdministrativeUnitIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unitCalls++
	return s.units, nil
}

type call struct {
	method string
	target string
}

// fakeArchive answers writes with 202 and a status location, and polls with the scripted
// answers of that location. An exhausted script keeps answering 202.
type fakeArchive struct {
	mu        sync.Mutex
	calls     []call
	submitErr error
	polls     map[string][]pollAnswer
	payloads  []any

	resources []archive.Resource
	putErr    map[string]error
}

type pollAnswer struct {
	resp archive.Response
	err  error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{polls: map[string][]pollAnswer{}, putErr: map[string]error{}}
}

func (a *fakeArchive) script(location string, answers ...pollAnswer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.polls[location] = append(a.polls[location], answers...)
}

func (a *fakeArchive) record(method, target string) {
	a.calls = append(a.calls, call{method, target})
}

func (a *fakeArchive) count(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func (a *fakeArchive) Create(_ context.Context, payload any) (archive.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("POST", "")
	a.payloads = append(a.payloads, payload)
	if a.submitErr != nil {
		return archive.Response{}, a.submitErr
	}
	return archive.Response{Status: 202, Location: "https://archive.test/status/1"}, nil
}

func (a *fakeArchive) Update(_ context.Context, uri string, payload any) (archive.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("PUT", uri)
	a.payloads = append(a.payloads, payload)
	if a.submitErr != nil {
		return archive.Response{}, a.submitErr
	}
	return archive.Response{Status: 202, Location: "https://archive.test/status/1"}, nil
}

func (a *fakeArchive) PollStatus(_ context.Context, location string) (archive.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("GET", location)
	answers := a.polls[location]
	if len(answers) == 0 {
		return archive.Response{Status: 202}, nil
	}
	next := answers[0]
	a.polls[location] = answers[1:]
	return next.resp, next.err
}

func (a *fakeArchive) ArchiveResources(context.Context) ([]archive.Resource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resources, nil
}

func (a *fakeArchive) PutArchiveResource(_ context.Context, r archive.Resource) (archive.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("PUT", r.SelfLink)
	if err := a.putErr[r.SelfLink]; err != nil {
		return archive.Response{}, err
	}
	return archive.Response{Status: 202, Location: r.SelfLink + "/status"}, nil
}

func (a *fakeArchive) Head(_ context.Context, location string) (archive.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("HEAD", location)
	return archive.Response{Status: 303, Location: location}, nil
}

func redirect(location string) pollAnswer {
	return pollAnswer{resp: archive.Response{Status: 303, Location: location}}
}

func rejected(status int, body string) pollAnswer {
	return pollAnswer{err: &archive.StatusError{Status: status, Body: []byte(body)}}
}

func testOrg() configuration.Organisation {
	return configuration.Organisation{
		ID:               "org-1",
		Categories:       []string{"F"},
		Excluded:         []string{"U999"},
		HistoryLimitDays: 5,
	}
}

func newTestOrgContext(org configuration.Organisation, src *fakeSource, arch *fakeArchive) *OrgContext {
	return NewOrgContext(org, src, arch, nil, cursor.NewMemoryStore())
}

// testPolicy polls without sleeping.
func testPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		Mode:        retry.ModeFixed,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		MaxAttempts: maxAttempts,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func testPacer() *ratelimit.Pacer {
	return ratelimit.NewPacer(ratelimit.PacerOptions{
		Interval: time.Second,
		Sleep:    func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	})
}

func activeEmployment(username, category string, nin string, unit *employment.Unit) employment.Employment {
	return employment.Employment{
		Resource: &employment.Resource{
			Username: username,
			Category: category,
			Person: &employment.Person{
				NIN:  nin,
				Name: &employment.Name{First: username, Last: "Test"},
			},
		},
		Primary:   true,
		Period:    &employment.Period{Start: testNow.AddDate(-1, 0, 0)},
		Workplace: unit,
	}
}

func personnel(username, nin string, unit *employment.Unit) *employment.Resource {
	e := activeEmployment(username, "F", nin, unit)
	return &employment.Resource{
		Username:    username,
		Category:    "F",
		Person:      e.Resource.Person,
		SelfLinks:   []string{"https://hr.test/personalressurs/brukernavn/" + username},
		Employments: []employment.Employment{e},
	}
}
