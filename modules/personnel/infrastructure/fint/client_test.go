package fint

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/archive"
	"github.com/iota-uz/personnel-sync/pkg/configuration"
)

type fakeFint struct {
	*httptest.Server
	tokens atomic.Int32
	mux    *http.ServeMux
}

func newFakeFint(t *testing.T) *fakeFint {
	t.Helper()

	f := &fakeFint{mux: http.NewServeMux()}
	f.mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "password", r.PostForm.Get("grant_type"))
		require.Equal(t, "svc", r.PostForm.Get("username"))
		f.tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" && r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeFint) client(t *testing.T) *Client {
	t.Helper()

	org := configuration.Organisation{
		ID: "org-1",
		OAuth: configuration.OAuth{
			TokenURL:     f.URL + "/token",
			ClientID:     "client",
			ClientSecret: "secret",
			Username:     "svc",
			Password:     "pw",
		},
		Endpoints: configuration.Endpoints{
			BaseURL:            f.URL,
			GraphQL:            "/graphql/graphql",
			PersonnelResource:  "/administrasjon/personal/personalressurs",
			PersonnelFolder:    "/arkiv/personal/personalmappe",
			AdministrativeUnit: "/arkiv/noark/administrativenhet",
			ArchiveResource:    "/arkiv/noark/arkivressurs",
		},
	}
	c, err := NewClient(org, Options{Timeout: 5 * time.Second, RequestIDHeader: "X-Request-ID", Base: f.Client()})
	require.NoError(t, err)
	return c
}

func TestClient_PersonnelResource(t *testing.T) {
	t.Parallel()

	f := newFakeFint(t)
	f.mux.HandleFunc("/graphql/graphql", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "ann01", req.Variables["brukernavn"])
		require.Contains(t, req.Query, "personalressurs(brukernavn: $brukernavn)")

		_, _ = io.WriteString(w, `{"data":{"personalressurs":{
			"ansattnummer":{"identifikatorverdi":"1001"},
			"brukernavn":{"identifikatorverdi":"ann01"},
			"personalressurskategori":{"kode":"F"},
			"person":{"fodselsnummer":{"identifikatorverdi":"01017012345"},"navn":{"fornavn":"Ann","etternavn":"Hansen"}},
			"arbeidsforhold":[{
				"gyldighetsperiode":{"start":"2020-01-01T00:00:00Z","slutt":null},
				"hovedstilling":true,
				"personalressurs":{"brukernavn":{"identifikatorverdi":"ann01"},"personalressurskategori":{"kode":"F"}},
				"arbeidssted":{
					"organisasjonsId":{"identifikatorverdi":"U100"},
					"leder":{"brukernavn":{"identifikatorverdi":"bob02"}},
					"overordnet":{"organisasjonsId":{"identifikatorverdi":"U050"},"leder":{"brukernavn":{"identifikatorverdi":"dave04"}}}
				}
			},{
				"gyldighetsperiode":{"start":"2021-05-01","slutt":"2022-05-01T00:00:00"},
				"hovedstilling":false
			}]
		}}}`)
	})

	res, err := f.client(t).PersonnelResource(context.Background(), "ann01")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, "ann01", res.Username)
	require.Equal(t, "01017012345", res.Person.NIN)
	require.Len(t, res.Employments, 2)

	first := res.Employments[0]
	require.True(t, first.Primary)
	require.Equal(t, "F", first.Category())
	require.Equal(t, "U100", first.WorkplaceID())
	require.Equal(t, "bob02", first.Leader())
	require.Equal(t, "U050", first.ParentWorkplaceID())
	require.Equal(t, "dave04", first.ParentLeader())
	require.Nil(t, first.Period.End)
	require.Equal(t, "Hansen", first.Resource.Person.Name.Last)

	second := res.Employments[1]
	require.False(t, second.Primary)
	require.Equal(t, time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC), second.Period.Start)
	require.Equal(t, time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC), *second.Period.End)
	require.Equal(t, int32(1), f.tokens.Load())
}

func TestClient_PersonnelResourceMissingAndErrors(t *testing.T) {
	t.Parallel()

	f := newFakeFint(t)
	f.mux.HandleFunc("/graphql/graphql", func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Variables["brukernavn"] == "broken" {
			_, _ = io.WriteString(w, `{"errors":[{"message":"boom"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"personalressurs":null}}`)
	})
	c := f.client(t)

	res, err := c.PersonnelResource(context.Background(), "nobody")
	require.NoError(t, err)
	require.Nil(t, res)

	_, err = c.PersonnelResource(context.Background(), "broken")
	require.ErrorContains(t, err, "boom")
}

func TestClient_PersonnelResourcesSince(t *testing.T) {
	t.Parallel()

	f := newFakeFint(t)
	f.mux.HandleFunc("/administrasjon/personal/personalressurs/last-updated", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"lastUpdated":1700000000000}`)
	})
	f.mux.HandleFunc("/administrasjon/personal/personalressurs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1690000000000", r.URL.Query().Get("sinceTimeStamp"))
		_, _ = io.WriteString(w, `{"_embedded":{"_entries":[
			{"brukernavn":{"identifikatorverdi":"ann01"},"_links":{"self":[{"href":"https://x/personalressurs/ansattnummer/1001"}]}},
			{"brukernavn":null,"_links":{}}
		]},"total_items":2}`)
	})

	resources, next, err := f.client(t).PersonnelResourcesSince(context.Background(), 1690000000000)
	require.NoError(t, err)
	require.Equal(t, int64(1700000000000), next)
	require.Len(t, resources, 2)
	require.Equal(t, "ann01", resources[0].Username)
	require.Equal(t, []string{"https://x/personalressurs/ansattnummer/1001"}, resources[0].SelfLinks)
	require.Empty(t, resources[1].Username)
}

func TestClient_AdministrativeUnitIDs(t *testing.T) {
	t.Parallel()

	f := newFakeFint(t)
	f.mux.HandleFunc("/arkiv/noark/administrativenhet", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"_embedded":{"_entries":[
			{"_links":{"organisasjonselement":[{"href":"https://x/organisasjonselement/organisasjonsid/U100"}]}},
			{"_links":{"organisasjonselement":[{"href":"https://x/organisasjonselement/organisasjonsid/U050"},{"href":"https://x/organisasjonselement/organisasjonsid/U100"}]}},
			{"_links":{}}
		]}}`)
	})

	ids, err := f.client(t).AdministrativeUnitIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"U100", "U050"}, ids)
}

func TestClient_CreatePollWithoutFollowingRedirect(t *testing.T) {
	t.Parallel()

	f := newFakeFint(t)
	f.mux.HandleFunc("/arkiv/personal/personalmappe", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Location", "/status/1")
		w.WriteHeader(http.StatusAccepted)
	})
	f.mux.HandleFunc("/status/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/arkiv/personal/personalmappe/folder/42")
		w.WriteHeader(http.StatusSeeOther)
	})
	f.mux.HandleFunc("/arkiv/personal/personalmappe/folder/42", func(w http.ResponseWriter, r *http.Request) {
		t.Error("redirect must not be followed")
	})
	c := f.client(t)

	created, err := c.Create(context.Background(), map[string]any{"tittel": "DUMMY"})
	require.NoError(t, err)
	require.True(t, created.Accepted())
	require.Equal(t, f.URL+"/status/1", created.Location)

	polled, err := c.PollStatus(context.Background(), created.Location)
	require.NoError(t, err)
	require.True(t, polled.Redirect())
	require.Equal(t, f.URL+"/arkiv/personal/personalmappe/folder/42", polled.Location)
}

func TestClient_ErrorStatusIsStatusError(t *testing.T) {
	t.Parallel()

	f := newFakeFint(t)
	f.mux.HandleFunc("/folder/7", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"total_items":0}`)
	})

	_, err := f.client(t).Update(context.Background(), f.URL+"/folder/7", map[string]any{})
	var se *archive.StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusConflict, se.Status)
	require.JSONEq(t, `{"total_items":0}`, string(se.Body))
}

func TestClient_ArchiveResources(t *testing.T) {
	t.Parallel()

	f := newFakeFint(t)
	var putBody atomic.Value
	f.mux.HandleFunc("/arkiv/noark/arkivressurs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"_embedded":{"_entries":[
			{"kildesystemId":{"identifikatorverdi":"a1"},"_links":{
				"self":[{"href":"`+f.URL+`/arkivressurs/a1"}],
				"personalressurs":[{"href":"https://x/personalressurs/ansattnummer/1001"}]}}
		]}}`)
	})
	f.mux.HandleFunc("/arkivressurs/a1", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		putBody.Store(string(b))
		w.Header().Set("Location", "/status/a1")
		w.WriteHeader(http.StatusAccepted)
	})
	c := f.client(t)

	resources, err := c.ArchiveResources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 1)
	require.Equal(t, f.URL+"/arkivressurs/a1", resources[0].SelfLink)
	require.Equal(t, []string{"https://x/personalressurs/ansattnummer/1001"}, resources[0].PersonnelResourceLinks)

	resp, err := c.PutArchiveResource(context.Background(), resources[0])
	require.NoError(t, err)
	require.True(t, resp.Accepted())
	require.True(t, strings.Contains(putBody.Load().(string), `"kildesystemId"`))

	_, err = c.PutArchiveResource(context.Background(), archive.Resource{})
	require.Error(t, err)
}

func TestValidateQuery(t *testing.T) {
	t.Parallel()

	q, err := validateQuery(schemaSource, personnelResourceQuery)
	require.NoError(t, err)
	require.NotEmpty(t, q)

	_, err = validateQuery(schemaSource, `query q($brukernavn: String) { personalressurs(brukernavn: $brukernavn) { unknownField } }`)
	require.Error(t, err)

	_, err = validateQuery(schemaSource, `query q { personalressurs { brukernavn { identifikatorverdi } } }`)
	require.ErrorContains(t, err, "$brukernavn")
}
