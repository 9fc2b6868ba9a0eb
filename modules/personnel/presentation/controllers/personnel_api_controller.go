package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"

	"github.com/iota-uz/personnel-sync/modules/personnel/domain/provisioning"
	"github.com/iota-uz/personnel-sync/modules/personnel/services"
	"github.com/iota-uz/personnel-sync/pkg/configuration"
	"github.com/iota-uz/personnel-sync/pkg/httpapi"
	"github.com/iota-uz/personnel-sync/pkg/middleware"
	"github.com/iota-uz/personnel-sync/pkg/server"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PersonnelAPIController struct {
	orch      *services.Orchestrator
	state     *services.StateService
	apiPrefix string
	now       func() time.Time
}

func NewPersonnelAPIController(orch *services.Orchestrator, state *services.StateService) server.Controller {
	return &PersonnelAPIController{
		orch:      orch,
		state:     state,
		apiPrefix: "/personnel/api",
		now:       time.Now,
	}
}

func (c *PersonnelAPIController) Key() string {
	return c.apiPrefix
}

func (c *PersonnelAPIController) Register(r *mux.Router) {
	api := r.PathPrefix(c.apiPrefix).Subrouter()

	api.HandleFunc("/organisations", instrument("personnel.organisations", c.ListOrganisations)).Methods(http.MethodGet)
	api.HandleFunc("/organisations/{org}/state", instrument("personnel.state", c.ListState)).Methods(http.MethodGet)
	api.HandleFunc("/organisations/{org}/state.xlsx", instrument("personnel.state.export", c.ExportState)).Methods(http.MethodGet)

	api.HandleFunc("/organisations/{org}/personnel/{username}", instrument("personnel.preview", c.Preview)).Methods(http.MethodGet)
	api.HandleFunc("/organisations/{org}/personnel/{username}:provision", instrument("personnel.provision", c.Provision)).Methods(http.MethodPost)

	api.HandleFunc("/organisations/{org}/runs/bulk", instrument("personnel.run.bulk", c.RunBulk)).Methods(http.MethodPost)
	api.HandleFunc("/organisations/{org}/runs/delta", instrument("personnel.run.delta", c.RunDelta)).Methods(http.MethodPost)
	api.HandleFunc("/organisations/{org}/runs/retry", instrument("personnel.run.retry", c.RunRetry)).Methods(http.MethodPost)
}

type organisationResponse struct {
	ID              string   `json:"id"`
	Bulk            bool     `json:"bulk"`
	Delta           bool     `json:"delta"`
	Retry           bool     `json:"retry"`
	ArchiveResource bool     `json:"archiveResource"`
	BulkLimit       int      `json:"bulkLimit"`
	Categories      []string `json:"personnelResourceCategories"`
	Units           int      `json:"administrativeUnits"`
	UnitsRefreshed  string   `json:"administrativeUnitsRefreshedAt,omitempty"`
}

func (c *PersonnelAPIController) ListOrganisations(w http.ResponseWriter, r *http.Request) {
	contexts := c.orch.Registry().All()
	out := make([]organisationResponse, 0, len(contexts))
	for _, oc := range contexts {
		item := organisationResponse{
			ID:              oc.ID(),
			Bulk:            oc.Org.Bulk,
			Delta:           oc.Org.Delta,
			Retry:           oc.Org.Retry,
			ArchiveResource: oc.Org.ArchiveResource,
			BulkLimit:       oc.Org.BulkLimit,
			Categories:      oc.Org.Categories,
			Units:           len(oc.Units()),
		}
		if at := oc.RefreshedAt(); !at.IsZero() {
			item.UnitsRefreshed = at.UTC().Format(time.RFC3339)
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

type stateResponse struct {
	OrgID   string                `json:"orgId"`
	Records []provisioning.Record `json:"records"`
}

func (c *PersonnelAPIController) ListState(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org"]
	filter, err := stateFilter(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "PERSONNEL_INVALID_QUERY", err.Error())
		return
	}
	records, err := c.state.List(r.Context(), orgID, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{OrgID: orgID, Records: records})
}

func (c *PersonnelAPIController) ExportState(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org"]
	filter, err := stateFilter(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "PERSONNEL_INVALID_QUERY", err.Error())
		return
	}
	var buf bytes.Buffer
	if err := c.state.Export(r.Context(), orgID, filter, &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	name := fmt.Sprintf("personalmapper-%s-%s.xlsx", orgID, c.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (c *PersonnelAPIController) Preview(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, err := c.orch.Preview(r.Context(), vars["org"], vars["username"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *PersonnelAPIController) Provision(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, err := c.orch.ProvisionOne(r.Context(), vars["org"], vars["username"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RunBulk runs a bulk pass synchronously. The limit query parameter caps the usernames and
// defaults to the organisation's bulk limit.
func (c *PersonnelAPIController) RunBulk(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org"]
	oc, err := c.orch.Registry().Get(orgID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	limit := oc.Org.BulkLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeAPIError(w, http.StatusBadRequest, "PERSONNEL_INVALID_QUERY", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	summary, err := c.orch.Bulk(r.Context(), orgID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (c *PersonnelAPIController) RunDelta(w http.ResponseWriter, r *http.Request) {
	summary, err := c.orch.Delta(r.Context(), mux.Vars(r)["org"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (c *PersonnelAPIController) RunRetry(w http.ResponseWriter, r *http.Request) {
	summary, err := c.orch.Retry(r.Context(), mux.Vars(r)["org"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// stateFilter reads the repeatable status parameter (or a comma separated list) and q.
func stateFilter(r *http.Request) (services.StateFilter, error) {
	q := r.URL.Query()
	var names []string
	for _, v := range q["status"] {
		names = append(names, strings.Split(v, ",")...)
	}
	for i := range names {
		names[i] = strings.ToUpper(strings.TrimSpace(names[i]))
	}
	statuses, err := services.ParseStatuses(names)
	if err != nil {
		return services.StateFilter{}, err
	}
	return services.StateFilter{Statuses: statuses, Query: strings.TrimSpace(q.Get("q"))}, nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, configuration.ErrNoConfiguration):
		writeAPIError(w, http.StatusNotFound, "PERSONNEL_UNKNOWN_ORGANISATION", err.Error())
	case errors.Is(err, services.ErrUsernameRequired):
		writeAPIError(w, http.StatusBadRequest, "PERSONNEL_INVALID_USERNAME", err.Error())
	case errors.Is(err, services.ErrNoAdministrativeUnits):
		writeAPIError(w, http.StatusServiceUnavailable, "PERSONNEL_NO_UNITS", err.Error())
	case r.Context().Err() != nil:
		writeAPIError(w, http.StatusServiceUnavailable, "PERSONNEL_CANCELLED", err.Error())
	default:
		middleware.Logger(r.Context()).WithError(err).Error("personnel api request failed")
		writeAPIError(w, http.StatusBadGateway, "PERSONNEL_UPSTREAM", err.Error())
	}
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	meta := map[string]string{}
	if id := w.Header().Get("X-Request-Id"); id != "" {
		meta["request_id"] = id
	}
	_ = httpapi.WriteError(w, status, code, message, meta)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
