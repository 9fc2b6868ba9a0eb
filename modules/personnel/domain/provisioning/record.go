// Package provisioning holds the durable outcome of reconciling one employee's personnel folder.
package provisioning

import (
	"time"
)

type Status string

const (
	StatusPending             Status = "PENDING"
	StatusCreated             Status = "CREATED"
	StatusConflict            Status = "CONFLICT"
	StatusBadRequest          Status = "BAD_REQUEST"
	StatusInternalServerError Status = "INTERNAL_SERVER_ERROR"
	StatusGone                Status = "GONE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCreated, StatusConflict, StatusBadRequest, StatusInternalServerError, StatusGone:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is a rest state rather than an in-flight one.
func (s Status) Terminal() bool {
	return s != StatusPending && s.Valid()
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusCreated,
		StatusConflict,
		StatusBadRequest,
		StatusInternalServerError,
		StatusGone,
	}
}

// Record is the provisioning state of one employee within one organisation.
//
// Version is owned by the repository: Upsert writes only when the stored version equals
// the version carried by the record, and returns the record with the version advanced.
type Record struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Leader       string    `json:"leader"`
	Workplace    string    `json:"workplace"`
	OrgID        string    `json:"orgId"`
	Association  string    `json:"association,omitempty"`
	Status       Status    `json:"status"`
	Message      string    `json:"message,omitempty"`
	Version      int64     `json:"version"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"lastModified"`
}

// IsNew reports whether the record has never been stored.
func (r Record) IsNew() bool {
	return r.Version == 0
}

// HasAssociation reports whether the archive location of the folder is known.
func (r Record) HasAssociation() bool {
	return r.Association != ""
}

// MarkPending records a submission accepted by the archive.
func (r *Record) MarkPending(username, leader, workplace string) {
	r.Username = username
	r.Leader = leader
	r.Workplace = workplace
	r.Status = StatusPending
	r.Message = ""
}

// MarkCreated adopts the final archive location.
func (r *Record) MarkCreated(association string) {
	r.Association = association
	r.Status = StatusCreated
	r.Message = ""
}

func (r *Record) MarkFailed(status Status, message string) {
	r.Status = status
	r.Message = message
}

// MarkGone clears the association so that the next pass creates the folder again.
func (r *Record) MarkGone() {
	r.Association = ""
	r.Status = StatusGone
	r.Message = ""
}
