// Package archive describes responses of the archive system's asynchronous write API.
package archive

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Response is a non-error answer of the archive: 2xx or 3xx.
type Response struct {
	Status   int
	Location string
	Body     []byte
}

// Accepted reports whether the write is still being processed.
func (r Response) Accepted() bool {
	return r.Status == http.StatusAccepted
}

func (r Response) Redirect() bool {
	return r.Status >= 300 && r.Status < 400
}

// StatusError is an error answer of the archive or source system.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	if body == "" {
		return fmt.Sprintf("remote status %d", e.Status)
	}
	return fmt.Sprintf("remote status %d: %s", e.Status, body)
}

// Resource is an archive resource (arkivressurs) kept as raw JSON so that it can be written
// back unchanged.
type Resource struct {
	SelfLink               string
	PersonnelResourceLinks []string
	Raw                    json.RawMessage
}
