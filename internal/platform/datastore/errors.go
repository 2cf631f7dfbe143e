package datastore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alexanderkiel/flare/internal/platform/fhir"
)

// ErrPageCycle is wrapped by a QueryExecutionError when a next link points
// to a page of the same search that was already fetched.
var ErrPageCycle = errors.New("next link points to an already fetched page")

// QueryExecutionError reports a search that failed, either with a client
// error or after all retries were used up.
type QueryExecutionError struct {
	Query fhir.Query
	// StatusCode is zero if no response was received.
	StatusCode int
	// Diagnostics holds the messages of an OperationOutcome returned by the
	// server, if any.
	Diagnostics string
	Err         error
}

func (e *QueryExecutionError) Error() string {
	msg := "execute query " + e.Query.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Diagnostics != "" {
		msg += ": " + e.Diagnostics
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure was caused by the server or the
// network rather than by the query itself.
func (e *QueryExecutionError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests
}
