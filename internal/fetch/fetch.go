// Package fetch retrieves pages and classifies the outcome so callers can tell a missing
// page from a temporarily unavailable one.
package fetch

import (
	"bytes"
	"context"
	"net/http"
)

type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusUnavailable
	StatusOtherError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "other_error"
	}
}

// UnavailableMarker is served with a 200 by the site's proxy when it is overloaded.
const UnavailableMarker = "503 Service Temporarily Unavailable"

type Page struct {
	URL    string
	Status Status
	// Code is the HTTP status code, 0 when no response was received.
	Code int
	Body []byte
	// Err describes why the page is unavailable or failed, if known.
	Err error
}

// Fetcher retrieves one page. A non-nil error means the request could not be attempted
// at all (the context is done or the url is invalid), everything the network or the
// server reports is described by Page.Status.
//
// A Fetcher is not shared between goroutines, each worker gets its own from a Factory.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Factory creates a Fetcher, an error is a setup failure.
type Factory func() (Fetcher, error)

// Classify maps an HTTP status code and body to a Status.
func Classify(code int, body []byte) Status {
	switch {
	case code == http.StatusNotFound:
		return StatusNotFound
	case code == http.StatusTooManyRequests,
		code == http.StatusBadGateway,
		code == http.StatusServiceUnavailable,
		code == http.StatusGatewayTimeout:
		return StatusUnavailable
	case code >= 200 && code < 300:
		if bytes.Contains(body, []byte(UnavailableMarker)) {
			return StatusUnavailable
		}
		return StatusOK
	default:
		return StatusOtherError
	}
}
