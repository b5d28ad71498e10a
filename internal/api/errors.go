package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed API call. Every failure the client surfaces maps
// to exactly one kind, whether it came back as a status code, a transport
// error, or a malformed body.
type Kind int

const (
	// KindNetwork means the request never produced a server response.
	KindNetwork Kind = iota
	// KindUnauthorized means the server rejected the credential (401).
	KindUnauthorized
	// KindNotFound means the addressed record does not exist (404/410).
	KindNotFound
	// KindValidation means the server rejected the request content (other 4xx).
	KindValidation
	// KindServer means a 5xx response or a response the client cannot parse.
	KindServer
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_unavailable"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failed"
	case KindServer:
		return "server_error"
	default:
		return "unknown"
	}
}

// Error is the normalized failure shape returned by every Client call.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when no response was received
	Message string
	Fields  map[string]string // per-field validation messages, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// kindForStatus maps an HTTP status code to an error kind.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusNotFound || status == http.StatusGone:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}

func isKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// IsUnauthorized reports whether err is a credential rejection.
func IsUnauthorized(err error) bool { return isKind(err, KindUnauthorized) }

// IsNotFound reports whether err is a missing-record failure.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }

// IsValidation reports whether err is a request-content rejection.
func IsValidation(err error) bool { return isKind(err, KindValidation) }

// IsNetwork reports whether err means the server was never reached.
func IsNetwork(err error) bool { return isKind(err, KindNetwork) }

// IsServer reports whether err is a server-side or malformed-response failure.
func IsServer(err error) bool { return isKind(err, KindServer) }
