// Package failure defines the typed errors surfaced by the bearer interceptor.
// Every kind maps to its own status code so callers can tell configuration
// problems apart from transient upstream problems.
package failure

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindKeyMaterial
	KindSigning
	KindEndpointMisconfigured
	KindTransportSetup
	KindUpstream
	KindConnection
	KindMethodNotAllowed
	KindRelayConnection
)

type kindInfo struct {
	name   string
	code   string
	status int
}

var kinds = map[Kind]kindInfo{
	KindUnknown:               {"UnknownError", "ERR10000", http.StatusInternalServerError},
	KindKeyMaterial:           {"KeyMaterialError", "ERR10057", http.StatusInternalServerError},
	KindSigning:               {"SigningError", "ERR10058", http.StatusInternalServerError},
	KindEndpointMisconfigured: {"TokenEndpointMisconfigured", "ERR10056", http.StatusInternalServerError},
	KindTransportSetup:        {"TokenTransportSetupError", "ERR10055", http.StatusInternalServerError},
	KindUpstream:              {"TokenExchangeUpstreamError", "ERR10052", http.StatusUnauthorized},
	KindConnection:            {"TokenExchangeConnectionError", "ERR10053", http.StatusServiceUnavailable},
	KindMethodNotAllowed:      {"MethodNotAllowedError", "ERR10008", http.StatusMethodNotAllowed},
	KindRelayConnection:       {"RelayConnectionError", "ERR10054", http.StatusBadGateway},
}

func (k Kind) info() kindInfo {
	if i, ok := kinds[k]; ok {
		return i
	}
	return kinds[KindUnknown]
}

func (k Kind) String() string { return k.info().name }

// Code is the stable error code reported to callers.
func (k Kind) Code() string { return k.info().code }

// Status is the HTTP status used when the failure is written to a client.
func (k Kind) Status() int { return k.info().status }

// Error is the single error type produced by the interceptor components.
type Error struct {
	Kind    Kind
	Message string
	// UpstreamBody carries the authorization server's response body for
	// KindUpstream failures.
	UpstreamBody string
	Err          error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so sentinel-style checks work:
//
//	errors.Is(err, &failure.Error{Kind: failure.KindUpstream})
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Upstream builds a KindUpstream failure carrying the raw response body.
func Upstream(status int, body string) *Error {
	return &Error{
		Kind:         KindUpstream,
		Message:      fmt.Sprintf("token endpoint returned status %d", status),
		UpstreamBody: body,
	}
}

// KindOf reports the kind of err, or KindUnknown when err is not a *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
