package relay

import (
	"strings"

	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
)

// Method is the closed set of verbs the relay forwards.
type Method int

const (
	MethodOther Method = iota
	MethodGet
	MethodDelete
	MethodPost
	MethodPut
	MethodPatch
)

var methodNames = map[Method]string{
	MethodGet:    "GET",
	MethodDelete: "DELETE",
	MethodPost:   "POST",
	MethodPut:    "PUT",
	MethodPatch:  "PATCH",
}

// ParseMethod matches s case-insensitively; anything unknown is MethodOther.
func ParseMethod(s string) Method {
	up := strings.ToUpper(strings.TrimSpace(s))
	for m, name := range methodNames {
		if name == up {
			return m
		}
	}
	return MethodOther
}

func (m Method) String() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return "OTHER"
}

// HasBody reports whether the verb forwards a request body.
func (m Method) HasBody() bool {
	return m == MethodPost || m == MethodPut || m == MethodPatch
}

// Allowed reports whether the relay forwards m at all.
func (m Method) Allowed() bool { return m != MethodOther }

// CheckMethod fails with KindMethodNotAllowed for verbs the relay does not
// forward. It does no I/O.
func CheckMethod(method, path string) error {
	if ParseMethod(method).Allowed() {
		return nil
	}
	return failure.New(failure.KindMethodNotAllowed, "method %s is not allowed for path %s", method, path)
}
