package failure

import (
	"errors"
	"net/http"

	"github.com/joeydtaylor/steeze-bearer/pkg/codec"
)

// Status is the JSON body written for a failed intercepted request.
type Status struct {
	StatusCode  int    `json:"statusCode"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func StatusOf(err error) Status {
	var fe *Error
	if !errors.As(err, &fe) {
		fe = &Error{Kind: KindUnknown, Err: err}
	}
	desc := fe.Error()
	if fe.UpstreamBody != "" {
		desc = fe.UpstreamBody
	}
	return Status{
		StatusCode:  fe.Kind.Status(),
		Code:        fe.Kind.Code(),
		Message:     fe.Kind.String(),
		Description: desc,
	}
}

// Write renders err as a JSON status body.
func Write(w http.ResponseWriter, err error) { WriteStatus(w, StatusOf(err)) }

func WriteStatus(w http.ResponseWriter, st Status) {
	b, err := codec.JSON.Marshal(st)
	if err != nil {
		http.Error(w, st.Message, st.StatusCode)
		return
	}
	w.Header().Set("Content-Type", codec.JSON.ContentType())
	w.WriteHeader(st.StatusCode)
	_, _ = w.Write(b)
}
