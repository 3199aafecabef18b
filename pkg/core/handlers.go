package core

import (
	"net/http"

	"github.com/joeydtaylor/steeze-bearer/pkg/codec"
	"github.com/joeydtaylor/steeze-bearer/pkg/config"
	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
)

type serverInfo struct {
	Service string        `json:"service"`
	Bearer  config.Config `json:"bearer"`
}

// infoHandler reports the loaded configuration with secrets masked.
func infoHandler(cfg config.Config) http.Handler {
	payload, err := codec.JSON.Marshal(serverInfo{Service: "steeze-bearer", Bearer: cfg.Masked()})
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err != nil {
			writeJSON(w, nil, http.StatusInternalServerError)
			return
		}
		writeJSON(w, payload, http.StatusOK)
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	failure.WriteStatus(w, failure.Status{
		StatusCode:  http.StatusNotFound,
		Code:        "ERR10007",
		Message:     "NOT_FOUND",
		Description: "no route for " + r.URL.Path,
	})
}
