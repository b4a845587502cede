package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/runnerr0/burrow/internal/storage"
	"github.com/runnerr0/burrow/internal/tracker"
	"github.com/runnerr0/burrow/internal/transfer"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// badRequest marks a malformed request that never reached the core.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

var errEmptyBody = &badRequest{msg: "request body is empty"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		fe     *transfer.FormatError
		br     *badRequest
		tooBig *http.MaxBytesError
	)
	status := http.StatusInternalServerError
	body := errorBody{Error: "internal error"}

	switch {
	case errors.As(err, &fe):
		status, body = http.StatusBadRequest, errorBody{Error: fe.Error(), Field: fe.Field}
	case errors.As(err, &tooBig):
		status, body = http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"}
	case errors.As(err, &br):
		status, body = http.StatusBadRequest, errorBody{Error: br.msg}
	case errors.Is(err, storage.ErrNotFound):
		status, body = http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.Is(err, tracker.ErrNoActiveNode):
		status, body = http.StatusConflict, errorBody{Error: err.Error()}
	}

	if status >= 500 {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return &badRequest{msg: "invalid JSON body: " + err.Error()}
	}
	return nil
}
