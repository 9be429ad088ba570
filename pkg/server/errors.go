package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/issuegate/issuegate/pkg/auth"
	"github.com/issuegate/issuegate/pkg/backend"
	"github.com/issuegate/issuegate/pkg/chat"
	"github.com/issuegate/issuegate/pkg/gateway"
	"github.com/issuegate/issuegate/pkg/github"
	"github.com/issuegate/issuegate/pkg/target"
)

// badRequest wraps a client-side validation failure.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string {
	return e.msg
}

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// writeError maps a gateway error to an HTTP status and a structured JSON
// body. Remote rejections mirror the remote status; remote diagnostic
// bodies travel in the details field when they are valid JSON.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	body := errorBody{Error: err.Error()}

	var (
		br       *badRequest
		apiErr   *github.APIError
		remote   *backend.RemoteError
		upstream *chat.UpstreamError
	)

	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		status = http.StatusUnauthorized
	case errors.As(err, &br),
		errors.Is(err, gateway.ErrMissingTitle),
		errors.Is(err, gateway.ErrNoWorkItemConfig),
		errors.Is(err, target.ErrInvalidCoordinate),
		errors.Is(err, target.ErrNoTargetResolved),
		errors.Is(err, target.ErrNoAccessibleRepository):
		status = http.StatusBadRequest
	case errors.Is(err, backend.ErrMalformedResponse):
		status = http.StatusInternalServerError
	case errors.As(err, &remote):
		status = remote.StatusCode
		body.Details = jsonDetails(remote.Body)
	case errors.As(err, &apiErr):
		if github.IsAuthenticationError(apiErr) {
			status = http.StatusUnauthorized
		} else {
			status = apiErr.StatusCode
		}
		body.Details = jsonDetails(apiErr.Body)
	case errors.As(err, &upstream):
		status = upstream.StatusCode
		body.Details = jsonDetails(upstream.Body)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"status", status,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}

	writeJSON(w, status, body)
}

// jsonDetails passes a remote response body through verbatim when it is
// already valid JSON.
func jsonDetails(body []byte) json.RawMessage {
	if json.Valid(body) && len(body) > 0 {
		return json.RawMessage(body)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
