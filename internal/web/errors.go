package web

import (
	"errors"
	"net/http"

	"github.com/klytics/sheetkit/internal/logging"
	"github.com/klytics/sheetkit/internal/refine"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusError is a request problem detected by the handlers themselves.
type statusError struct {
	status int
	msg    string
	err    error
}

func (e *statusError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.msg
}

func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &statusError{status: http.StatusBadRequest, err: err}
}

// statusFor maps a pipeline error to its HTTP status. Inference failures
// keep their kinds apart: 429 for rate limits, 502 for provider errors,
// 504 for transport failures.
func statusFor(err error) (int, string) {
	var se *statusError
	if errors.As(err, &se) {
		if se.status == http.StatusRequestEntityTooLarge {
			return se.status, "upload_too_large"
		}
		return se.status, "bad_request"
	}

	code := refine.Classify(err)
	switch code {
	case refine.CodeInstruction, refine.CodeNoTable:
		return http.StatusBadRequest, string(code)
	case refine.CodeLoad:
		return http.StatusUnprocessableEntity, string(code)
	case refine.CodeRateLimited:
		return http.StatusTooManyRequests, string(code)
	case refine.CodeProvider:
		return http.StatusBadGateway, string(code)
	case refine.CodeTransport:
		return http.StatusGatewayTimeout, string(code)
	}
	return http.StatusInternalServerError, string(code)
}

// respondError logs the technical error server-side and writes a JSON error
// with a message the user can act on.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	msg := refine.UserMessage(err)
	var se *statusError
	if errors.As(err, &se) {
		msg = se.Error()
	}

	logging.FromContext(r.Context()).Warn("request error",
		"path", r.URL.Path,
		"status", status,
		"code", code,
		"error", err.Error(),
	)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
