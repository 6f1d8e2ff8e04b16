package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/send-tracker/internal/pkg/logger"
)

// Error codes carried in the response envelope. Callers branch on these,
// never on the free-text message.
const (
	CodeInvalidArgument      = "invalid_argument"
	CodeConfirmationRequired = "confirmation_required"
	CodeStorageUnavailable   = "storage_unavailable"
	CodeStorageWriteFailed   = "storage_write_failed"
)

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

var log = logger.Named("httputil")

// JSON writes a JSON response with the given status code. Content-Type is
// set automatically. Encoding failures are logged, not surfaced: by the
// time encoding fails the status line is already on the wire.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("response encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// BadRequest writes a 400 error with a machine-checkable code and a
// message enumerating what was wrong with the request.
func BadRequest(w http.ResponseWriter, code, message string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: code})
}

// StorageError writes a 500 error. The real error goes into the details
// field for operator debugging; the top-level message stays generic so we
// never leak connection strings or credentials.
func StorageError(w http.ResponseWriter, code string, err error) {
	log.Error("storage error", "code", code, "error", err)
	JSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "storage operation failed",
		Code:    code,
		Details: err.Error(),
	})
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, CodeInvalidArgument, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
