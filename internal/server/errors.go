// errors.go - Error taxonomy and JSON response helpers.
//
// Every handler maps its own failures to one of these errors; nothing is
// retried. Responses carry an HTTP status plus a short message field.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// apiError is an error with an associated HTTP status. Handlers construct
// them with the helpers below and hand them to writeError.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func errBadRequest(msg string) *apiError {
	return &apiError{status: http.StatusBadRequest, message: msg}
}

func errUnauthorized(msg string) *apiError {
	return &apiError{status: http.StatusUnauthorized, message: msg}
}

func errForbidden(msg string) *apiError {
	return &apiError{status: http.StatusForbidden, message: msg}
}

func errNotFound(msg string) *apiError {
	return &apiError{status: http.StatusNotFound, message: msg}
}

func errConflict(msg string) *apiError {
	return &apiError{status: http.StatusConflict, message: msg}
}

func errInternal() *apiError {
	return &apiError{status: http.StatusInternalServerError, message: "server error"}
}

// writeError renders err as a JSON {"message": ...} response. Unknown error
// types become a generic 500; the underlying cause is logged, not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apiError
	if !errors.As(err, &ae) {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=unhandled_error err=%v", rid, err)
		ae = errInternal()
	}
	writeJSON(w, ae.status, map[string]string{"message": ae.message})
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
