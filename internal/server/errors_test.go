package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError_KnownStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"bad request", errBadRequest("missing field"), http.StatusBadRequest, "missing field"},
		{"unauthorized", errUnauthorized("not authenticated"), http.StatusUnauthorized, "not authenticated"},
		{"forbidden", errForbidden("no access"), http.StatusForbidden, "no access"},
		{"not found", errNotFound("file not found"), http.StatusNotFound, "file not found"},
		{"conflict", errConflict("email is already registered"), http.StatusConflict, "email is already registered"},
		{"internal", errInternal(), http.StatusInternalServerError, "server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			writeError(rr, r, tt.err)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["message"] != tt.wantMsg {
				t.Fatalf("message = %q, want %q", body["message"], tt.wantMsg)
			}
		})
	}
}

func TestWriteError_UnknownErrorBecomes500(t *testing.T) {
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rr, r, errors.New("pq: connection refused"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}

	// The underlying cause must not leak to the client.
	var body map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if body["message"] != "server error" {
		t.Fatalf("message = %q, want generic", body["message"])
	}
}
