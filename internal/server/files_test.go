package server

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBodyTooLarge(t *testing.T) {
	base := &http.MaxBytesError{Limit: 10}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct", base, true},
		{"wrapped once", fmt.Errorf("put object: %w", base), true},
		{"wrapped twice", fmt.Errorf("upload: %w", fmt.Errorf("read: %w", base)), true},
		{"unrelated", errors.New("connection reset"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bodyTooLarge(tt.err); got != tt.want {
				t.Errorf("bodyTooLarge(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRenameHandler_Validation(t *testing.T) {
	// Validation runs before any permission or database work, so a bare
	// Server is enough here.
	s := &Server{}

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"newName": ""}`},
		{"whitespace name", `{"newName": "   "}`},
		{"bad json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPatch, "/files/rename/x", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			s.renameHandler(rr, r)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestShareHandler_Validation(t *testing.T) {
	s := &Server{}

	tests := []struct {
		name string
		body string
	}{
		{"bad email", `{"email": "not-an-email", "role": "view"}`},
		{"bad role", `{"email": "bob@example.com", "role": "owner"}`},
		{"empty role", `{"email": "bob@example.com", "role": ""}`},
		{"bad json", `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/files/share/x", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			s.shareHandler(rr, r)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestRevokeHandler_Validation(t *testing.T) {
	s := &Server{}

	r := httptest.NewRequest(http.MethodDelete, "/files/revoke/x", strings.NewReader(`{"userId": "not-a-uuid"}`))
	rr := httptest.NewRecorder()
	s.revokeHandler(rr, r)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestMultipartFile(t *testing.T) {
	buildRequest := func(field, filename, content string) *http.Request {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile(field, filename)
		_, _ = fw.Write([]byte(content))
		_ = mw.Close()

		r := httptest.NewRequest(http.MethodPost, "/files/upload", &buf)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		return r
	}

	t.Run("file field present", func(t *testing.T) {
		part, err := multipartFile(buildRequest("file", "notes.txt", "hello"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer part.Close()

		if part.FileName() != "notes.txt" {
			t.Fatalf("unexpected filename %q", part.FileName())
		}
	})

	t.Run("wrong field name", func(t *testing.T) {
		if _, err := multipartFile(buildRequest("attachment", "notes.txt", "hello")); err == nil {
			t.Fatalf("expected error when the file field is missing")
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/files/upload", strings.NewReader("plain body"))
		if _, err := multipartFile(r); err == nil {
			t.Fatalf("expected error for non-multipart request")
		}
	})
}
