// admin.go - Admin-only listings.
package server

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// adminFileInfo is a file record with its owner attached, for the admin
// dashboard.
type adminFileInfo struct {
	ID            uuid.UUID `json:"id"`
	OrigName      string    `json:"orig_name"`
	URL           string    `json:"url"`
	ContentType   string    `json:"content_type"`
	ResourceKind  string    `json:"resource_kind"`
	SizeBytes     int64     `json:"size_bytes"`
	OwnerID       uuid.UUID `json:"owner_id"`
	OwnerUsername string    `json:"owner_username"`
	OwnerEmail    string    `json:"owner_email"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// allFilesHandler handles GET /files/admin/all-files: every file with its
// owner's username and email, newest first. Role admin required (enforced by
// the requireAdmin middleware on the route).
func (s *Server) allFilesHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT f.id, f.orig_name, f.url, f.content_type, f.resource_kind, f.size_bytes,
		       f.owner_id, u.username, u.email, f.created_at, f.updated_at
		FROM files f
		JOIN users u ON u.id = f.owner_id
		ORDER BY f.created_at DESC
	`)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=admin_all_files_query err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}
	defer rows.Close()

	files := make([]adminFileInfo, 0)
	for rows.Next() {
		var f adminFileInfo
		if err := rows.Scan(&f.ID, &f.OrigName, &f.URL, &f.ContentType, &f.ResourceKind,
			&f.SizeBytes, &f.OwnerID, &f.OwnerUsername, &f.OwnerEmail,
			&f.CreatedAt, &f.UpdatedAt); err != nil {
			writeError(w, r, errInternal())
			return
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		writeError(w, r, errInternal())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}
