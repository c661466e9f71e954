// storage_usage.go - Per-user storage usage reporting.
package server

import (
	"log"
	"net/http"
)

type storageUsageResponse struct {
	FileCount        int64 `json:"file_count"`
	StorageUsedBytes int64 `json:"storage_used_bytes"`
}

// storageUsageHandler handles GET /files/storage and reports how many files
// the caller owns and their total size. Shared files count against the owner
// only.
func (s *Server) storageUsageHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, errUnauthorized("not authenticated"))
		return
	}

	var resp storageUsageResponse
	err := s.db.QueryRowContext(r.Context(), `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM files
		WHERE owner_id = $1
	`, id.UserID).Scan(&resp.FileCount, &resp.StorageUsedBytes)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=storage_usage err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
