// share.go - Grant and revoke per-user file access.
package server

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type shareRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type revokeRequest struct {
	UserID string `json:"userId"`
}

// shareHandler handles POST /files/share/{id}. Owner only. The upsert keyed
// on (file_id, user_id) makes re-granting overwrite the permission instead
// of appending a duplicate, and keeps concurrent grants convergent.
func (s *Server) shareHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errBadRequest("invalid request body"))
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if !validateEmail(req.Email) {
		writeError(w, r, errBadRequest("invalid email address"))
		return
	}
	if !validPermission(req.Role) {
		writeError(w, r, errBadRequest("role must be view or edit"))
		return
	}

	var targetID uuid.UUID
	err := s.db.QueryRowContext(r.Context(),
		`SELECT id FROM users WHERE email = $1`, req.Email,
	).Scan(&targetID)
	if err == sql.ErrNoRows {
		writeError(w, r, errNotFound("user with this email not found"))
		return
	}
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=share_user_lookup err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	f, err := s.fileWithShares(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !canManageShares(resolveAccess(f, id.UserID, id.Role)) {
		writeError(w, r, errForbidden("not authorized"))
		return
	}

	if targetID == f.OwnerID {
		writeError(w, r, errBadRequest("cannot share a file with its owner"))
		return
	}

	_, err = s.db.ExecContext(r.Context(), `
		INSERT INTO file_shares (file_id, user_id, permission)
		VALUES ($1, $2, $3)
		ON CONFLICT (file_id, user_id) DO UPDATE SET permission = EXCLUDED.permission
	`, f.ID, targetID, req.Role)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=share_upsert err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	log.Printf("msg=access_granted file=%s to=%s permission=%s", f.ID, targetID, req.Role)

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "access granted to " + req.Email,
	})
}

// revokeHandler handles DELETE /files/revoke/{id}. Owner only; removing a
// user who has no entry is a no-op.
func (s *Server) revokeHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errBadRequest("invalid request body"))
		return
	}

	targetID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		writeError(w, r, errBadRequest("invalid user id"))
		return
	}

	f, err := s.fileWithShares(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !canManageShares(resolveAccess(f, id.UserID, id.Role)) {
		writeError(w, r, errForbidden("not authorized"))
		return
	}

	_, err = s.db.ExecContext(r.Context(),
		`DELETE FROM file_shares WHERE file_id = $1 AND user_id = $2`,
		f.ID, targetID,
	)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=revoke_delete err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	log.Printf("msg=access_revoked file=%s from=%s", f.ID, targetID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "access revoked successfully"})
}
