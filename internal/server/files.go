// files.go - File CRUD handlers.
//
// Each handler loads the target record, applies its own authorization check
// against the access resolver, and only then mutates state. The storage
// object and the database row are not updated transactionally; replace
// uploads the new object before touching the row so a failure strands at
// worst an orphan object.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// bodyTooLarge reports whether err stems from http.MaxBytesReader cutting
// off the request body. The error surfaces through the multipart reader and
// the storage client, possibly wrapped.
func bodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

var errFileTooLarge = &apiError{status: http.StatusRequestEntityTooLarge, message: "file too large"}

// multipartFile pulls the "file" field out of a multipart request without
// buffering the content in memory. The returned part must be closed.
func multipartFile(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errBadRequest("no file uploaded")
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errBadRequest("bad multipart body")
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		return part, nil
	}
	return nil, errBadRequest("no file uploaded")
}

func partContentType(part *multipart.Part) string {
	ct := part.Header.Get("Content-Type")
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// uploadHandler handles POST /files/upload. The uploader becomes the file's
// owner; ownership never changes afterwards.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	part, err := multipartFile(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = part.Close() }()

	origName := strings.TrimSpace(part.FileName())
	if origName == "" {
		writeError(w, r, errBadRequest("no file uploaded"))
		return
	}
	contentType := partContentType(part)

	obj, err := s.store.Upload(r.Context(), part, -1, contentType)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=upload_putobject err=%v", rid, err)
		if bodyTooLarge(err) {
			writeError(w, r, errFileTooLarge)
			return
		}
		writeError(w, r, errInternal())
		return
	}

	f := File{
		ID:           uuid.New(),
		OwnerID:      id.UserID,
		OrigName:     origName,
		URL:          obj.URL,
		ObjectID:     obj.ObjectID,
		ResourceKind: obj.Kind,
		ContentType:  contentType,
		SizeBytes:    obj.Size,
	}
	err = s.db.QueryRowContext(r.Context(), `
		INSERT INTO files (id, owner_id, orig_name, url, object_id, resource_kind, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, f.ID, f.OwnerID, f.OrigName, f.URL, f.ObjectID, f.ResourceKind, f.ContentType, f.SizeBytes).
		Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=upload_insert err=%v", rid, err)
		// Best effort: don't leave the object orphaned if the record failed.
		if rmErr := s.store.Remove(context.Background(), obj.ObjectID, obj.Kind); rmErr != nil {
			log.Printf("rid=%s msg=upload_orphan_cleanup err=%v", rid, rmErr)
		}
		writeError(w, r, errInternal())
		return
	}

	log.Printf("msg=file_uploaded file=%s owner=%s kind=%s size=%d",
		f.ID, id.UserID, f.ResourceKind, f.SizeBytes)

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "file uploaded successfully",
		"file":    f,
	})
}

// myFilesHandler handles GET /files/my-files: the caller's own files,
// newest first.
func (s *Server) myFilesHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, owner_id, orig_name, url, object_id, resource_kind, content_type, size_bytes, created_at, updated_at
		FROM files
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, id.UserID)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=my_files_query err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}
	defer rows.Close()

	files := make([]File, 0)
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.OrigName, &f.URL, &f.ObjectID,
			&f.ResourceKind, &f.ContentType, &f.SizeBytes, &f.CreatedAt, &f.UpdatedAt); err != nil {
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

// showFileHandler handles GET /files/showfile/{id}. The resolved access
// level is returned alongside the payload; "none" gets a 403 with no file
// data at all.
func (s *Server) showFileHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	f, err := s.fileWithShares(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	level := resolveAccess(f, id.UserID, id.Role)
	if level == AccessNone {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"access":  string(AccessNone),
			"message": "no access",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access": string(level),
		"file":   f,
	})
}

// downloadHandler handles GET /files/download/{id} and streams the stored
// content. Any resolved access level except "none" may download.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	f, err := s.fileWithShares(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	if resolveAccess(f, id.UserID, id.Role) == AccessNone {
		writeError(w, r, errForbidden("you do not have access to this file"))
		return
	}

	obj, err := s.store.Fetch(r.Context(), f.ObjectID, f.ResourceKind)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=download_fetch file=%s err=%v", rid, f.ID, err)
		writeError(w, r, errInternal())
		return
	}
	defer func() { _ = obj.Close() }()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.OrigName))
	w.Header().Set("Content-Length", strconv.FormatInt(f.SizeBytes, 10))
	if _, err := io.Copy(w, obj); err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=download_copy file=%s err=%v", rid, f.ID, err)
	}
}

type renameRequest struct {
	NewName string `json:"newName"`
}

// renameHandler handles PATCH /files/rename/{id}. Owner or an explicit edit
// grant; the admin override is not enough.
func (s *Server) renameHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errBadRequest("invalid request body"))
		return
	}
	req.NewName = strings.TrimSpace(req.NewName)
	if req.NewName == "" {
		writeError(w, r, errBadRequest("new name is required"))
		return
	}

	f, err := s.fileWithShares(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !canModify(resolveAccess(f, id.UserID, id.Role)) {
		writeError(w, r, errForbidden("you do not have permission to rename this file"))
		return
	}

	err = s.db.QueryRowContext(r.Context(), `
		UPDATE files SET orig_name = $1, updated_at = now()
		WHERE id = $2
		RETURNING updated_at
	`, req.NewName, f.ID).Scan(&f.UpdatedAt)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=rename_update err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}
	f.OrigName = req.NewName

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "file renamed",
		"file":    f,
	})
}

// updateContentHandler handles PUT /files/update-content/{id}: replace the
// stored bytes in place, keeping the same file record. The new object is
// uploaded before the row is updated; the old object is removed last, best
// effort, so a crash never leaves the record pointing at a missing object.
func (s *Server) updateContentHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	f, err := s.fileWithShares(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !canModify(resolveAccess(f, id.UserID, id.Role)) {
		writeError(w, r, errForbidden("you do not have permission to update this file"))
		return
	}

	part, err := multipartFile(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = part.Close() }()

	newName := strings.TrimSpace(part.FileName())
	if newName == "" {
		newName = f.OrigName
	}
	contentType := partContentType(part)

	obj, err := s.store.Upload(r.Context(), part, -1, contentType)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=update_putobject err=%v", rid, err)
		if bodyTooLarge(err) {
			writeError(w, r, errFileTooLarge)
			return
		}
		writeError(w, r, errInternal())
		return
	}

	oldObjectID, oldKind := f.ObjectID, f.ResourceKind

	f.URL = obj.URL
	f.ObjectID = obj.ObjectID
	f.ResourceKind = obj.Kind
	f.ContentType = contentType
	f.SizeBytes = obj.Size
	f.OrigName = newName

	err = s.db.QueryRowContext(r.Context(), `
		UPDATE files
		SET orig_name = $1, url = $2, object_id = $3, resource_kind = $4,
		    content_type = $5, size_bytes = $6, updated_at = now()
		WHERE id = $7
		RETURNING updated_at
	`, f.OrigName, f.URL, f.ObjectID, f.ResourceKind, f.ContentType, f.SizeBytes, f.ID).
		Scan(&f.UpdatedAt)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=update_row err=%v", rid, err)
		if rmErr := s.store.Remove(context.Background(), obj.ObjectID, obj.Kind); rmErr != nil {
			log.Printf("rid=%s msg=update_orphan_cleanup err=%v", rid, rmErr)
		}
		writeError(w, r, errInternal())
		return
	}

	// Old content is unreferenced now; removal failures only leak storage.
	if err := s.store.Remove(context.Background(), oldObjectID, oldKind); err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=update_remove_old object=%s kind=%s err=%v", rid, oldObjectID, oldKind, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "file updated successfully",
		"file":    f,
	})
}

// deleteHandler handles DELETE /files/delete/{id}. Owner, an explicit edit
// grant, or the admin override may delete. The stored resource kind selects
// the deletion key for the storage object.
func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFromContext(r.Context())

	f, err := s.fileWithShares(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !canDelete(resolveAccess(f, id.UserID, id.Role)) {
		writeError(w, r, errForbidden("you do not have permission to delete this file"))
		return
	}

	if err := s.store.Remove(r.Context(), f.ObjectID, f.ResourceKind); err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=delete_object file=%s err=%v", rid, f.ID, err)
		writeError(w, r, errInternal())
		return
	}

	if _, err := s.db.ExecContext(r.Context(), `DELETE FROM files WHERE id = $1`, f.ID); err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=delete_row file=%s err=%v", rid, f.ID, err)
		writeError(w, r, errInternal())
		return
	}

	log.Printf("msg=file_deleted file=%s by=%s", f.ID, id.UserID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "file deleted successfully"})
}

// fileWithShares loads a file row and its share list. Returns errNotFound
// for a malformed or unknown id.
func (s *Server) fileWithShares(ctx context.Context, rawID string) (*File, error) {
	fileID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, errNotFound("file not found")
	}

	var f File
	err = s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, orig_name, url, object_id, resource_kind, content_type, size_bytes, created_at, updated_at
		FROM files
		WHERE id = $1
	`, fileID).Scan(&f.ID, &f.OwnerID, &f.OrigName, &f.URL, &f.ObjectID,
		&f.ResourceKind, &f.ContentType, &f.SizeBytes, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound("file not found")
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT fs.user_id, u.username, u.email, fs.permission
		FROM file_shares fs
		JOIN users u ON u.id = fs.user_id
		WHERE fs.file_id = $1
		ORDER BY fs.created_at
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var se ShareEntry
		if err := rows.Scan(&se.UserID, &se.Username, &se.Email, &se.Permission); err != nil {
			return nil, err
		}
		f.Shares = append(f.Shares, se)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &f, nil
}
