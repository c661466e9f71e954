// register.go - Signup and password reset flows.
package server

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// resetTokenTTL bounds how long an emailed reset link stays usable.
const resetTokenTTL = 15 * time.Minute

type signupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// validatePassword checks password strength requirements.
func validatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "password must be at least 8 characters long"
	}
	if len(password) > 128 {
		return false, "password must be less than 128 characters"
	}
	hasNumber := regexp.MustCompile(`[0-9]`).MatchString(password)
	hasLetter := regexp.MustCompile(`[a-zA-Z]`).MatchString(password)
	if !hasNumber || !hasLetter {
		return false, "password must contain both letters and numbers"
	}
	return true, ""
}

func validateUsername(username string) (bool, string) {
	if len(username) < 3 {
		return false, "username must be at least 3 characters long"
	}
	if len(username) > 50 {
		return false, "username must be less than 50 characters"
	}
	if !regexp.MustCompile(`^[a-zA-Z0-9_]+$`).MatchString(username) {
		return false, "username can only contain letters, numbers, and underscores"
	}
	return true, ""
}

// hashPassword generates a bcrypt hash of the password.
func hashPassword(password string) (string, error) {
	// bcrypt cost of 12 is a good balance of security and performance
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// generateResetToken creates a random hex token for password reset. Only the
// SHA-256 of the token is stored; the plaintext goes out in the email link.
func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// uniqueViolation reports the violated constraint name when err is a
// Postgres unique-constraint error (code 23505).
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// signupHandler handles POST /auth/signup. Duplicate email and duplicate
// username are reported with distinct 409 messages. The pre-insert lookup
// produces the friendly message; the unique constraints on the INSERT are
// the backstop for a concurrent signup that slips past it.
func (s *Server) signupHandler(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errBadRequest("invalid request body"))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if req.Username == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "" {
		writeError(w, r, errBadRequest("all fields are required"))
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, r, errBadRequest("passwords do not match"))
		return
	}
	if !validateEmail(req.Email) {
		writeError(w, r, errBadRequest("invalid email address"))
		return
	}
	if ok, msg := validateUsername(req.Username); !ok {
		writeError(w, r, errBadRequest(msg))
		return
	}
	if ok, msg := validatePassword(req.Password); !ok {
		writeError(w, r, errBadRequest(msg))
		return
	}

	// Check for an existing account and report which field collided.
	var existingEmail, existingUsername string
	err := s.db.QueryRowContext(r.Context(),
		`SELECT email, username FROM users WHERE email = $1 OR username = $2`,
		req.Email, req.Username,
	).Scan(&existingEmail, &existingUsername)
	switch {
	case err == nil:
		if existingEmail == req.Email {
			writeError(w, r, errConflict("email is already registered"))
		} else {
			writeError(w, r, errConflict("username is already taken"))
		}
		return
	case err != sql.ErrNoRows:
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=signup_lookup err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=signup_hash err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	u := User{
		ID:       uuid.New(),
		Email:    req.Email,
		Username: req.Username,
		Role:     RoleMember,
	}
	err = s.db.QueryRowContext(r.Context(), `
		INSERT INTO users (id, email, username, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Username, passwordHash, u.Role).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "email") {
				writeError(w, r, errConflict("email is already registered"))
			} else {
				writeError(w, r, errConflict("username is already taken"))
			}
			return
		}
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=signup_insert err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	tok, _, err := s.makeToken(u.ID, u.Role)
	if err != nil {
		writeError(w, r, errInternal())
		return
	}

	log.Printf("msg=signup_created user=%s email=%s", u.Username, u.Email)

	writeJSON(w, http.StatusCreated, authResponse{
		Message: "signup successful",
		Token:   tok,
		User:    u,
	})
}

// forgotPasswordHandler handles POST /auth/forgot-password. The response is
// the same whether or not the account exists.
func (s *Server) forgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errBadRequest("invalid request body"))
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if !validateEmail(req.Email) {
		writeError(w, r, errBadRequest("invalid email address"))
		return
	}

	neutral := map[string]string{"message": "if the email exists, a reset link has been sent"}

	var userID uuid.UUID
	err := s.db.QueryRowContext(r.Context(),
		`SELECT id FROM users WHERE email = $1`, req.Email,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusOK, neutral)
		return
	}
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=forgot_lookup err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	token, err := generateResetToken()
	if err != nil {
		writeError(w, r, errInternal())
		return
	}

	expiresAt := time.Now().UTC().Add(resetTokenTTL)
	_, err = s.db.ExecContext(r.Context(), `
		UPDATE users
		SET reset_token_hash = $1,
		    reset_token_expires = $2,
		    updated_at = now()
		WHERE id = $3
	`, hashResetToken(token), expiresAt, userID)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=forgot_update err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	if err := s.email.SendPasswordResetEmail(req.Email, token, s.baseURL); err != nil {
		// The token is stored; a delivery failure should not reveal anything
		// to the caller.
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=forgot_email err=%v", rid, err)
	}

	writeJSON(w, http.StatusOK, neutral)
}

// resetPasswordHandler handles POST /auth/reset-password/{token}. The token
// is single-use: a successful reset clears the stored hash and expiry.
func (s *Server) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if token == "" {
		writeError(w, r, errBadRequest("missing reset token"))
		return
	}

	var req struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errBadRequest("invalid request body"))
		return
	}

	if req.Password != req.ConfirmPassword {
		writeError(w, r, errBadRequest("passwords do not match"))
		return
	}
	if ok, msg := validatePassword(req.Password); !ok {
		writeError(w, r, errBadRequest(msg))
		return
	}

	var userID uuid.UUID
	var expiresAt time.Time
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, reset_token_expires
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires IS NOT NULL
	`, hashResetToken(token)).Scan(&userID, &expiresAt)
	if err == sql.ErrNoRows {
		writeError(w, r, errBadRequest("invalid or expired reset token"))
		return
	}
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=reset_lookup err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	if time.Now().UTC().After(expiresAt) {
		writeError(w, r, errBadRequest("invalid or expired reset token"))
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, r, errInternal())
		return
	}

	_, err = s.db.ExecContext(r.Context(), `
		UPDATE users
		SET password_hash = $1,
		    reset_token_hash = NULL,
		    reset_token_expires = NULL,
		    updated_at = now()
		WHERE id = $2
	`, passwordHash, userID)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=reset_update err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	log.Printf("msg=password_reset user=%s", userID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset successfully"})
}
