// auth.go - Signed bearer tokens and authentication middleware.
//
// Tokens are HMAC-SHA256 signed "payload.signature" strings carrying the
// user id, role, and expiry. Verification re-loads the user row so role and
// email changes take effect on the next request; there is no revocation
// list, so a token stays valid until expiry.
package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type tokenPayload struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	Exp  int64  `json:"exp"`
}

func signPayload(secret []byte, msg string) string {
	m := hmac.New(sha256.New, secret)
	_, _ = m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

func encodePayload(p tokenPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodePayload(token string) (tokenPayload, error) {
	var p tokenPayload
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, err
	}
	return p, nil
}

// makeToken returns "payload.signature" for the given user.
func (s *Server) makeToken(userID uuid.UUID, role string) (string, time.Time, error) {
	exp := time.Now().Add(s.tokenTTL)
	p := tokenPayload{Sub: userID.String(), Role: role, Exp: exp.Unix()}
	payload, err := encodePayload(p)
	if err != nil {
		return "", time.Time{}, err
	}
	sig := signPayload(s.secret, payload)
	return payload + "." + sig, exp, nil
}

var errTokenExpired = errors.New("token expired")

func verifyToken(secret []byte, tok string, now time.Time) (tokenPayload, error) {
	var p tokenPayload
	parts := strings.Split(tok, ".")
	if len(parts) != 2 {
		return p, errors.New("invalid token format")
	}
	payload, sig := parts[0], parts[1]
	want := signPayload(secret, payload)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return p, errors.New("invalid signature")
	}
	decoded, err := decodePayload(payload)
	if err != nil {
		return p, err
	}
	if decoded.Exp <= now.Unix() {
		return p, errTokenExpired
	}
	return decoded, nil
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

type identityKeyType struct{}

var identityKey identityKeyType

// identityFromContext returns the authenticated caller set by requireAuth.
func identityFromContext(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey).(identity)
	return id, ok
}

// requireAuth verifies the bearer token, re-loads the user record, and stores
// the resulting identity in the request context. A user deleted after token
// issuance gets 401 even with a valid signature.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			writeError(w, r, errUnauthorized("not authenticated"))
			return
		}

		payload, err := verifyToken(s.secret, tok, time.Now())
		if err != nil {
			writeError(w, r, errUnauthorized("invalid or expired token"))
			return
		}

		userID, err := uuid.Parse(payload.Sub)
		if err != nil {
			writeError(w, r, errUnauthorized("invalid or expired token"))
			return
		}

		id := identity{UserID: userID}
		err = s.db.QueryRowContext(r.Context(),
			`SELECT email, username, role FROM users WHERE id = $1`,
			userID,
		).Scan(&id.Email, &id.Username, &id.Role)
		if err != nil {
			if err == sql.ErrNoRows {
				writeError(w, r, errUnauthorized("user not found"))
				return
			}
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=auth_user_lookup err=%v", rid, err)
			writeError(w, r, errInternal())
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin layers an admin role check on top of requireAuth.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFromContext(r.Context())
		if !ok || id.Role != RoleAdmin {
			writeError(w, r, errForbidden("admins only"))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// authResponse is returned by signup and login.
type authResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginHandler handles POST /auth/login. Unknown email and wrong password
// produce the identical message so the response does not reveal which
// accounts exist.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errBadRequest("invalid request body"))
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, r, errBadRequest("all fields are required"))
		return
	}

	// Locked accounts get the same answer as a bad password so the lockout
	// does not leak which accounts exist.
	if s.lockout != nil && s.lockout.isLocked(req.Email) {
		writeError(w, r, errUnauthorized("invalid email or password"))
		return
	}

	u, err := s.userByEmail(r.Context(), req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			if s.lockout != nil {
				s.lockout.recordFailure(req.Email)
			}
			writeError(w, r, errUnauthorized("invalid email or password"))
			return
		}
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=login_lookup err=%v", rid, err)
		writeError(w, r, errInternal())
		return
	}

	if !verifyPassword(req.Password, u.PasswordHash) {
		if s.lockout != nil && s.lockout.recordFailure(req.Email) {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=account_locked email=%s", rid, req.Email)
		}
		writeError(w, r, errUnauthorized("invalid email or password"))
		return
	}

	if s.lockout != nil {
		s.lockout.recordSuccess(req.Email)
	}

	tok, _, err := s.makeToken(u.ID, u.Role)
	if err != nil {
		writeError(w, r, errInternal())
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message: "login successful",
		Token:   tok,
		User:    u,
	})
}

// logoutHandler handles POST /auth/logout. Tokens are stateless, so this is
// an acknowledgement only; the token remains valid until expiry.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// meHandler handles GET /auth/me and returns the verified identity.
func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, errUnauthorized("not authenticated"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]string{
			"id":       id.UserID.String(),
			"email":    id.Email,
			"username": id.Username,
			"role":     id.Role,
		},
	})
}

func (s *Server) userByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, username, password_hash, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
