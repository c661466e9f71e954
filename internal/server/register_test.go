package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	emailErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}

	constraint, ok := uniqueViolation(emailErr)
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", constraint)

	// Wrapped by a driver or query layer it must still be recognised.
	constraint, ok = uniqueViolation(fmt.Errorf("insert user: %w", emailErr))
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", constraint)

	// Other Postgres errors and plain errors are not conflicts.
	_, ok = uniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)
	_, ok = uniqueViolation(errors.New("connection refused"))
	assert.False(t, ok)
	_, ok = uniqueViolation(nil)
	assert.False(t, ok)
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"user@example.com", "first.last+tag@sub.domain.org"}
	invalid := []string{"", "user", "user@", "@example.com", "user@example"}

	for _, e := range valid {
		assert.True(t, validateEmail(e), e)
	}
	for _, e := range invalid {
		assert.False(t, validateEmail(e), e)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "password1", true},
		{"too short", "pass1", false},
		{"letters only", "passwordonly", false},
		{"numbers only", "12345678", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := validatePassword(tt.password)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		ok       bool
	}{
		{"valid", "alice_01", true},
		{"too short", "ab", false},
		{"bad characters", "alice!", false},
		{"spaces", "alice smith", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _ := validateUsername(tt.username)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := hashPassword("correct horse 1")
	assert.NoError(t, err)
	assert.NotEqual(t, "correct horse 1", hash)

	assert.True(t, verifyPassword("correct horse 1", hash))
	assert.False(t, verifyPassword("wrong password 1", hash))
}

func TestResetTokenHashing(t *testing.T) {
	tok, err := generateResetToken()
	assert.NoError(t, err)
	assert.Len(t, tok, 64)

	other, err := generateResetToken()
	assert.NoError(t, err)
	assert.NotEqual(t, tok, other)

	// The stored value is a hash, never the token itself, and hashing is
	// deterministic so lookups match.
	assert.NotEqual(t, tok, hashResetToken(tok))
	assert.Equal(t, hashResetToken(tok), hashResetToken(tok))
}
