package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestResolveAccess_OwnerBeatsEverything(t *testing.T) {
	owner := uuid.New()
	f := &File{
		ID:      uuid.New(),
		OwnerID: owner,
		// Even a conflicting share entry for the owner must not demote them.
		Shares: []ShareEntry{{UserID: owner, Permission: PermissionView}},
	}

	assert.Equal(t, AccessOwner, resolveAccess(f, owner, RoleMember))
	assert.Equal(t, AccessOwner, resolveAccess(f, owner, RoleAdmin))
}

func TestResolveAccess_ShareEntryReturnedVerbatim(t *testing.T) {
	owner := uuid.New()
	viewer := uuid.New()
	editor := uuid.New()
	f := &File{
		ID:      uuid.New(),
		OwnerID: owner,
		Shares: []ShareEntry{
			{UserID: viewer, Permission: PermissionView},
			{UserID: editor, Permission: PermissionEdit},
		},
	}

	assert.Equal(t, AccessView, resolveAccess(f, viewer, RoleMember))
	assert.Equal(t, AccessEdit, resolveAccess(f, editor, RoleMember))
}

func TestResolveAccess_ShareGrantBeatsAdminOverride(t *testing.T) {
	owner := uuid.New()
	admin := uuid.New()
	f := &File{
		ID:      uuid.New(),
		OwnerID: owner,
		Shares:  []ShareEntry{{UserID: admin, Permission: PermissionView}},
	}

	// An admin with an explicit view grant sees exactly view, never the
	// admin fallback.
	assert.Equal(t, AccessView, resolveAccess(f, admin, RoleAdmin))
}

func TestResolveAccess_AdminOverride(t *testing.T) {
	f := &File{ID: uuid.New(), OwnerID: uuid.New()}
	stranger := uuid.New()

	assert.Equal(t, AccessAdmin, resolveAccess(f, stranger, RoleAdmin))
}

func TestResolveAccess_None(t *testing.T) {
	f := &File{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Shares:  []ShareEntry{{UserID: uuid.New(), Permission: PermissionEdit}},
	}
	stranger := uuid.New()

	assert.Equal(t, AccessNone, resolveAccess(f, stranger, RoleMember))
}

func TestAccessPredicates(t *testing.T) {
	tests := []struct {
		level        AccessLevel
		delete       bool
		modify       bool
		manageShares bool
	}{
		{AccessOwner, true, true, true},
		{AccessEdit, true, true, false},
		{AccessView, false, false, false},
		{AccessAdmin, true, false, false},
		{AccessNone, false, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.delete, canDelete(tt.level), "canDelete")
			assert.Equal(t, tt.modify, canModify(tt.level), "canModify")
			assert.Equal(t, tt.manageShares, canManageShares(tt.level), "canManageShares")
		})
	}
}
