// access.go - File access resolution.
//
// Maps (file, requester, role) to an access level in strict priority order:
// owner beats an explicit share grant, which beats the admin override. The
// admin override deliberately ranks below an explicit grant so that an admin
// who was shared a file as "view" sees exactly "view".
package server

import "github.com/google/uuid"

// AccessLevel is the requester's resolved access to a file.
type AccessLevel string

const (
	AccessOwner AccessLevel = "owner"
	AccessEdit  AccessLevel = "edit"
	AccessView  AccessLevel = "view"
	AccessAdmin AccessLevel = "admin"
	AccessNone  AccessLevel = "none"
)

// resolveAccess determines the access level of userID with the given role on
// f. f.Shares must be loaded. The scan over the share list is linear; ties
// are impossible because entries are keyed by user.
func resolveAccess(f *File, userID uuid.UUID, role string) AccessLevel {
	if f.OwnerID == userID {
		return AccessOwner
	}
	for _, s := range f.Shares {
		if s.UserID == userID {
			switch s.Permission {
			case PermissionEdit:
				return AccessEdit
			default:
				return AccessView
			}
		}
	}
	if role == RoleAdmin {
		return AccessAdmin
	}
	return AccessNone
}

// canDelete reports whether the requester may delete the file:
// owner, an explicit edit grant, or the admin override.
func canDelete(level AccessLevel) bool {
	return level == AccessOwner || level == AccessEdit || level == AccessAdmin
}

// canModify reports whether the requester may rename the file or replace its
// content: owner or an explicit edit grant. The admin override alone is
// deliberately not sufficient here.
func canModify(level AccessLevel) bool {
	return level == AccessOwner || level == AccessEdit
}

// canManageShares reports whether the requester may grant or revoke access:
// owner only.
func canManageShares(level AccessLevel) bool {
	return level == AccessOwner
}
