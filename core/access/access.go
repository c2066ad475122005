// Package access decides what an authenticated User may do with owned and shared resources.
package access

import "github.com/trezcool/sistira/core/user"

// IsMember reports whether id is one of members.
func IsMember(id string, members []user.Summary) bool {
	for _, m := range members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// CanRead reports whether actor is an admin, the owner or part of any of the member groups.
func CanRead(actor user.User, ownerID string, groups ...[]user.Summary) bool {
	if actor.IsAdmin || actor.ID == ownerID {
		return true
	}
	for _, members := range groups {
		if IsMember(actor.ID, members) {
			return true
		}
	}
	return false
}

// CanWrite reports whether actor may modify a resource: admins, its owner and its collaborators.
func CanWrite(actor user.User, ownerID string, collaborators []user.Summary) bool {
	return actor.IsAdmin || actor.ID == ownerID || IsMember(actor.ID, collaborators)
}

// CanDelete reports whether actor may delete a resource or change who collaborates on it.
func CanDelete(actor user.User, ownerID string) bool {
	return actor.IsAdmin || actor.ID == ownerID
}

// CanManageReferenceData reports whether actor may update or delete shared reference data
// such as study areas and disciplines.
func CanManageReferenceData(actor user.User) bool {
	return actor.IsAdmin
}

// SameMembers reports whether ids are exactly the ids of members, regardless of order.
func SameMembers(ids []string, members []user.Summary) bool {
	if len(ids) != len(members) {
		return false
	}
	for _, id := range ids {
		if !IsMember(id, members) {
			return false
		}
	}
	return true
}

// NewMembers returns the members that are not part of prev.
func NewMembers(members, prev []user.Summary) []user.Summary {
	added := make([]user.Summary, 0, len(members))
	for _, m := range members {
		if !IsMember(m.ID, prev) {
			added = append(added, m)
		}
	}
	return added
}
