// Package authz holds the single authorization policy used by every
// operation that touches a user-owned resource or an admin-only function.
package authz

import (
	"github.com/utafrali/DeliveryGo/internal/domain"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

const deniedMessage = "not enough permissions"

// IsAdmin reports whether actor has superuser rights.
func IsAdmin(actor *domain.User) bool {
	return actor != nil && actor.IsSuperuser
}

// CanAct allows admins and the owner of a resource; anyone else gets
// PermissionDenied.
func CanAct(actor *domain.User, ownerID string) error {
	if actor == nil {
		return apperrors.PermissionDenied(deniedMessage)
	}
	if IsAdmin(actor) || actor.ID == ownerID {
		return nil
	}
	return apperrors.PermissionDenied(deniedMessage)
}

// RequireAdmin allows admins only.
func RequireAdmin(actor *domain.User) error {
	if !IsAdmin(actor) {
		return apperrors.PermissionDenied(deniedMessage)
	}
	return nil
}

// ScopeUserID returns the user a listing must be restricted to: "" (no
// restriction) for admins, the actor's own ID otherwise.
func ScopeUserID(actor *domain.User) string {
	if IsAdmin(actor) {
		return ""
	}
	return actor.ID
}
