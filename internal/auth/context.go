package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pnp-dms/docflow-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      uuid.UUID
	Name        string
	Email       string
	Role        domain.UserRole
	Unit        string
	Rank        string
	Designation string
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// IsAdmin checks if the user holds the admin role
func (u *UserContext) IsAdmin() bool {
	return u.Role == domain.RoleAdmin
}

// IsAuthority checks if the user holds the authority role
func (u *UserContext) IsAuthority() bool {
	return u.Role == domain.RoleAuthority
}

// HasRole checks if the user holds the given role
func (u *UserContext) HasRole(role domain.UserRole) bool {
	return u.Role == role
}

// HasAnyRole checks if the user holds any of the given roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRole) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// InUnit reports whether the user belongs to the given office unit.
// Comparison is case-insensitive since unit names come from free-form profile
// fields on some upstream directories.
func (u *UserContext) InUnit(unit string) bool {
	return unit != "" && strings.EqualFold(u.Unit, unit)
}

// NameInitials returns initials from the display name (e.g., "Juan Cruz" -> "JC")
func (u *UserContext) NameInitials() string {
	if u.Name == "" {
		return ""
	}
	parts := strings.Fields(u.Name)
	initials := ""
	for _, part := range parts {
		if len(part) > 0 {
			initials += strings.ToUpper(string(part[0]))
		}
	}
	return initials
}
