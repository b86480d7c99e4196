package services

import (
	"context"

	"support-chat/internal/domain/user"

	"github.com/google/uuid"
)

// Principal is the authenticated caller as carried by the access token.
type Principal struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	DisplayName string
	Roles       []user.Role
}

func (p Principal) IsAdmin() bool {
	return user.ContainsRole(p.Roles, user.RoleAdmin)
}

func (p Principal) HasRole(r user.Role) bool {
	return user.ContainsRole(p.Roles, r)
}

type ctxKey string

var principalKey ctxKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.ID == uuid.Nil {
		return Principal{}, false
	}
	return p, true
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.ID, true
}
