package user

import "strconv"

// Role is a numeric role code carried in tokens and stored on the user row.
type Role int

const (
	RoleUser   Role = 2001
	RoleEditor Role = 1984
	RoleAdmin  Role = 2003
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleEditor:
		return "editor"
	case RoleAdmin:
		return "admin"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// ContainsRole reports whether r is present in roles.
func ContainsRole(roles []Role, r Role) bool {
	for _, have := range roles {
		if have == r {
			return true
		}
	}
	return false
}

// ParseRoles keeps only known role codes.
func ParseRoles(codes []int) []Role {
	out := make([]Role, 0, len(codes))
	for _, c := range codes {
		switch Role(c) {
		case RoleUser, RoleEditor, RoleAdmin:
			out = append(out, Role(c))
		}
	}
	return out
}
