package domain

// Role is the access level carried by an authenticated token.
type Role string

const (
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleOperator: 1,
	RoleAdmin:    2,
}

// IsValid reports whether the role is a known access level.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// HasPermission reports whether the role grants at least the given level.
func (r Role) HasPermission(min Role) bool {
	return roleRank[r] >= roleRank[min] && roleRank[r] > 0
}
