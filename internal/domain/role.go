package domain

import "fmt"

// Role enumerates marketplace account roles.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleOwner    Role = "OWNER"
	RoleManager  Role = "MANAGER"
	RoleMaster   Role = "MASTER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOwner, RoleManager, RoleMaster:
		return true
	default:
		return false
	}
}

// Authority returns the role in its "ROLE_" form.
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

// ParseRole converts a claim or request value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
