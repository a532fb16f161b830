package authz

import "fmt"

// Role is a fixed domain-separator tag bound into every proof digest. A
// proof issued for one role can never verify for another because the tag
// participates in the signed message.
type Role string

const (
	// RoleWhitelisted authorizes participation in the whitelist phase.
	RoleWhitelisted Role = "is-whitelisted"
	// RoleCaptchaSolved authorizes participation in the public phase.
	RoleCaptchaSolved Role = "captcha-solved"
)

// Valid reports whether the role is one of the known tags.
func (r Role) Valid() bool {
	switch r {
	case RoleWhitelisted, RoleCaptchaSolved:
		return true
	}
	return false
}

// ParseRole converts a wire string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("authz: unknown role %q", s)
	}
	return r, nil
}
