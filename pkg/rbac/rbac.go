package rbac

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidRole             = errors.New("rbac: invalid role")
	ErrInsufficientPermissions = errors.New("rbac: insufficient permissions")
	ErrNoRole                  = errors.New("rbac: no role in context")
)

// Role is a user's account role. The set is closed.
type Role string

const (
	RoleMember        Role = "member"
	RoleAdmin         Role = "admin"          // company administrator
	RoleLogSmartAdmin Role = "logsmart_admin" // platform operator
)

// Roles lists every valid role.
var Roles = []Role{RoleMember, RoleAdmin, RoleLogSmartAdmin}

// ParseRole converts a stored role name into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleMember, RoleAdmin, RoleLogSmartAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) bit() RoleSet {
	switch r {
	case RoleMember:
		return 1 << 0
	case RoleAdmin:
		return 1 << 1
	case RoleLogSmartAdmin:
		return 1 << 2
	default:
		return 0
	}
}

// RoleSet is a bitmask of roles.
type RoleSet uint8

// SetOf builds a RoleSet from roles. Unknown roles are ignored.
func SetOf(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= r.bit()
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool {
	b := r.bit()
	return b != 0 && s&b == b
}

// Capability is an operation class guarded by the access gate.
type Capability uint8

const (
	// CapabilityMember is any authenticated account.
	CapabilityMember Capability = iota + 1
	// CapabilityManageCompany covers company settings, users and invitations.
	CapabilityManageCompany
	// CapabilityManageBranch covers branch level administration.
	CapabilityManageBranch
	// CapabilityPlatformAdmin covers cross-tenant operator endpoints.
	CapabilityPlatformAdmin
)

// grants is the single source of truth mapping capabilities to roles.
var grants = map[Capability]RoleSet{
	CapabilityMember:        SetOf(RoleMember, RoleAdmin, RoleLogSmartAdmin),
	CapabilityManageCompany: SetOf(RoleAdmin, RoleLogSmartAdmin),
	CapabilityManageBranch:  SetOf(RoleAdmin, RoleLogSmartAdmin),
	CapabilityPlatformAdmin: SetOf(RoleLogSmartAdmin),
}

// Allows reports whether role holds the capability. Unknown capabilities and
// unknown roles are denied.
func (c Capability) Allows(role Role) bool {
	set, ok := grants[c]
	return ok && set.Has(role)
}

// Check is Allows returning ErrInsufficientPermissions on denial.
func (c Capability) Check(role Role) error {
	if !c.Allows(role) {
		return fmt.Errorf("%w: %s lacks %s", ErrInsufficientPermissions, role, c)
	}
	return nil
}

func (c Capability) String() string {
	switch c {
	case CapabilityMember:
		return "member"
	case CapabilityManageCompany:
		return "manage_company"
	case CapabilityManageBranch:
		return "manage_branch"
	case CapabilityPlatformAdmin:
		return "platform_admin"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

type roleKey struct{}

// WithRole returns ctx carrying role.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFrom(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(roleKey{}).(Role)
	return role, ok
}

// Authorize checks the role carried by ctx against c.
func Authorize(ctx context.Context, c Capability) error {
	role, ok := RoleFrom(ctx)
	if !ok {
		return ErrNoRole
	}
	return c.Check(role)
}
