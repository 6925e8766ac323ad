package model

import "strings"

// Role is one value of the closed portal role set.
type Role string

const (
	// RoleMember is the baseline role every signed-in identity can act as.
	RoleMember Role = "member"
	// RoleBoard is the elevated board-of-directors role.
	RoleBoard Role = "board"
	// RoleSteward is the elevated permission-manager role. It owns the
	// route permission override table.
	RoleSteward Role = "steward"
	// RoleChair is a dual-capability base role that may temporarily assume
	// either the board or the steward role, one at a time.
	RoleChair Role = "chair"
	// RoleAdmin is the top-level administrative role. It is
	// elevation-eligible and may assume any elevated role for support.
	RoleAdmin Role = "admin"
)

// PermissionLevel is the access granted to a (route, role) pair.
type PermissionLevel int

const (
	LevelNone PermissionLevel = iota
	LevelRead
	LevelWrite
)

func (l PermissionLevel) String() string {
	switch l {
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	default:
		return "none"
	}
}

// ParseRole normalizes and validates a role name.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleMember:
		return RoleMember, true
	case RoleBoard:
		return RoleBoard, true
	case RoleSteward:
		return RoleSteward, true
	case RoleChair:
		return RoleChair, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// ParsePermissionLevel normalizes a textual permission level.
func ParsePermissionLevel(raw string) (PermissionLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none":
		return LevelNone, true
	case "read":
		return LevelRead, true
	case "write":
		return LevelWrite, true
	default:
		return LevelNone, false
	}
}

// elevatedRoles are reachable only through a time-boxed elevation window.
var elevatedRoles = map[Role]struct{}{
	RoleBoard:   {},
	RoleSteward: {},
	RoleAdmin:   {},
}

// assumeTargets lists the adjacent elevated roles a base role may assume.
var assumeTargets = map[Role][]Role{
	RoleChair: {RoleBoard, RoleSteward},
	RoleAdmin: {RoleBoard, RoleSteward},
}

// IsElevated reports whether the role belongs to the elevated set.
func IsElevated(role Role) bool {
	_, ok := elevatedRoles[role]
	return ok
}

// CanElevate reports whether an identity with the given base role may
// activate the target role via elevation. Elevation only uplifts an
// identity into its own elevated form, never a different role.
func CanElevate(base Role, target Role) bool {
	return base == target && IsElevated(base)
}

// CanAssume reports whether an identity with the given base role may
// temporarily operate as the target role.
func CanAssume(base Role, target Role) bool {
	for _, allowed := range assumeTargets[base] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AssumableRoles returns the roles the given base role may assume.
func AssumableRoles(base Role) []Role {
	targets := assumeTargets[base]
	out := make([]Role, len(targets))
	copy(out, targets)
	return out
}

// BaselineOf returns the role an identity operates as when no elevation
// or assumption is active. Elevated roles degrade to the member baseline;
// everything else keeps its stored base role.
func BaselineOf(base Role) Role {
	if IsElevated(base) {
		return RoleMember
	}
	return base
}
