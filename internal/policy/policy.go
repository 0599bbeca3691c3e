// Package policy derives what a session may do from the acting user's role
// and activity flag. It is the single source of truth for both the consumers
// that decide which actions to offer and the reconciler that enforces them.
package policy

import (
	"errors"
	"fmt"

	"github.com/jjudge-oj/roster/types"
)

// ErrForbidden is returned when the acting session lacks a capability.
var ErrForbidden = errors.New("forbidden")

// Capability names a single mutating action.
type Capability string

const (
	Create       Capability = "create"
	EditOthers   Capability = "edit"
	UpdateStatus Capability = "status"
)

// Capabilities is the set of mutating actions a session may perform.
// It is derived on demand and never persisted.
type Capabilities struct {
	CanCreate       bool `json:"canCreate"`
	CanEditOthers   bool `json:"canEditOthers"`
	CanUpdateStatus bool `json:"canUpdateStatus"`
}

// None is the capability set of an unauthenticated session.
var None = Capabilities{}

// For maps a role and activity flag to a capability set.
//
// Only admins are gated by the activity flag; editors keep edit rights while
// inactive. Every authenticated session may change a todo's status.
func For(role types.Role, isActive bool) Capabilities {
	admin := role == types.RoleAdmin && isActive
	return Capabilities{
		CanCreate:       admin,
		CanEditOthers:   admin || role == types.RoleEditor,
		CanUpdateStatus: true,
	}
}

// ForUser returns the capabilities of the given session user, or None when
// there is no session.
func ForUser(u *types.User) Capabilities {
	if u == nil {
		return None
	}
	return For(u.Role, u.IsActive)
}

// Has reports whether c grants the named capability.
func (c Capabilities) Has(want Capability) bool {
	switch want {
	case Create:
		return c.CanCreate
	case EditOthers:
		return c.CanEditOthers
	case UpdateStatus:
		return c.CanUpdateStatus
	}
	return false
}

// Require returns an error wrapping ErrForbidden unless c grants want.
func Require(c Capabilities, want Capability) error {
	if c.Has(want) {
		return nil
	}
	return fmt.Errorf("%w: missing %s capability", ErrForbidden, want)
}
