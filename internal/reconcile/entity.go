package reconcile

import (
	"github.com/jjudge-oj/roster/internal/policy"
	"github.com/jjudge-oj/roster/types"
)

// Op names a mutation kind.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpSeed   Op = "seed"
)

// Entity adapts a record type R and its patch type P to the reconciler.
type Entity[R, P any] interface {
	// Key is the persisted key of the collection snapshot.
	Key() string
	// Kind is the singular record name used in errors and events.
	Kind() string
	ID(r R) int
	// Build creates a new record with id from patch, filling defaults.
	Build(id int, patch P, today types.Date) R
	// Merge applies patch to r.
	Merge(r R, patch P) R
	// Authorize checks that caps allow op with patch.
	Authorize(caps policy.Capabilities, op Op, patch P) error
}

// DefaultAvatar is assigned to users created without one.
const DefaultAvatar = "https://randomuser.me/api/portraits/lego/1.jpg"

// Users is the Entity for the user directory.
type Users struct{}

func (Users) Key() string         { return "users" }
func (Users) Kind() string        { return "user" }
func (Users) ID(u types.User) int { return u.ID }

func (Users) Build(id int, patch types.UserPatch, today types.Date) types.User {
	u := types.User{
		ID:         id,
		Avatar:     DefaultAvatar,
		Role:       types.RoleViewer,
		Department: "New",
		Location:   "Unknown",
		JoinDate:   today,
	}
	u = patch.Apply(u)
	u.ID = id
	return u
}

func (Users) Merge(u types.User, patch types.UserPatch) types.User {
	return patch.Apply(u)
}

func (Users) Authorize(caps policy.Capabilities, op Op, _ types.UserPatch) error {
	if op == OpCreate {
		return policy.Require(caps, policy.Create)
	}
	return policy.Require(caps, policy.EditOthers)
}

// Todos is the Entity for the todo list.
type Todos struct{}

func (Todos) Key() string             { return "todos" }
func (Todos) Kind() string            { return "todo" }
func (Todos) ID(t types.TodoItem) int { return t.ID }

func (Todos) Build(id int, patch types.TodoPatch, today types.Date) types.TodoItem {
	t := types.TodoItem{
		ID:       id,
		DueDate:  today,
		Category: "General",
		Priority: types.PriorityMedium,
		Status:   types.StatusYetToDo,
	}
	t = patch.Apply(t)
	t.ID = id
	return t
}

func (Todos) Merge(t types.TodoItem, patch types.TodoPatch) types.TodoItem {
	return patch.Apply(t)
}

// Authorize lets any session with the status capability move a todo through
// its workflow; every other change needs edit rights.
func (Todos) Authorize(caps policy.Capabilities, op Op, patch types.TodoPatch) error {
	switch {
	case op == OpCreate:
		return policy.Require(caps, policy.Create)
	case op == OpUpdate && patch.StatusOnly():
		return policy.Require(caps, policy.UpdateStatus)
	default:
		return policy.Require(caps, policy.EditOthers)
	}
}
