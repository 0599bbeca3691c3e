package inputs

import (
	"strings"

	"github.com/jjudge-oj/roster/internal/form"
	"github.com/jjudge-oj/roster/types"
)

// UserForm holds the editable fields of a user.
type UserForm struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

// NewUserDefaults is the initial state of the "add user" form.
func NewUserDefaults() UserForm {
	return UserForm{Role: string(types.RoleViewer)}
}

// UserFormFrom seeds an edit form from an existing user.
func UserFormFrom(u types.User) UserForm {
	return UserForm{
		Name:     u.Name,
		Email:    u.Email,
		Role:     string(u.Role),
		IsActive: u.IsActive,
	}
}

// ValidateUser requires a name and an email and rejects unknown roles.
func ValidateUser(v UserForm) form.Errors {
	errs := form.Errors{}
	if strings.TrimSpace(v.Name) == "" {
		errs["name"] = msgRequired
	}
	if strings.TrimSpace(v.Email) == "" {
		errs["email"] = msgRequired
	}
	if v.Role != "" && !types.Role(v.Role).Valid() {
		errs["role"] = "Role must be Admin, Editor or Viewer"
	}
	return errs
}

// Patch converts the form into a user patch. With a nil touched set every
// field is included (create); otherwise only touched fields are (edit).
func (v UserForm) Patch(touched map[string]bool) types.UserPatch {
	include := func(field string) bool { return touched == nil || touched[field] }

	var p types.UserPatch
	if include("name") {
		name := strings.TrimSpace(v.Name)
		p.Name = &name
	}
	if include("email") {
		email := strings.TrimSpace(v.Email)
		p.Email = &email
	}
	if include("role") && v.Role != "" {
		role := types.Role(v.Role)
		p.Role = &role
	}
	if include("isActive") {
		active := v.IsActive
		p.IsActive = &active
	}
	return p
}
