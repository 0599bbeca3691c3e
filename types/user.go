package types

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleAdmin, RoleEditor, RoleViewer}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// User represents a member of the roster.
// It contains identity, role, and profile metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" yaml:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" yaml:"name"`

	// Email is the user's email address. Login matches it exactly.
	Email string `json:"email" yaml:"email"`

	// Avatar is the URL of the user's profile picture.
	Avatar string `json:"avatar" yaml:"avatar"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" yaml:"role"`

	// Department is the organisational unit the user belongs to.
	Department string `json:"department" yaml:"department"`

	// Location is the user's office or city.
	Location string `json:"location" yaml:"location"`

	// JoinDate is the day the user joined.
	JoinDate Date `json:"joinDate" yaml:"joinDate"`

	// IsActive marks whether the account may log in. For admins it also
	// gates create and edit capabilities.
	IsActive bool `json:"isActive" yaml:"isActive"`
}

// UserPatch carries a partial update for a User. Nil fields are left
// untouched when the patch is merged.
type UserPatch struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	Role       *Role   `json:"role,omitempty"`
	Department *string `json:"department,omitempty"`
	Location   *string `json:"location,omitempty"`
	JoinDate   *Date   `json:"joinDate,omitempty"`
	IsActive   *bool   `json:"isActive,omitempty"`
}

// Apply merges p into u; fields set in p win.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Department != nil {
		u.Department = *p.Department
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
	if p.JoinDate != nil {
		u.JoinDate = *p.JoinDate
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	return u
}
