// Package inputs defines the input forms of the roster and their
// validation rules. Each form pairs a value type with a form.ValidateFunc and
// knows how to turn its values into a record patch.
package inputs

import (
	"github.com/jjudge-oj/roster/internal/form"
)

const msgRequired = "Required"

// NewUserForm returns a form seeded with initial.
func NewUserForm(initial UserForm) (*form.Form[UserForm], error) {
	return form.New(initial, ValidateUser)
}

// NewTodoForm returns a form seeded with initial.
func NewTodoForm(initial TodoForm) (*form.Form[TodoForm], error) {
	return form.New(initial, ValidateTodo)
}

// NewLoginForm returns an empty login form.
func NewLoginForm() (*form.Form[LoginForm], error) {
	return form.New(LoginForm{}, ValidateLogin)
}

// LoginForm collects login credentials.
type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidateLogin requires both fields.
func ValidateLogin(v LoginForm) form.Errors {
	errs := form.Errors{}
	if v.Email == "" {
		errs["email"] = msgRequired
	}
	if v.Password == "" {
		errs["password"] = msgRequired
	}
	return errs
}
