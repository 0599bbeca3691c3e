package inputs

import (
	"strings"

	"github.com/jjudge-oj/roster/internal/form"
	"github.com/jjudge-oj/roster/types"
)

// TodoForm holds the editable fields of a todo item. Status is changed
// through its own action, not this form.
type TodoForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
}

// NewTodoDefaults is the initial state of the "add todo" form.
func NewTodoDefaults() TodoForm {
	return TodoForm{Priority: string(types.PriorityMedium)}
}

// TodoFormFrom seeds an edit form from an existing item.
func TodoFormFrom(t types.TodoItem) TodoForm {
	return TodoForm{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate.String(),
		Category:    t.Category,
		Priority:    string(t.Priority),
	}
}

// ValidateTodo requires a title and a well-formed due date.
func ValidateTodo(v TodoForm) form.Errors {
	errs := form.Errors{}
	if strings.TrimSpace(v.Title) == "" {
		errs["title"] = "Title is required"
	}
	switch {
	case strings.TrimSpace(v.DueDate) == "":
		errs["dueDate"] = "Due date is required"
	default:
		if _, err := types.ParseDate(v.DueDate); err != nil {
			errs["dueDate"] = "Due date must be YYYY-MM-DD"
		}
	}
	if v.Priority != "" && !types.Priority(v.Priority).Valid() {
		errs["priority"] = "Priority must be Low, Medium or High"
	}
	return errs
}

// Patch converts the form into a todo patch. With a nil touched set every
// non-empty field is included (create); otherwise only touched fields are
// (edit). The due date is expected to have passed ValidateTodo.
func (v TodoForm) Patch(touched map[string]bool) types.TodoPatch {
	include := func(field string, value string) bool {
		if touched == nil {
			return value != ""
		}
		return touched[field]
	}

	var p types.TodoPatch
	if include("title", v.Title) {
		title := strings.TrimSpace(v.Title)
		p.Title = &title
	}
	if include("description", v.Description) {
		desc := v.Description
		p.Description = &desc
	}
	if include("dueDate", v.DueDate) {
		if due, err := types.ParseDate(v.DueDate); err == nil {
			p.DueDate = &due
		}
	}
	if include("category", v.Category) {
		category := strings.TrimSpace(v.Category)
		p.Category = &category
	}
	if include("priority", v.Priority) && v.Priority != "" {
		priority := types.Priority(v.Priority)
		p.Priority = &priority
	}
	return p
}
