package types

// Priority ranks how urgent a todo item is.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the progress state of a todo item.
type Status string

const (
	StatusYetToDo    Status = "Yet To Do"
	StatusInProgress Status = "In Progress"
	StatusHalted     Status = "Halted"
	StatusCompleted  Status = "Completed"
)

// Statuses lists every known status in workflow order.
var Statuses = []Status{StatusYetToDo, StatusInProgress, StatusHalted, StatusCompleted}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusYetToDo, StatusInProgress, StatusHalted, StatusCompleted:
		return true
	}
	return false
}

// TodoItem is a single task on the shared todo list.
type TodoItem struct {
	ID          int      `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	DueDate     Date     `json:"dueDate" yaml:"dueDate"`
	Category    string   `json:"category" yaml:"category"`
	Priority    Priority `json:"priority" yaml:"priority"`
	Status      Status   `json:"status" yaml:"status"`
}

// TodoPatch carries a partial update for a TodoItem.
type TodoPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	DueDate     *Date     `json:"dueDate,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Status      *Status   `json:"status,omitempty"`
}

// StatusOnly reports whether the patch changes nothing but the status.
func (p TodoPatch) StatusOnly() bool {
	return p.Status != nil &&
		p.Title == nil &&
		p.Description == nil &&
		p.DueDate == nil &&
		p.Category == nil &&
		p.Priority == nil
}

// Apply merges p into t; fields set in p win.
func (p TodoPatch) Apply(t TodoItem) TodoItem {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return t
}
