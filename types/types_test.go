package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDateJSON(t *testing.T) {
	item := TodoItem{ID: 1, Title: "Write spec", DueDate: NewDate(2024, time.June, 1)}
	raw, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"dueDate":"2024-06-01"`)

	var back TodoItem
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.DueDate.Equal(item.DueDate.Time))

	var empty TodoItem
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":""}`), &empty))
	assert.True(t, empty.DueDate.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"dueDate":"06/01/2024"}`), &empty))
}

func TestDateYAML(t *testing.T) {
	var u User
	require.NoError(t, yaml.Unmarshal([]byte("joinDate: 2023-01-15\n"), &u))
	assert.Equal(t, "2023-01-15", u.JoinDate.String())
}

func TestDateOfDropsClock(t *testing.T) {
	d := DateOf(time.Date(2024, time.May, 20, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, "2024-05-20", d.String())
	assert.Equal(t, "", Date{}.String())
}

func TestFilterUsers(t *testing.T) {
	users := []User{
		{ID: 1, Name: "John Doe", Email: "john@example.com", IsActive: true},
		{ID: 2, Name: "Jane Smith", Email: "jane@example.com", IsActive: true},
		{ID: 3, Name: "Bob Johnson", Email: "bob@example.com", IsActive: false},
	}

	tests := []struct {
		name     string
		search   string
		activity ActivityFilter
		want     []int
	}{
		{"all", "", ActivityAll, []int{1, 2, 3}},
		{"name match ignores case", "JOHN", ActivityAll, []int{1, 3}},
		{"email match", "jane@", ActivityAll, []int{2}},
		{"inactive", "", ActivityInactive, []int{3}},
		{"search and active", "john", ActivityActive, []int{1}},
		{"no match", "zed", ActivityAll, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []int{}
			for _, u := range FilterUsers(users, tt.search, tt.activity) {
				got = append(got, u.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseActivityFilter(t *testing.T) {
	f, err := ParseActivityFilter("")
	require.NoError(t, err)
	assert.Equal(t, ActivityAll, f)

	f, err = ParseActivityFilter(" Inactive ")
	require.NoError(t, err)
	assert.Equal(t, ActivityInactive, f)

	_, err = ParseActivityFilter("sometimes")
	assert.Error(t, err)
}

func TestPatchesOnlyTouchSetFields(t *testing.T) {
	name := "Jane Roe"
	u := UserPatch{Name: &name}.Apply(User{ID: 2, Name: "Jane Smith", Role: RoleEditor, IsActive: true})
	assert.Equal(t, User{ID: 2, Name: "Jane Roe", Role: RoleEditor, IsActive: true}, u)

	status := StatusCompleted
	p := TodoPatch{Status: &status}
	assert.True(t, p.StatusOnly())
	todo := p.Apply(TodoItem{Title: "Ship", Priority: PriorityHigh, Status: StatusYetToDo})
	assert.Equal(t, StatusCompleted, todo.Status)
	assert.Equal(t, PriorityHigh, todo.Priority)

	title := "Ship it"
	assert.False(t, TodoPatch{Status: &status, Title: &title}.StatusOnly())
	assert.False(t, TodoPatch{}.StatusOnly())
}

func TestEnumsValid(t *testing.T) {
	for _, r := range Roles {
		assert.True(t, r.Valid())
	}
	for _, s := range Statuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, Role("Owner").Valid())
	assert.False(t, Status("Done").Valid())
	assert.True(t, PriorityLow.Valid())
	assert.False(t, Priority("Urgent").Valid())
}
