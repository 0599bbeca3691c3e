package types

import (
	"fmt"
	"strings"
)

// ActivityFilter narrows a user listing by the IsActive flag.
type ActivityFilter string

const (
	ActivityAll      ActivityFilter = "all"
	ActivityActive   ActivityFilter = "active"
	ActivityInactive ActivityFilter = "inactive"
)

// ParseActivityFilter accepts "", "all", "active" or "inactive".
func ParseActivityFilter(raw string) (ActivityFilter, error) {
	switch f := ActivityFilter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return ActivityAll, nil
	case ActivityAll, ActivityActive, ActivityInactive:
		return f, nil
	default:
		return "", fmt.Errorf("unknown activity filter %q", raw)
	}
}

// MatchUser reports whether u matches a case-insensitive search on name or
// email and the activity filter.
func MatchUser(u User, search string, activity ActivityFilter) bool {
	term := strings.ToLower(search)
	if term != "" &&
		!strings.Contains(strings.ToLower(u.Name), term) &&
		!strings.Contains(strings.ToLower(u.Email), term) {
		return false
	}
	switch activity {
	case ActivityActive:
		return u.IsActive
	case ActivityInactive:
		return !u.IsActive
	}
	return true
}

// FilterUsers returns the users matching search and activity, preserving order.
func FilterUsers(users []User, search string, activity ActivityFilter) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		if MatchUser(u, search, activity) {
			out = append(out, u)
		}
	}
	return out
}
