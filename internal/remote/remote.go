// Package remote maps the read-only demo endpoints onto roster records and
// drives the user overlay and the first-run todo seeding.
package remote

import (
	"log/slog"
	"net/http"

	"github.com/jjudge-oj/roster/config"
	"github.com/jjudge-oj/roster/internal/fetch"
	"github.com/jjudge-oj/roster/internal/metrics"
	"github.com/jjudge-oj/roster/internal/reconcile"
	"github.com/jjudge-oj/roster/types"
)

// SeedLimit caps how many remote todos seed an empty list.
const SeedLimit = 10

type Address struct {
	Street  string `json:"street"`
	Suite   string `json:"suite"`
	City    string `json:"city"`
	Zipcode string `json:"zipcode"`
}

type Company struct {
	Name        string `json:"name"`
	CatchPhrase string `json:"catchPhrase"`
}

// User is the remote user shape.
type User struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Phone    string  `json:"phone"`
	Website  string  `json:"website"`
	Address  Address `json:"address"`
	Company  Company `json:"company"`
}

// Todo is the remote todo shape.
type Todo struct {
	ID        int    `json:"id"`
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// MapUser converts a remote user into a read-only roster user.
func MapUser(u User, today types.Date) types.User {
	return types.User{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Avatar:     reconcile.DefaultAvatar,
		Role:       types.RoleViewer,
		Department: u.Company.Name,
		Location:   u.Address.City,
		JoinDate:   today,
	}
}

// MapTodo converts a remote todo into a roster todo item.
func MapTodo(t Todo, today types.Date) types.TodoItem {
	status := types.StatusYetToDo
	if t.Completed {
		status = types.StatusCompleted
	}
	return types.TodoItem{
		ID:       t.ID,
		Title:    t.Title,
		DueDate:  today,
		Category: "General",
		Priority: types.PriorityMedium,
		Status:   status,
	}
}

func MapUsers(users []User, today types.Date) []types.User {
	out := make([]types.User, len(users))
	for i, u := range users {
		out[i] = MapUser(u, today)
	}
	return out
}

func MapTodos(todos []Todo, today types.Date) []types.TodoItem {
	out := make([]types.TodoItem, len(todos))
	for i, t := range todos {
		out[i] = MapTodo(t, today)
	}
	return out
}

// Client holds one fetcher per remote endpoint.
type Client struct {
	Users *fetch.Fetcher[[]User]
	Todos *fetch.Fetcher[[]Todo]
}

// NewClient builds fetchers for the configured endpoints. Every call outcome
// is counted in metrics.
func NewClient(cfg config.RemoteConfig, logger *slog.Logger) *Client {
	return NewClientWith(&http.Client{Timeout: cfg.Timeout}, cfg, logger)
}

// NewClientWith is NewClient with a caller-supplied HTTP client.
func NewClientWith(doer fetch.Doer, cfg config.RemoteConfig, logger *slog.Logger) *Client {
	opts := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithObserver(func(url string, outcome fetch.Outcome) {
			metrics.Fetch(url, string(outcome))
		}),
	}
	return &Client{
		Users: fetch.New[[]User](doer, cfg.UsersURL, fetch.Options{}, opts...),
		Todos: fetch.New[[]Todo](doer, cfg.TodosURL, fetch.Options{}, opts...),
	}
}
