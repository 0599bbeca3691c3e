package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/jjudge-oj/roster/internal/fetch"
	"github.com/jjudge-oj/roster/types"
)

// TodoList is the part of the todo reconciler the seeder needs.
type TodoList interface {
	Local() []types.TodoItem
	SeedIfEmpty(ctx context.Context, records []types.TodoItem) (bool, error)
}

// TodoSeeder fills an empty todo list with the first remote todos.
type TodoSeeder struct {
	todos   TodoList
	fetcher *fetch.Fetcher[[]Todo]
	now     func() time.Time
}

func NewTodoSeeder(todos TodoList, fetcher *fetch.Fetcher[[]Todo]) *TodoSeeder {
	return &TodoSeeder{todos: todos, fetcher: fetcher, now: time.Now}
}

// Seed returns how many todos were added. Nothing is fetched when the local
// list already has items.
func (s *TodoSeeder) Seed(ctx context.Context) (int, error) {
	if len(s.todos.Local()) > 0 {
		return 0, nil
	}

	remote, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch remote todos: %w", err)
	}
	if len(remote) == 0 {
		return 0, nil
	}
	if len(remote) > SeedLimit {
		remote = remote[:SeedLimit]
	}

	items := MapTodos(remote, types.DateOf(s.now().UTC()))
	seeded, err := s.todos.SeedIfEmpty(ctx, items)
	if err != nil || !seeded {
		return 0, err
	}
	return len(items), nil
}
