// Package app assembles the roster components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jjudge-oj/roster/config"
	"github.com/jjudge-oj/roster/internal/db"
	"github.com/jjudge-oj/roster/internal/kv"
	"github.com/jjudge-oj/roster/internal/mq"
	"github.com/jjudge-oj/roster/internal/reconcile"
	"github.com/jjudge-oj/roster/internal/remote"
	"github.com/jjudge-oj/roster/internal/seed"
	"github.com/jjudge-oj/roster/internal/session"
	"github.com/jjudge-oj/roster/internal/storage"
	"github.com/jjudge-oj/roster/types"
)

// App holds the wired components.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Store    *kv.Store
	Users    *reconcile.Reconciler[types.User, types.UserPatch]
	Todos    *reconcile.Reconciler[types.TodoItem, types.TodoPatch]
	Session  *session.Session
	Verifier *session.Verifier
	Remote   *remote.Client
	Overlay  *remote.Overlay
	Seeder   *remote.TodoSeeder
	// Events is nil when change notifications are disabled.
	Events *mq.MQ
}

// New opens the configured store and event backends and hydrates every
// collection.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	events, err := mq.Open(ctx, cfg)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("open events: %w", err)
	}

	a, err := Assemble(ctx, cfg, backend, events, logger)
	if err != nil {
		if events != nil {
			_ = events.Close()
		}
		_ = backend.Close()
		return nil, err
	}
	return a, nil
}

// Assemble wires the components around an already opened backend. events
// may be nil.
func Assemble(ctx context.Context, cfg config.Config, backend kv.Backend, events *mq.MQ, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store := kv.New(backend, cfg.Store.Namespace)
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	defaults, err := seed.Load()
	if err != nil {
		return nil, err
	}

	opts := []reconcile.Option{reconcile.WithLogger(logger)}
	if events != nil {
		opts = append(opts, reconcile.WithPublisher(events, cfg.Events.Channel))
	}

	users := reconcile.NewUsers(store, opts...)
	if err := users.Load(ctx, defaults.Users); err != nil {
		return nil, err
	}
	todos := reconcile.NewTodos(store, opts...)
	if err := todos.Load(ctx, defaults.Todos); err != nil {
		return nil, err
	}

	verifier := session.NewVerifier(cfg.Auth.DemoPasswordHash)
	sess := session.New(store, users, verifier, logger)
	if err := sess.Init(ctx); err != nil {
		return nil, err
	}

	client := remote.NewClient(cfg.Remote, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Users:    users,
		Todos:    todos,
		Session:  sess,
		Verifier: verifier,
		Remote:   client,
		Overlay:  remote.NewOverlay(users, client.Users),
		Seeder:   remote.NewTodoSeeder(todos, client.Todos),
		Events:   events,
	}, nil
}

// OpenBackend constructs the kv backend selected by cfg.Store.Backend.
func OpenBackend(ctx context.Context, cfg config.Config) (kv.Backend, error) {
	switch name := strings.ToLower(strings.TrimSpace(cfg.Store.Backend)); name {
	case "memory":
		return kv.NewMemoryBackend(), nil
	case "", "file":
		if strings.TrimSpace(cfg.Store.DataDir) == "" {
			return nil, errors.New("file store requires DATA_DIR")
		}
		return kv.NewFileBackend(cfg.Store.DataDir), nil
	case "postgres":
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return kv.NewPostgresBackend(conn), nil
	case "minio", "gcs":
		objects, err := storage.Open(ctx, name, cfg)
		if err != nil {
			return nil, err
		}
		return kv.NewObjectBackend(objects, cfg.Store.ObjectPrefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Close releases the store and event backends.
func (a *App) Close() error {
	var errs []error
	if a.Events != nil {
		errs = append(errs, a.Events.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
