package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/jjudge-oj/roster/internal/fetch"
	"github.com/jjudge-oj/roster/types"
)

// UserView is the part of the user reconciler the overlay drives.
type UserView interface {
	SetOverlay(records []types.User)
	ClearOverlay()
	OverlayActive() bool
}

// Overlay switches the user directory between local records and the remote
// list.
type Overlay struct {
	users   UserView
	fetcher *fetch.Fetcher[[]User]
	now     func() time.Time
}

func NewOverlay(users UserView, fetcher *fetch.Fetcher[[]User]) *Overlay {
	return &Overlay{users: users, fetcher: fetcher, now: time.Now}
}

// Enable fetches the remote users and shows them. On failure the current
// mode is kept and the error is returned.
func (o *Overlay) Enable(ctx context.Context) error {
	users, err := o.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch remote users: %w", err)
	}
	o.users.SetOverlay(MapUsers(users, types.DateOf(o.now().UTC())))
	return nil
}

// Refresh repeats the remote request and replaces the overlay snapshot.
func (o *Overlay) Refresh(ctx context.Context) error {
	users, err := o.fetcher.Refetch(ctx)
	if err != nil {
		return fmt.Errorf("refetch remote users: %w", err)
	}
	o.users.SetOverlay(MapUsers(users, types.DateOf(o.now().UTC())))
	return nil
}

// Disable returns to the local directory.
func (o *Overlay) Disable() {
	o.users.ClearOverlay()
}

func (o *Overlay) Active() bool {
	return o.users.OverlayActive()
}

// State exposes the remote request lifecycle.
func (o *Overlay) State() fetch.State[[]User] {
	return o.fetcher.State()
}
