package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/roster/internal/inputs"
	"github.com/jjudge-oj/roster/internal/reconcile"
	"github.com/jjudge-oj/roster/types"
)

// OverlayController switches the user listing to the remote directory.
type OverlayController interface {
	Enable(ctx context.Context) error
	Refresh(ctx context.Context) error
	Disable()
	Active() bool
}

// UserForm edits users through inputs.UserForm.
var UserForm = RecordForm[types.User, types.UserPatch, inputs.UserForm]{
	New:   inputs.NewUserForm,
	Blank: inputs.NewUserDefaults,
	From:  inputs.UserFormFrom,
	Patch: inputs.UserForm.Patch,
}

// NewUserHandler serves the user directory. Listings accept the search and
// active query parameters.
func NewUserHandler(users *reconcile.Reconciler[types.User, types.UserPatch]) *RecordHandler[types.User, types.UserPatch, inputs.UserForm] {
	h := NewRecordHandler(users, UserForm)
	h.filter = filterUsers
	return h
}

// UserRouter registers the user routes, including the remote overlay
// toggle.
func UserRouter(
	r chi.Router,
	users *reconcile.Reconciler[types.User, types.UserPatch],
	overlay OverlayController,
	authMiddleware func(http.Handler) http.Handler,
) {
	RecordRouter(r, NewUserHandler(users), authMiddleware)

	r.Post("/overlay", enableOverlay(overlay))
	r.Delete("/overlay", disableOverlay(overlay))
}

func filterUsers(r *http.Request, users []types.User) ([]types.User, error) {
	q := r.URL.Query()
	activity, err := types.ParseActivityFilter(q.Get("active"))
	if err != nil {
		return nil, err
	}
	return types.FilterUsers(users, q.Get("search"), activity), nil
}

// enableOverlay shows the remote directory, refreshing it when it is
// already shown.
func enableOverlay(overlay OverlayController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if overlay.Active() {
			err = overlay.Refresh(r.Context())
		} else {
			err = overlay.Enable(r.Context())
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, OverlayResponse{Active: overlay.Active()})
	}
}

func disableOverlay(overlay OverlayController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overlay.Disable()
		writeJSON(w, http.StatusOK, OverlayResponse{Active: overlay.Active()})
	}
}

type OverlayResponse struct {
	Active bool `json:"active"`
}
