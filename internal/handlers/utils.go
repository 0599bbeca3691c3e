package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/roster/internal/form"
	"github.com/jjudge-oj/roster/internal/policy"
	"github.com/jjudge-oj/roster/internal/reconcile"
	"github.com/jjudge-oj/roster/types"
)

type contextKey string

const contextUserKey contextKey = "user"

func withUser(ctx context.Context, u types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, u)
}

func userFromContext(ctx context.Context) (types.User, error) {
	u, ok := ctx.Value(contextUserKey).(types.User)
	if !ok {
		return types.User{}, errors.New("missing user")
	}
	return u, nil
}

// capabilitiesFromContext returns the capabilities of the authenticated
// user, or none for an anonymous request.
func capabilitiesFromContext(ctx context.Context) policy.Capabilities {
	u, err := userFromContext(ctx)
	if err != nil {
		return policy.None
	}
	return policy.ForUser(&u)
}

// Healthz reports that the process is serving.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationResponse carries per-field messages for a rejected form.
type ValidationResponse struct {
	Errors form.Errors `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeMutationError maps reconciler and policy errors to status codes.
func writeMutationError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, policy.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, reconcile.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reconcile.ErrUnknownDeleteRequest):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reconcile.ErrOverlayReadOnly), errors.Is(err, form.ErrSubmitInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func parseID(r *http.Request) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// decodeFields reads a JSON object of raw form field values.
func decodeFields(r *http.Request) (map[string]any, error) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, errors.New("invalid request")
	}
	return fields, nil
}
