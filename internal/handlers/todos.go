package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/roster/internal/inputs"
	"github.com/jjudge-oj/roster/internal/reconcile"
	"github.com/jjudge-oj/roster/types"
)

// TodoForm edits todos through inputs.TodoForm.
var TodoForm = RecordForm[types.TodoItem, types.TodoPatch, inputs.TodoForm]{
	New:   inputs.NewTodoForm,
	Blank: inputs.NewTodoDefaults,
	From:  inputs.TodoFormFrom,
	Patch: inputs.TodoForm.Patch,
	Hints: map[string]string{"status": "Status is changed with PUT /todos/{id}/status"},
}

// TodoRouter registers the todo routes, including the status change that
// every logged-in user may perform.
func TodoRouter(
	r chi.Router,
	todos *reconcile.Reconciler[types.TodoItem, types.TodoPatch],
	authMiddleware func(http.Handler) http.Handler,
) {
	RecordRouter(r, NewRecordHandler(todos, TodoForm), authMiddleware)

	r.Put("/{id}/status", updateStatus(todos))
}

type StatusRequest struct {
	Status types.Status `json:"status"`
}

func updateStatus(todos *reconcile.Reconciler[types.TodoItem, types.TodoPatch]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var req StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		if !req.Status.Valid() {
			writeError(w, http.StatusUnprocessableEntity, "unknown status")
			return
		}

		updated, err := todos.Update(r.Context(), capabilitiesFromContext(r.Context()), id, types.TodoPatch{Status: &req.Status})
		if err != nil {
			writeMutationError(w, err, "failed to update todo")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}
