package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/roster/internal/form"
	"github.com/jjudge-oj/roster/internal/reconcile"
)

// RecordForm describes how a record type R is edited through a form of F
// values and turned into a patch P.
type RecordForm[R, P, F any] struct {
	// New builds a form seeded with the given values.
	New func(initial F) (*form.Form[F], error)
	// Blank is the seed of a create form.
	Blank func() F
	// From seeds an edit form from a record.
	From func(R) F
	// Patch converts form values into a patch; a nil touched set means all
	// fields.
	Patch func(values F, touched map[string]bool) P
	// Hints replaces the generic message for request fields the form does
	// not have.
	Hints map[string]string
}

const msgUnknownField = "Unknown field"

// unknownFields reports the request fields f does not declare.
func (rf RecordForm[R, P, F]) unknownFields(f *form.Form[F], fields map[string]any) form.Errors {
	known := f.Raw()
	errs := form.Errors{}
	for name := range fields {
		if _, ok := known[name]; ok {
			continue
		}
		if hint, ok := rf.Hints[name]; ok {
			errs[name] = hint
		} else {
			errs[name] = msgUnknownField
		}
	}
	return errs
}

// RecordHandler serves CRUD endpoints for one reconciled collection.
type RecordHandler[R, P, F any] struct {
	records *reconcile.Reconciler[R, P]
	form    RecordForm[R, P, F]
	filter  func(r *http.Request, items []R) ([]R, error)
}

// NewRecordHandler constructs a RecordHandler.
func NewRecordHandler[R, P, F any](records *reconcile.Reconciler[R, P], f RecordForm[R, P, F]) *RecordHandler[R, P, F] {
	return &RecordHandler[R, P, F]{records: records, form: f}
}

// ListResponse is the payload of a collection listing.
type ListResponse[R any] struct {
	Items   []R  `json:"items"`
	Overlay bool `json:"overlay"`
}

// RecordRouter registers the shared record routes. Every route requires
// authentication.
func RecordRouter[R, P, F any](r chi.Router, handler *RecordHandler[R, P, F], authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)

	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Patch("/{id}", handler.Update)
	r.Post("/{id}/delete", handler.RequestDelete)
	r.Post("/deletions/{token}", handler.ConfirmDelete)
	r.Delete("/deletions/{token}", handler.CancelDelete)
}

func (h *RecordHandler[R, P, F]) List(w http.ResponseWriter, r *http.Request) {
	items := h.records.List()
	if h.filter != nil {
		var err error
		if items, err = h.filter(r, items); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, ListResponse[R]{Items: items, Overlay: h.records.OverlayActive()})
}

func (h *RecordHandler[R, P, F]) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := h.form.New(h.form.Blank())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build form")
		return
	}
	if errs := h.form.unknownFields(f, fields); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Errors: errs})
		return
	}
	for name, value := range fields {
		f.OnFieldChange(name, value)
	}

	caps := capabilitiesFromContext(r.Context())
	var created R
	submitted, err := f.Submit(r.Context(), func(ctx context.Context, v F) error {
		var err error
		created, err = h.records.Create(ctx, caps, h.form.Patch(v, nil))
		return err
	})
	if err != nil {
		writeMutationError(w, err, "failed to create "+h.records.Kind())
		return
	}
	if !submitted {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Errors: f.Errors()})
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update seeds an edit form from the record, applies the request fields and
// patches only the fields that were sent.
func (h *RecordHandler[R, P, F]) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	current, err := h.records.Get(id)
	if err != nil {
		writeMutationError(w, err, "failed to load "+h.records.Kind())
		return
	}

	f, err := h.form.New(h.form.From(current))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build form")
		return
	}
	if errs := h.form.unknownFields(f, fields); len(errs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Errors: errs})
		return
	}
	for name, value := range fields {
		f.OnFieldChange(name, value)
	}

	caps := capabilitiesFromContext(r.Context())
	var updated R
	submitted, err := f.Submit(r.Context(), func(ctx context.Context, v F) error {
		var err error
		updated, err = h.records.Update(ctx, caps, id, h.form.Patch(v, f.TouchedFields()))
		return err
	})
	if err != nil {
		writeMutationError(w, err, "failed to update "+h.records.Kind())
		return
	}
	if !submitted {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Errors: f.Errors()})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *RecordHandler[R, P, F]) RequestDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := h.records.RequestDelete(capabilitiesFromContext(r.Context()), id)
	if err != nil {
		writeMutationError(w, err, "failed to request delete")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *RecordHandler[R, P, F]) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))

	removed, err := h.records.ConfirmDelete(r.Context(), capabilitiesFromContext(r.Context()), token)
	if err != nil {
		writeMutationError(w, err, "failed to delete "+h.records.Kind())
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (h *RecordHandler[R, P, F]) CancelDelete(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))

	if err := h.records.CancelDelete(token); err != nil {
		writeMutationError(w, err, "failed to cancel delete")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
