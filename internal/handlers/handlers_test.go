package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/roster/internal/form"
	"github.com/jjudge-oj/roster/internal/kv"
	"github.com/jjudge-oj/roster/internal/reconcile"
	"github.com/jjudge-oj/roster/internal/session"
	"github.com/jjudge-oj/roster/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var seedUsers = []types.User{
	{ID: 1, Name: "John Doe", Email: "john@example.com", Role: types.RoleAdmin, IsActive: true},
	{ID: 2, Name: "Jane Smith", Email: "jane@example.com", Role: types.RoleEditor, IsActive: true},
	{ID: 3, Name: "Bob Johnson", Email: "bob@example.com", Role: types.RoleViewer},
	{ID: 4, Name: "Vic Viewer", Email: "vic@example.com", Role: types.RoleViewer, IsActive: true},
}

type fakeOverlay struct {
	users  *reconcile.Reconciler[types.User, types.UserPatch]
	err    error
	calls  []string
	remote []types.User
}

func (f *fakeOverlay) Enable(context.Context) error {
	f.calls = append(f.calls, "enable")
	if f.err != nil {
		return f.err
	}
	f.users.SetOverlay(f.remote)
	return nil
}

func (f *fakeOverlay) Refresh(context.Context) error {
	f.calls = append(f.calls, "refresh")
	return f.err
}

func (f *fakeOverlay) Disable()     { f.users.ClearOverlay() }
func (f *fakeOverlay) Active() bool { return f.users.OverlayActive() }

type fixture struct {
	router  http.Handler
	users   *reconcile.Reconciler[types.User, types.UserPatch]
	todos   *reconcile.Reconciler[types.TodoItem, types.TodoPatch]
	overlay *fakeOverlay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := kv.New(kv.NewMemoryBackend(), "")

	users := reconcile.NewUsers(store)
	require.NoError(t, users.Load(ctx, seedUsers))
	todos := reconcile.NewTodos(store)
	require.NoError(t, todos.Load(ctx, nil))

	overlay := &fakeOverlay{users: users, remote: []types.User{{ID: 101, Name: "Leanne Graham"}}}
	auth := NewAuthHandler(users, session.NewVerifier(""), testSecret, time.Hour)

	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Route("/auth", func(r chi.Router) { AuthRouter(r, auth) })
	r.Route("/users", func(r chi.Router) { UserRouter(r, users, overlay, auth.RequireAuth) })
	r.Route("/todos", func(r chi.Router) { TodoRouter(r, todos, auth.RequireAuth) })

	return &fixture{router: r, users: users, todos: todos, overlay: overlay}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": session.DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "john@example.com", "password": session.DemoPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[AuthResponse](t, rec)
	assert.Equal(t, 1, resp.User.ID)
	assert.True(t, resp.Capabilities.CanCreate)

	rec = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "bob@example.com", "password": session.DemoPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "john@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Required", decode[ValidationResponse](t, rec).Errors["email"])
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "jane@example.com")

	rec := f.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MeResponse](t, rec)
	assert.Equal(t, "Jane Smith", resp.User.Name)
	assert.False(t, resp.Capabilities.CanCreate)
	assert.True(t, resp.Capabilities.CanEditOthers)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/auth/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/auth/me", "garbage", nil).Code)
}

func TestTokenForDeletedUserIsRejected(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "john@example.com")
	editor := f.login(t, "jane@example.com")

	rec := f.do(t, http.MethodPost, "/users/2/delete", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	req := decode[reconcile.DeleteRequest[types.User]](t, rec)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/users/deletions/"+req.Token, admin, nil).Code)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/users/", editor, nil).Code)
}

func TestTodoLifecycle(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "john@example.com")
	viewer := f.login(t, "vic@example.com")

	rec := f.do(t, http.MethodPost, "/todos/", admin, map[string]any{"title": "Write spec", "dueDate": "2024-06-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[types.TodoItem](t, rec)
	assert.Equal(t, types.PriorityMedium, created.Priority)
	assert.Equal(t, types.StatusYetToDo, created.Status)
	assert.Equal(t, "2024-06-01", created.DueDate.String())

	path := "/todos/" + strconv.Itoa(created.ID)

	rec = f.do(t, http.MethodPut, path+"/status", viewer, StatusRequest{Status: types.StatusCompleted})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, types.StatusCompleted, decode[types.TodoItem](t, rec).Status)

	rec = f.do(t, http.MethodPatch, path, viewer, map[string]any{"title": "Other"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPatch, path, admin, map[string]any{"priority": "High"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[types.TodoItem](t, rec)
	assert.Equal(t, types.PriorityHigh, updated.Priority)
	assert.Equal(t, "Write spec", updated.Title)
	assert.Equal(t, types.StatusCompleted, updated.Status)

	rec = f.do(t, http.MethodGet, "/todos/", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse[types.TodoItem]](t, rec)
	assert.Equal(t, []types.TodoItem{updated}, list.Items)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "john@example.com")

	rec := f.do(t, http.MethodPost, "/todos/", admin, map[string]any{"description": "no title"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decode[ValidationResponse](t, rec).Errors
	assert.Equal(t, "Title is required", errs["title"])
	assert.Equal(t, "Due date is required", errs["dueDate"])
	assert.Empty(t, f.todos.List())

	rec = f.do(t, http.MethodPost, "/users/", admin, map[string]any{"name": "", "email": ""})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs = decode[ValidationResponse](t, rec).Errors
	assert.Equal(t, "Required", errs["name"])
	assert.Equal(t, "Required", errs["email"])
}

func TestRecordBodiesRejectUndeclaredFields(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "john@example.com")
	editor := f.login(t, "jane@example.com")

	rec := f.do(t, http.MethodPost, "/todos/", admin, map[string]any{"title": "Ship", "dueDate": "2024-06-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[types.TodoItem](t, rec)
	path := "/todos/" + strconv.Itoa(created.ID)

	rec = f.do(t, http.MethodPatch, path, editor, map[string]any{"status": "Completed"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[ValidationResponse](t, rec).Errors["status"], "PUT /todos/{id}/status")
	got, err := f.todos.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusYetToDo, got.Status)

	rec = f.do(t, http.MethodPatch, "/users/3", editor, map[string]any{"name": "Bobby", "nickname": "bob"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, form.Errors{"nickname": "Unknown field"}, decode[ValidationResponse](t, rec).Errors)
	user, err := f.users.Get(3)
	require.NoError(t, err)
	assert.Equal(t, "Bob Johnson", user.Name)

	rec = f.do(t, http.MethodPost, "/todos/", admin, map[string]any{"title": "x", "dueDate": "2024-06-01", "status": "Halted"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Len(t, f.todos.List(), 1)
}

func TestCreateForbidden(t *testing.T) {
	f := newFixture(t)
	editor := f.login(t, "jane@example.com")

	rec := f.do(t, http.MethodPost, "/users/", editor, map[string]any{"name": "Ann", "email": "ann@example.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, f.users.List(), len(seedUsers))
}

func TestUserUpdateAndFilter(t *testing.T) {
	f := newFixture(t)
	editor := f.login(t, "jane@example.com")

	rec := f.do(t, http.MethodPatch, "/users/3", editor, map[string]any{"isActive": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bob := decode[types.User](t, rec)
	assert.True(t, bob.IsActive)
	assert.Equal(t, "Bob Johnson", bob.Name)

	rec = f.do(t, http.MethodGet, "/users/?search=JOHN", editor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	names := []string{}
	for _, u := range decode[ListResponse[types.User]](t, rec).Items {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"John Doe", "Bob Johnson"}, names)

	rec = f.do(t, http.MethodGet, "/users/?active=maybe", editor, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/users/99", editor, map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteFlow(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "john@example.com")
	viewer := f.login(t, "vic@example.com")

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/users/3/delete", viewer, nil).Code)

	rec := f.do(t, http.MethodPost, "/users/3/delete", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	req := decode[reconcile.DeleteRequest[types.User]](t, rec)
	assert.Equal(t, 3, req.ID)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/users/deletions/"+req.Token, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/users/deletions/"+req.Token, admin, nil).Code)
	assert.Len(t, f.users.List(), len(seedUsers))

	rec = f.do(t, http.MethodPost, "/users/3/delete", admin, nil)
	req = decode[reconcile.DeleteRequest[types.User]](t, rec)
	rec = f.do(t, http.MethodPost, "/users/deletions/"+req.Token, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bob Johnson", decode[types.User](t, rec).Name)
	assert.Len(t, f.users.List(), len(seedUsers)-1)
}

func TestOverlayEndpoints(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "john@example.com")

	rec := f.do(t, http.MethodPost, "/users/overlay", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[OverlayResponse](t, rec).Active)

	rec = f.do(t, http.MethodGet, "/users/", admin, nil)
	list := decode[ListResponse[types.User]](t, rec)
	assert.True(t, list.Overlay)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Leanne Graham", list.Items[0].Name)

	rec = f.do(t, http.MethodPost, "/users/", admin, map[string]any{"name": "Ann", "email": "ann@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/users/overlay", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"enable", "refresh"}, f.overlay.calls)

	rec = f.do(t, http.MethodDelete, "/users/overlay", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[OverlayResponse](t, rec).Active)
	assert.Len(t, f.users.List(), len(seedUsers))
}

func TestOverlayEnableFailure(t *testing.T) {
	f := newFixture(t)
	f.overlay.err = errors.New("Error 503: Service Unavailable")
	admin := f.login(t, "john@example.com")

	rec := f.do(t, http.MethodPost, "/users/overlay", admin, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, f.users.OverlayActive())
}
