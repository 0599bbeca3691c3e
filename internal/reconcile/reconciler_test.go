package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jjudge-oj/roster/internal/kv"
	"github.com/jjudge-oj/roster/internal/policy"
	"github.com/jjudge-oj/roster/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	adminCaps  = policy.For(types.RoleAdmin, true)
	editorCaps = policy.For(types.RoleEditor, true)
	viewerCaps = policy.For(types.RoleViewer, true)

	fixedNow = time.Date(2024, time.May, 20, 9, 30, 0, 0, time.UTC)
)

func ptr[T any](v T) *T { return &v }

type flakyBackend struct {
	*kv.MemoryBackend
	fail bool
}

func (f *flakyBackend) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []RecordChanged
	attrs  []map[string]string
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ev RecordChanged
	if err := json.Unmarshal(data, &ev); err != nil {
		return "", err
	}
	p.events = append(p.events, ev)
	p.attrs = append(p.attrs, attrs)
	return "msg", nil
}

func newTodos(t *testing.T, opts ...Option) (*Reconciler[types.TodoItem, types.TodoPatch], *kv.Store) {
	t.Helper()
	store := kv.New(kv.NewMemoryBackend(), "")
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	r := NewTodos(store, opts...)
	require.NoError(t, r.Load(context.Background(), nil))
	return r, store
}

func seedUsers() []types.User {
	return []types.User{
		{ID: 1, Name: "John Doe", Email: "john@example.com", Role: types.RoleAdmin, IsActive: true},
		{ID: 2, Name: "Jane Smith", Email: "jane@example.com", Role: types.RoleEditor, IsActive: true},
		{ID: 3, Name: "Bob Johnson", Email: "bob@example.com", Role: types.RoleViewer},
	}
}

func TestTodoLifecycleAcrossRoles(t *testing.T) {
	ctx := context.Background()
	r, store := newTodos(t)

	due := types.NewDate(2024, time.June, 1)
	created, err := r.Create(ctx, adminCaps, types.TodoPatch{Title: ptr("Write spec"), DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, "Write spec", created.Title)
	assert.Equal(t, due, created.DueDate)
	assert.Equal(t, types.PriorityMedium, created.Priority)
	assert.Equal(t, types.StatusYetToDo, created.Status)
	assert.Equal(t, "General", created.Category)
	assert.Equal(t, int(fixedNow.UnixMilli()), created.ID)

	var persisted []types.TodoItem
	found, err := store.Load(ctx, "todos", &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []types.TodoItem{created}, persisted)

	updated, err := r.Update(ctx, viewerCaps, created.ID, types.TodoPatch{Status: ptr(types.StatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, updated.Status)

	_, err = r.Update(ctx, viewerCaps, created.ID, types.TodoPatch{Title: ptr("Other")})
	assert.ErrorIs(t, err, policy.ErrForbidden)

	got, err := r.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write spec", got.Title)
	assert.Equal(t, types.StatusCompleted, got.Status)
}

func TestCreateRequiresCreateCapability(t *testing.T) {
	r, _ := newTodos(t)

	for name, caps := range map[string]policy.Capabilities{
		"editor":         editorCaps,
		"viewer":         viewerCaps,
		"inactive admin": policy.For(types.RoleAdmin, false),
		"anonymous":      policy.None,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Create(context.Background(), caps, types.TodoPatch{Title: ptr("x")})
			assert.ErrorIs(t, err, policy.ErrForbidden)
		})
	}
	assert.Empty(t, r.List())
}

func TestUpdateMissingRecord(t *testing.T) {
	r, _ := newTodos(t)

	_, err := r.Update(context.Background(), adminCaps, 42, types.TodoPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 42, nf.ID)
	assert.Equal(t, "todo", nf.Kind)
}

func TestUpdatePreservesOrder(t *testing.T) {
	ctx := context.Background()
	r := NewUsers(kv.New(kv.NewMemoryBackend(), ""))
	require.NoError(t, r.Load(ctx, seedUsers()))

	_, err := r.Update(ctx, editorCaps, 2, types.UserPatch{Name: ptr("Jane Doe")})
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "Jane Doe", list[1].Name)
	assert.Equal(t, "jane@example.com", list[1].Email)
}

func TestCreateUserDefaults(t *testing.T) {
	r := NewUsers(kv.New(kv.NewMemoryBackend(), ""), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, r.Load(context.Background(), nil))

	u, err := r.Create(context.Background(), adminCaps, types.UserPatch{Name: ptr("Ann"), Email: ptr("ann@example.com")})
	require.NoError(t, err)
	assert.Equal(t, types.RoleViewer, u.Role)
	assert.Equal(t, DefaultAvatar, u.Avatar)
	assert.Equal(t, "New", u.Department)
	assert.Equal(t, "Unknown", u.Location)
	assert.Equal(t, types.NewDate(2024, time.May, 20), u.JoinDate)
	assert.False(t, u.IsActive)
}

func TestUniqueIDsWithinOneMillisecond(t *testing.T) {
	r, _ := newTodos(t)

	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		item, err := r.Create(context.Background(), adminCaps, types.TodoPatch{Title: ptr("t")})
		require.NoError(t, err)
		require.False(t, seen[item.ID], "duplicate id %d", item.ID)
		seen[item.ID] = true
	}
	assert.Len(t, r.List(), 100)
}

func TestIDsNeverCollideWithLoadedRecords(t *testing.T) {
	ctx := context.Background()
	future := int(fixedNow.UnixMilli()) + 1000
	store := kv.New(kv.NewMemoryBackend(), "")
	require.NoError(t, store.Save(ctx, "todos", []types.TodoItem{{ID: future, Title: "later"}}))

	r := NewTodos(store, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, r.Load(ctx, nil))

	item, err := r.Create(ctx, adminCaps, types.TodoPatch{Title: ptr("t")})
	require.NoError(t, err)
	assert.Equal(t, future+1, item.ID)
}

func TestLoadSnapshotWinsOverSeed(t *testing.T) {
	ctx := context.Background()
	store := kv.New(kv.NewMemoryBackend(), "")
	require.NoError(t, store.Save(ctx, "users", []types.User{{ID: 9, Name: "Stored"}}))

	r := NewUsers(store)
	require.NoError(t, r.Load(ctx, seedUsers()))
	assert.Equal(t, []types.User{{ID: 9, Name: "Stored"}}, r.List())
}

func TestLoadCorruptSnapshotFallsBackToSeed(t *testing.T) {
	ctx := context.Background()
	for name, raw := range map[string]string{
		"not json":      `{"users":`,
		"wrong shape":   `{"id":1}`,
		"duplicate ids": `[{"id":1,"name":"a"},{"id":1,"name":"b"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			store := kv.New(kv.NewMemoryBackend(), "")
			require.NoError(t, store.Set(ctx, "users", []byte(raw)))

			r := NewUsers(store)
			require.NoError(t, r.Load(ctx, seedUsers()))
			assert.Equal(t, seedUsers(), r.List())
		})
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{MemoryBackend: kv.NewMemoryBackend()}
	r := NewUsers(kv.New(backend, ""))
	require.NoError(t, r.Load(ctx, seedUsers()))

	backend.fail = true

	_, err := r.Create(ctx, adminCaps, types.UserPatch{Name: ptr("Ann"), Email: ptr("a@b")})
	assert.ErrorContains(t, err, "disk full")

	_, err = r.Update(ctx, adminCaps, 1, types.UserPatch{Name: ptr("Changed")})
	assert.ErrorContains(t, err, "disk full")

	req, err := r.RequestDelete(adminCaps, 3)
	require.NoError(t, err)
	_, err = r.ConfirmDelete(ctx, adminCaps, req.Token)
	assert.ErrorContains(t, err, "disk full")

	assert.Equal(t, seedUsers(), r.List())
}

func TestTwoPhaseDelete(t *testing.T) {
	ctx := context.Background()
	r := NewUsers(kv.New(kv.NewMemoryBackend(), ""))
	require.NoError(t, r.Load(ctx, seedUsers()))

	req, err := r.RequestDelete(editorCaps, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, req.ID)
	assert.Equal(t, "Jane Smith", req.Record.Name)
	assert.NotEmpty(t, req.Token)
	assert.Len(t, r.List(), 3, "request alone must not delete")

	removed, err := r.ConfirmDelete(ctx, editorCaps, req.Token)
	require.NoError(t, err)
	assert.Equal(t, 2, removed.ID)
	assert.Len(t, r.List(), 2)

	_, err = r.ConfirmDelete(ctx, editorCaps, req.Token)
	assert.ErrorIs(t, err, ErrUnknownDeleteRequest)
}

func TestCancelDelete(t *testing.T) {
	ctx := context.Background()
	r := NewUsers(kv.New(kv.NewMemoryBackend(), ""))
	require.NoError(t, r.Load(ctx, seedUsers()))

	req, err := r.RequestDelete(adminCaps, 1)
	require.NoError(t, err)
	require.NoError(t, r.CancelDelete(req.Token))
	assert.ErrorIs(t, r.CancelDelete(req.Token), ErrUnknownDeleteRequest)

	_, err = r.ConfirmDelete(ctx, adminCaps, req.Token)
	assert.ErrorIs(t, err, ErrUnknownDeleteRequest)
	assert.Len(t, r.List(), 3)
}

func TestDeleteRequiresEditCapability(t *testing.T) {
	r := NewUsers(kv.New(kv.NewMemoryBackend(), ""))
	require.NoError(t, r.Load(context.Background(), seedUsers()))

	_, err := r.RequestDelete(viewerCaps, 1)
	assert.ErrorIs(t, err, policy.ErrForbidden)

	_, err = r.RequestDelete(adminCaps, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOverlayIsolation(t *testing.T) {
	ctx := context.Background()
	store := kv.New(kv.NewMemoryBackend(), "")
	r := NewUsers(store)
	require.NoError(t, r.Load(ctx, seedUsers()))

	remote := []types.User{{ID: 101, Name: "Leanne Graham"}, {ID: 102, Name: "Ervin Howell"}}
	r.SetOverlay(remote)
	assert.True(t, r.OverlayActive())
	assert.Equal(t, remote, r.List())
	assert.Equal(t, seedUsers(), r.Local())

	_, err := r.Create(ctx, adminCaps, types.UserPatch{Name: ptr("x"), Email: ptr("x")})
	assert.ErrorIs(t, err, ErrOverlayReadOnly)
	_, err = r.Update(ctx, adminCaps, 101, types.UserPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrOverlayReadOnly)

	req, err := r.RequestDelete(adminCaps, 101)
	require.NoError(t, err)
	_, err = r.ConfirmDelete(ctx, adminCaps, req.Token)
	assert.ErrorIs(t, err, ErrOverlayReadOnly)
	_, err = r.ConfirmDelete(ctx, adminCaps, req.Token)
	assert.ErrorIs(t, err, ErrUnknownDeleteRequest)

	found, err := store.Load(ctx, "users", new([]types.User))
	require.NoError(t, err)
	assert.False(t, found, "overlay mutations must not persist")

	r.ClearOverlay()
	assert.False(t, r.OverlayActive())
	assert.Equal(t, seedUsers(), r.List())
}

func TestOverlayDeleteRequestNeverRemovesLocalRecord(t *testing.T) {
	ctx := context.Background()
	r := NewUsers(kv.New(kv.NewMemoryBackend(), ""))
	require.NoError(t, r.Load(ctx, seedUsers()))

	// Remote ids overlap the local ones.
	r.SetOverlay([]types.User{{ID: 1, Name: "Leanne Graham"}})
	req, err := r.RequestDelete(adminCaps, 1)
	require.NoError(t, err)
	assert.Equal(t, "Leanne Graham", req.Record.Name)
	r.ClearOverlay()

	_, err = r.ConfirmDelete(ctx, adminCaps, req.Token)
	assert.ErrorIs(t, err, ErrUnknownDeleteRequest)
	assert.Equal(t, seedUsers(), r.List())
}

func TestOverlayChangeDropsPendingDeletes(t *testing.T) {
	ctx := context.Background()
	r := NewUsers(kv.New(kv.NewMemoryBackend(), ""))
	require.NoError(t, r.Load(ctx, seedUsers()))

	local, err := r.RequestDelete(adminCaps, 2)
	require.NoError(t, err)
	r.SetOverlay([]types.User{{ID: 2, Name: "Ervin Howell"}})
	assert.Zero(t, r.PendingDeletes())

	r.ClearOverlay()
	_, err = r.ConfirmDelete(ctx, adminCaps, local.Token)
	assert.ErrorIs(t, err, ErrUnknownDeleteRequest)
	assert.Len(t, r.List(), 3)
}

func TestDeleteRequestsExpire(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	r := NewUsers(kv.New(kv.NewMemoryBackend(), ""),
		WithClock(func() time.Time { return now }),
		WithDeleteTTL(time.Minute))
	require.NoError(t, r.Load(ctx, seedUsers()))

	stale, err := r.RequestDelete(adminCaps, 1)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(time.Minute), stale.ExpiresAt)

	now = now.Add(time.Minute)
	_, err = r.ConfirmDelete(ctx, adminCaps, stale.Token)
	assert.ErrorIs(t, err, ErrUnknownDeleteRequest)
	assert.Len(t, r.List(), 3)

	for range 10 {
		_, err := r.RequestDelete(adminCaps, 2)
		require.NoError(t, err)
	}
	now = now.Add(2 * time.Minute)
	fresh, err := r.RequestDelete(adminCaps, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, r.PendingDeletes(), "expired requests are swept")

	removed, err := r.ConfirmDelete(ctx, adminCaps, fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, 3, removed.ID)
}

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	r, store := newTodos(t)

	seed := []types.TodoItem{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}
	seeded, err := r.SeedIfEmpty(ctx, seed)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, seed, r.List())

	var persisted []types.TodoItem
	_, err = store.Load(ctx, "todos", &persisted)
	require.NoError(t, err)
	assert.Equal(t, seed, persisted)

	seeded, err = r.SeedIfEmpty(ctx, []types.TodoItem{{ID: 3}})
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Len(t, r.List(), 2)
}

func TestMutationsPublishEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	r, _ := newTodos(t, WithPublisher(pub, "records"))

	item, err := r.Create(ctx, adminCaps, types.TodoPatch{Title: ptr("t")})
	require.NoError(t, err)
	_, err = r.Update(ctx, viewerCaps, item.ID, types.TodoPatch{Status: ptr(types.StatusHalted)})
	require.NoError(t, err)
	req, err := r.RequestDelete(adminCaps, item.ID)
	require.NoError(t, err)
	_, err = r.ConfirmDelete(ctx, adminCaps, req.Token)
	require.NoError(t, err)

	_, err = r.Update(ctx, viewerCaps, item.ID, types.TodoPatch{Title: ptr("x")})
	require.Error(t, err)

	require.Len(t, pub.events, 3)
	for i, op := range []Op{OpCreate, OpUpdate, OpDelete} {
		assert.Equal(t, RecordChanged{Kind: "todo", Op: op, ID: item.ID, At: fixedNow}, pub.events[i])
		assert.Equal(t, map[string]string{"kind": "todo", "op": string(op)}, pub.attrs[i])
	}
}

func TestIDSequenceClockBackwards(t *testing.T) {
	now := fixedNow
	seq := NewIDSequence(func() time.Time { return now })

	first := seq.Next()
	now = now.Add(-time.Hour)
	second := seq.Next()
	assert.Greater(t, second, first)
}
