package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/taskclock/internal/storage"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

var epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// seqIDs hands out task-1, task-2, ... so tests can name tasks.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("task-%d", g.n)
}

// recordingEvents implements EventLogger for testing.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) LogEvent(eventType string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type storeFixture struct {
	kv     *storage.MemoryStore
	clock  *FakeClock
	events *recordingEvents
	store  TaskStore
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	f := &storeFixture{
		kv:     storage.NewMemoryStore(),
		clock:  NewFakeClock(epoch),
		events: &recordingEvents{},
	}
	f.store = f.open()
	t.Cleanup(func() { _ = f.store.Close() })
	if err := f.store.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f
}

// open builds another store over the same persistence and clock.
func (f *storeFixture) open() TaskStore {
	return NewTaskStore(TaskStoreConfig{
		Store:         f.kv,
		Clock:         f.clock,
		IDs:           &seqIDs{},
		Events:        f.events,
		SweepInterval: -1,
	})
}

func (f *storeFixture) create(t *testing.T, title string, priority models.Priority, in time.Duration) models.Task {
	t.Helper()
	task, err := f.store.Create(context.Background(), TaskInput{
		Title:      title,
		Priority:   priority,
		ExpiryTime: f.clock.Now().Add(in),
	})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return task
}

func titles(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestCreate_IsPendingRegardlessOfExpiry(t *testing.T) {
	f := newStoreFixture(t)

	for _, in := range []time.Duration{time.Hour, 0, -time.Hour} {
		task := f.create(t, "task", models.PriorityLow, in)
		if task.Status != models.StatusPending {
			t.Errorf("expiry %s: status = %q, want pending", in, task.Status)
		}
		if task.CompletedAt != nil || task.ExpiredAt != nil {
			t.Errorf("expiry %s: terminal timestamps set on create", in)
		}
	}
}

func TestCreate_FillsFields(t *testing.T) {
	f := newStoreFixture(t)

	task, err := f.store.Create(context.Background(), TaskInput{
		Title:       "  Write report ",
		Description: " quarterly ",
		ExpiryTime:  epoch.Add(time.Hour).In(time.FixedZone("AEST", 10*3600)),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if task.ID != "task-1" || task.UserID != "user-1" {
		t.Errorf("ID/UserID = %q/%q", task.ID, task.UserID)
	}
	if task.Title != "Write report" || task.Description != "quarterly" {
		t.Errorf("Title/Description not trimmed: %q/%q", task.Title, task.Description)
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("Priority = %q, want medium default", task.Priority)
	}
	if task.ExpiryTime.Location() != time.UTC || !task.ExpiryTime.Equal(epoch.Add(time.Hour)) {
		t.Errorf("ExpiryTime = %v, want UTC %v", task.ExpiryTime, epoch.Add(time.Hour))
	}
	if !task.CreatedAt.Equal(epoch) || !task.UpdatedAt.Equal(epoch) {
		t.Errorf("CreatedAt/UpdatedAt = %v/%v, want %v", task.CreatedAt, task.UpdatedAt, epoch)
	}
	if f.events.count("task.created") != 1 {
		t.Error("expected one task.created event")
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newStoreFixture(t)
	writes := f.kv.Writes()

	tests := []struct {
		name string
		in   TaskInput
	}{
		{"empty title", TaskInput{Title: "  ", ExpiryTime: epoch}},
		{"bad priority", TaskInput{Title: "x", Priority: "urgent", ExpiryTime: epoch}},
		{"zero expiry", TaskInput{Title: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.store.Create(context.Background(), tt.in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}

	if len(f.store.Tasks()) != 0 || f.kv.Writes() != writes {
		t.Error("rejected input must not change state or write")
	}
}

func TestMutations_RequireSession(t *testing.T) {
	store := NewTaskStore(TaskStoreConfig{Store: storage.NewMemoryStore(), SweepInterval: -1})
	defer store.Close()

	_, err := store.Create(context.Background(), TaskInput{Title: "x", ExpiryTime: epoch})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("Create err = %v, want ErrNoSession", err)
	}
	if err := store.ClearAll(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("ClearAll err = %v, want ErrNoSession", err)
	}
}

func TestSweep_ExpiresOnlyOverdueTasks(t *testing.T) {
	f := newStoreFixture(t)
	soon := f.create(t, "soon", models.PriorityLow, time.Minute)
	later := f.create(t, "later", models.PriorityLow, time.Hour)
	done := f.create(t, "done", models.PriorityLow, time.Minute)
	if _, err := f.store.Complete(context.Background(), done.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	f.clock.Advance(time.Minute)
	n, err := f.store.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("Sweep expired %d, want 1", n)
	}

	got, _ := f.store.GetByID(soon.ID)
	if got.Status != models.StatusExpired || got.ExpiredAt == nil || !got.ExpiredAt.Equal(f.clock.Now()) {
		t.Errorf("soon = %+v, want expired at %v", got, f.clock.Now())
	}
	if got, _ := f.store.GetByID(later.ID); got.Status != models.StatusPending {
		t.Errorf("later status = %q, want pending", got.Status)
	}
	if got, _ := f.store.GetByID(done.ID); got.Status != models.StatusCompleted || got.ExpiredAt != nil {
		t.Errorf("completed task touched by sweep: %+v", got)
	}
	if f.events.count("task.expired") != 1 {
		t.Errorf("task.expired events = %d, want 1", f.events.count("task.expired"))
	}
}

func TestSweep_NoChangeNoWrite(t *testing.T) {
	f := newStoreFixture(t)
	f.create(t, "later", models.PriorityLow, time.Hour)
	writes := f.kv.Writes()

	n, err := f.store.Sweep(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if f.kv.Writes() != writes {
		t.Error("sweep without transitions must not write")
	}
}

func TestLoad_SweepsAndPersists(t *testing.T) {
	f := newStoreFixture(t)
	task := f.create(t, "stale", models.PriorityHigh, time.Minute)
	f.clock.Advance(time.Hour)

	other := f.open()
	defer other.Close()
	if err := other.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := other.GetByID(task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.StatusExpired {
		t.Fatalf("status after load = %q, want expired", got.Status)
	}

	data, _, _ := f.kv.Get(context.Background(), storage.TasksKey("user-1"))
	persisted, err := storage.DecodeTasks(data)
	if err != nil {
		t.Fatalf("DecodeTasks: %v", err)
	}
	if persisted[0].Status != models.StatusExpired {
		t.Error("load sweep result was not written back")
	}
}

func TestLoad_WriteBackFailureKeepsSweptCollection(t *testing.T) {
	f := newStoreFixture(t)
	f.create(t, "stale", models.PriorityHigh, time.Minute)
	f.clock.Advance(time.Hour)
	f.kv.SetFailWrites(errors.New("disk full"))

	other := f.open()
	defer other.Close()
	err := other.Load(context.Background(), "user-1")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Load err = %v, want ErrPersistence", err)
	}
	if other.State() != LoadStateError || other.LastError() == nil {
		t.Errorf("State = %q, LastError = %v", other.State(), other.LastError())
	}
	tasks := other.Tasks()
	if len(tasks) != 1 || tasks[0].Status != models.StatusExpired {
		t.Errorf("tasks = %+v, want one expired task", tasks)
	}
}

func TestLoad_FailureBlocksWrites(t *testing.T) {
	const stored = "version: 2\ntasks:\n  - id: keep-me\n"

	tests := []struct {
		name  string
		setup func(kv *storage.MemoryStore)
	}{
		{name: "unsupported version", setup: func(*storage.MemoryStore) {}},
		{name: "read failure", setup: func(kv *storage.MemoryStore) { kv.SetFailReads(errors.New("connection reset")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := storage.NewMemoryStore()
			key := storage.TasksKey("u")
			if err := kv.Set(ctx, key, []byte(stored)); err != nil {
				t.Fatalf("seed: %v", err)
			}
			tt.setup(kv)

			store := NewTaskStore(TaskStoreConfig{Store: kv, Clock: NewFakeClock(epoch), SweepInterval: -1})
			defer store.Close()

			if err := store.Load(ctx, "u"); !errors.Is(err, ErrPersistence) {
				t.Fatalf("Load err = %v, want ErrPersistence", err)
			}
			if store.State() != LoadStateError || store.LastError() == nil {
				t.Fatalf("State = %q, LastError = %v", store.State(), store.LastError())
			}
			kv.SetFailReads(nil)

			_, err := store.Create(ctx, TaskInput{Title: "new", ExpiryTime: epoch.Add(time.Hour)})
			if !errors.Is(err, ErrPersistence) {
				t.Errorf("Create err = %v, want ErrPersistence", err)
			}
			if err := store.Delete(ctx, "keep-me"); !errors.Is(err, ErrPersistence) {
				t.Errorf("Delete err = %v, want ErrPersistence", err)
			}
			if _, err := store.Sweep(ctx); !errors.Is(err, ErrPersistence) {
				t.Errorf("Sweep err = %v, want ErrPersistence", err)
			}
			if err := store.ClearAll(ctx); !errors.Is(err, ErrPersistence) {
				t.Errorf("ClearAll err = %v, want ErrPersistence", err)
			}

			got, found, err := kv.Get(ctx, key)
			if err != nil || !found || string(got) != stored {
				t.Fatalf("stored value = %q (found=%v, err=%v), want it untouched", got, found, err)
			}
			if kv.Writes() != 1 {
				t.Errorf("writes = %d, want only the seed", kv.Writes())
			}
		})
	}
}

func TestLoad_RecoversAfterFailedRead(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	store := NewTaskStore(TaskStoreConfig{Store: kv, Clock: NewFakeClock(epoch), SweepInterval: -1})
	defer store.Close()

	kv.SetFailReads(errors.New("timeout"))
	if err := store.Load(ctx, "u"); err == nil {
		t.Fatal("expected Load to fail")
	}
	kv.SetFailReads(nil)
	if err := store.Load(ctx, "u"); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if _, err := store.Create(ctx, TaskInput{Title: "ok", ExpiryTime: epoch.Add(time.Hour)}); err != nil {
		t.Fatalf("Create after recovery: %v", err)
	}
}

func TestLoad_RebindsBeforeReading(t *testing.T) {
	f := newStoreFixture(t)
	f.create(t, "mine", models.PriorityLow, time.Hour)

	var states []Snapshot
	unsub := f.store.Subscribe(func(s Snapshot) { states = append(states, s) })
	defer unsub()

	if err := f.store.Load(context.Background(), "user-2"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(states) < 2 {
		t.Fatalf("got %d snapshots, want loading and idle", len(states))
	}
	loading := states[0]
	if loading.State != LoadStateLoading || loading.UserID != "user-2" || len(loading.Tasks) != 0 {
		t.Errorf("loading snapshot = %+v, want user-2 with no tasks", loading)
	}
}

func TestLoad_EmptyUser(t *testing.T) {
	store := NewTaskStore(TaskStoreConfig{Store: storage.NewMemoryStore(), SweepInterval: -1})
	defer store.Close()
	if err := store.Load(context.Background(), " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestComplete(t *testing.T) {
	f := newStoreFixture(t)
	task := f.create(t, "ship", models.PriorityMedium, time.Hour)
	f.clock.Advance(10 * time.Minute)

	done, err := f.store.Complete(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != models.StatusCompleted || done.CompletedAt == nil || !done.CompletedAt.Equal(f.clock.Now()) {
		t.Fatalf("completed task = %+v", done)
	}

	t.Run("second call is a no-op", func(t *testing.T) {
		writes := f.kv.Writes()
		f.clock.Advance(time.Minute)
		again, err := f.store.Complete(context.Background(), task.ID)
		if err != nil {
			t.Fatalf("second Complete: %v", err)
		}
		if !again.CompletedAt.Equal(*done.CompletedAt) {
			t.Errorf("CompletedAt changed from %v to %v", done.CompletedAt, again.CompletedAt)
		}
		if f.kv.Writes() != writes {
			t.Error("second Complete wrote to storage")
		}
		if f.events.count("task.completed") != 1 {
			t.Errorf("task.completed events = %d, want 1", f.events.count("task.completed"))
		}
	})

	t.Run("expired task is rejected", func(t *testing.T) {
		stale := f.create(t, "stale", models.PriorityLow, time.Minute)
		f.clock.Advance(time.Minute)
		if _, err := f.store.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		_, err := f.store.Complete(context.Background(), stale.ID)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("err = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("overdue but unswept task can be completed", func(t *testing.T) {
		late := f.create(t, "late", models.PriorityLow, time.Minute)
		f.clock.Advance(2 * time.Minute)
		got, err := f.store.Complete(context.Background(), late.ID)
		if err != nil || got.Status != models.StatusCompleted {
			t.Fatalf("Complete = %+v, %v", got, err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, err := f.store.Complete(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestUpdate(t *testing.T) {
	f := newStoreFixture(t)
	task := f.create(t, "draft", models.PriorityLow, time.Hour)
	f.clock.Advance(time.Second)

	title := "final"
	high := models.PriorityHigh
	expiry := epoch.Add(3 * time.Hour)
	got, err := f.store.Update(context.Background(), task.ID, TaskPatch{Title: &title, Priority: &high, ExpiryTime: &expiry})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "final" || got.Priority != models.PriorityHigh || !got.ExpiryTime.Equal(expiry) {
		t.Errorf("updated task = %+v", got)
	}
	if got.Description != task.Description || got.Status != models.StatusPending {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if !got.UpdatedAt.Equal(f.clock.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, f.clock.Now())
	}
}

func TestUpdate_EmptyPatchIsNoop(t *testing.T) {
	f := newStoreFixture(t)
	task := f.create(t, "same", models.PriorityLow, time.Hour)
	writes := f.kv.Writes()

	got, err := f.store.Update(context.Background(), task.ID, TaskPatch{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !reflect.DeepEqual(got, task) {
		t.Errorf("got %+v, want %+v", got, task)
	}
	if f.kv.Writes() != writes {
		t.Error("empty patch wrote to storage")
	}
}

func TestUpdate_NotFoundLeavesCollectionUnchanged(t *testing.T) {
	f := newStoreFixture(t)
	f.create(t, "a", models.PriorityLow, time.Hour)
	before := f.store.Tasks()
	writes := f.kv.Writes()

	title := "b"
	_, err := f.store.Update(context.Background(), "missing", TaskPatch{Title: &title})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !reflect.DeepEqual(f.store.Tasks(), before) {
		t.Error("collection changed after failed update")
	}
	if f.kv.Writes() != writes {
		t.Error("failed update wrote to storage")
	}
}

func TestUpdate_TerminalTask(t *testing.T) {
	f := newStoreFixture(t)
	task := f.create(t, "done", models.PriorityLow, time.Hour)
	if _, err := f.store.Complete(context.Background(), task.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	title := "renamed"
	got, err := f.store.Update(context.Background(), task.ID, TaskPatch{Title: &title})
	if err != nil || got.Title != "renamed" || got.Status != models.StatusCompleted {
		t.Fatalf("rename completed task = %+v, %v", got, err)
	}

	expiry := epoch.Add(48 * time.Hour)
	_, err = f.store.Update(context.Background(), task.ID, TaskPatch{ExpiryTime: &expiry})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("moving expiry of completed task: err = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdate_InvalidPatch(t *testing.T) {
	f := newStoreFixture(t)
	task := f.create(t, "a", models.PriorityLow, time.Hour)

	blank := " "
	if _, err := f.store.Update(context.Background(), task.ID, TaskPatch{Title: &blank}); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestDelete(t *testing.T) {
	f := newStoreFixture(t)
	a := f.create(t, "a", models.PriorityLow, time.Hour)
	b := f.create(t, "b", models.PriorityLow, time.Hour)
	if _, err := f.store.Complete(context.Background(), b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if err := f.store.Delete(context.Background(), b.ID); err != nil {
		t.Fatalf("Delete completed task: %v", err)
	}
	if _, err := f.store.GetByID(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete: err = %v", err)
	}

	writes := f.kv.Writes()
	if err := f.store.Delete(context.Background(), b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}
	if f.kv.Writes() != writes {
		t.Error("deleting absent id wrote to storage")
	}
	if got := titles(f.store.Tasks()); !reflect.DeepEqual(got, []string{a.Title}) {
		t.Errorf("remaining = %v", got)
	}
}

func TestFailedWriteRollsBack(t *testing.T) {
	f := newStoreFixture(t)
	task := f.create(t, "a", models.PriorityLow, time.Hour)
	before := f.store.Tasks()
	f.kv.SetFailWrites(errors.New("quota exceeded"))

	ops := map[string]func() error{
		"create": func() error {
			_, err := f.store.Create(context.Background(), TaskInput{Title: "b", ExpiryTime: epoch})
			return err
		},
		"complete": func() error {
			_, err := f.store.Complete(context.Background(), task.ID)
			return err
		},
		"delete": func() error { return f.store.Delete(context.Background(), task.ID) },
		"clear":  func() error { return f.store.ClearAll(context.Background()) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrPersistence) {
				t.Fatalf("err = %v, want ErrPersistence", err)
			}
			if !reflect.DeepEqual(f.store.Tasks(), before) {
				t.Error("memory changed after failed write")
			}
		})
	}
}

func TestFilter_PartitionsByStatus(t *testing.T) {
	f := newStoreFixture(t)
	f.create(t, "a", models.PriorityLow, time.Minute)
	b := f.create(t, "b", models.PriorityMedium, time.Hour)
	f.create(t, "c", models.PriorityHigh, 2*time.Hour)
	if _, err := f.store.Complete(context.Background(), b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.store.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if got := titles(f.store.Filter(FilterPending)); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("pending = %v", got)
	}
	if got := titles(f.store.Filter(FilterExpired)); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("expired = %v", got)
	}
	if got := titles(f.store.Filter(FilterCompleted)); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("completed = %v", got)
	}
	if got := titles(f.store.Filter(FilterHigh)); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("high = %v", got)
	}
	if got := len(f.store.Filter(FilterAll)); got != 3 {
		t.Errorf("all = %d, want 3", got)
	}
}

func TestFilter_DisplayOrder(t *testing.T) {
	f := newStoreFixture(t)
	c := f.create(t, "C", models.PriorityLow, time.Minute)
	d := f.create(t, "D", models.PriorityLow, 2*time.Minute)
	f.create(t, "B", models.PriorityLow, 2*time.Hour)
	f.create(t, "A", models.PriorityLow, time.Hour)

	f.clock.Advance(time.Minute)
	if _, err := f.store.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.store.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	gc, _ := f.store.GetByID(c.ID)
	gd, _ := f.store.GetByID(d.ID)
	if !gd.ExpiredAt.After(*gc.ExpiredAt) {
		t.Fatalf("setup: D.ExpiredAt %v should follow C.ExpiredAt %v", gd.ExpiredAt, gc.ExpiredAt)
	}

	got := titles(f.store.Filter(FilterAll))
	if want := []string{"A", "B", "D", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestFilter_ReturnsCopies(t *testing.T) {
	f := newStoreFixture(t)
	task := f.create(t, "a", models.PriorityLow, time.Hour)

	view := f.store.Filter(FilterAll)
	view[0].Title = "mutated"

	got, _ := f.store.GetByID(task.ID)
	if got.Title != "a" {
		t.Error("mutating a query result changed the store")
	}
}

func TestSearch(t *testing.T) {
	f := newStoreFixture(t)
	f.create(t, "Pay rent", models.PriorityHigh, time.Hour)
	f.create(t, "Call plumber", models.PriorityLow, time.Hour)
	f.create(t, "pay invoice", models.PriorityLow, 2*time.Hour)

	if got := titles(f.store.Search(FilterAll, "PAY")); !reflect.DeepEqual(got, []string{"Pay rent", "pay invoice"}) {
		t.Errorf("search PAY = %v", got)
	}
	if got := titles(f.store.Search(FilterLow, "pay")); !reflect.DeepEqual(got, []string{"pay invoice"}) {
		t.Errorf("search low pay = %v", got)
	}
}

func TestCreateThenLoad_RoundTrip(t *testing.T) {
	f := newStoreFixture(t)
	created, err := f.store.Create(context.Background(), TaskInput{
		Title:       "Renew passport",
		Description: "bring photos",
		Priority:    models.PriorityHigh,
		ExpiryTime:  epoch.Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	other := f.open()
	defer other.Close()
	if err := other.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	loaded, err := other.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !reflect.DeepEqual(loaded, created) {
		t.Errorf("loaded %+v\nwant   %+v", loaded, created)
	}
}

func TestLoad_IsolatesUsers(t *testing.T) {
	f := newStoreFixture(t)
	f.create(t, "mine", models.PriorityLow, time.Hour)

	f.store.Clear()
	if err := f.store.Load(context.Background(), "user-2"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(f.store.Tasks()); n != 0 {
		t.Fatalf("user-2 sees %d tasks", n)
	}

	f.store.Clear()
	if err := f.store.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := len(f.store.Tasks()); n != 1 {
		t.Fatalf("user-1 sees %d tasks after reload, want 1", n)
	}
}

func TestClearAll(t *testing.T) {
	f := newStoreFixture(t)
	f.create(t, "a", models.PriorityLow, time.Hour)

	if err := f.store.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if len(f.store.Tasks()) != 0 {
		t.Error("memory not cleared")
	}
	if _, found, _ := f.kv.Get(context.Background(), storage.TasksKey("user-1")); found {
		t.Error("persisted collection not removed")
	}
	if f.events.count("tasks.cleared") != 1 {
		t.Error("expected tasks.cleared event")
	}
}

func TestClear_KeepsPersistedData(t *testing.T) {
	f := newStoreFixture(t)
	f.create(t, "a", models.PriorityLow, time.Hour)

	f.store.Clear()
	if f.store.UserID() != "" || len(f.store.Tasks()) != 0 {
		t.Error("Clear left state behind")
	}
	if _, found, _ := f.kv.Get(context.Background(), storage.TasksKey("user-1")); !found {
		t.Error("Clear removed persisted data")
	}
}

func TestNextExpiry(t *testing.T) {
	f := newStoreFixture(t)
	if _, ok := f.store.NextExpiry(); ok {
		t.Fatal("NextExpiry on empty store reported a deadline")
	}
	f.create(t, "later", models.PriorityLow, 2*time.Hour)
	soon := f.create(t, "soon", models.PriorityLow, time.Hour)

	next, ok := f.store.NextExpiry()
	if !ok || !next.Equal(soon.ExpiryTime) {
		t.Fatalf("NextExpiry = %v, %v; want %v", next, ok, soon.ExpiryTime)
	}
}

func TestSubscribe_NotifiedAfterCommit(t *testing.T) {
	f := newStoreFixture(t)

	var snaps []Snapshot
	unsubscribe := f.store.Subscribe(func(s Snapshot) {
		// Reading the store from inside the callback must not deadlock.
		_ = f.store.Tasks()
		snaps = append(snaps, s)
	})

	f.create(t, "a", models.PriorityLow, time.Hour)
	if len(snaps) != 1 || len(snaps[0].Tasks) != 1 || snaps[0].UserID != "user-1" {
		t.Fatalf("snapshots = %+v", snaps)
	}

	unsubscribe()
	f.create(t, "b", models.PriorityLow, time.Hour)
	if len(snaps) != 1 {
		t.Error("notified after unsubscribe")
	}
}

func TestSubscribe_NotNotifiedOnFailedWrite(t *testing.T) {
	f := newStoreFixture(t)
	calls := 0
	f.store.Subscribe(func(Snapshot) { calls++ })
	f.kv.SetFailWrites(errors.New("offline"))

	_, _ = f.store.Create(context.Background(), TaskInput{Title: "a", ExpiryTime: epoch})
	if calls != 0 {
		t.Errorf("observers notified %d times for a failed write", calls)
	}
}

func TestScenario_PayRentExpires(t *testing.T) {
	f := newStoreFixture(t)
	task := f.create(t, "Pay rent", models.PriorityHigh, time.Second)

	f.clock.Advance(2 * time.Second)
	if _, err := f.store.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	got, err := f.store.GetByID(task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.StatusExpired {
		t.Fatalf("status = %q, want expired", got.Status)
	}
	if got.ExpiredAt == nil || got.ExpiredAt.Before(task.ExpiryTime) {
		t.Fatalf("ExpiredAt = %v, want >= %v", got.ExpiredAt, task.ExpiryTime)
	}
}

func TestClosedStoreRejectsMutations(t *testing.T) {
	f := newStoreFixture(t)
	if err := f.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := f.store.Create(context.Background(), TaskInput{Title: "a", ExpiryTime: epoch}); err == nil {
		t.Fatal("expected error after Close")
	}
}
