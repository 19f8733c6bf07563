package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/taskclock/internal/storage"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

// DefaultSweepInterval is how often pending tasks are re-checked for expiry.
const DefaultSweepInterval = 60 * time.Second

// LoadState is the observable progress of the most recent Load.
type LoadState string

const (
	LoadStateIdle    LoadState = "idle"
	LoadStateLoading LoadState = "loading"
	LoadStateError   LoadState = "error"
)

// Snapshot is what observers receive after every committed change.
type Snapshot struct {
	UserID string
	Tasks  []models.Task
	State  LoadState
	Err    error
}

// TaskStore owns the signed-in user's task collection.
type TaskStore interface {
	Load(ctx context.Context, userID string) error
	Clear()
	ClearAll(ctx context.Context) error
	Create(ctx context.Context, in TaskInput) (models.Task, error)
	Update(ctx context.Context, id string, patch TaskPatch) (models.Task, error)
	Delete(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) (models.Task, error)
	Sweep(ctx context.Context) (int, error)
	Filter(criterion Filter) []models.Task
	Search(criterion Filter, query string) []models.Task
	GetByID(id string) (models.Task, error)
	Tasks() []models.Task
	NextExpiry() (time.Time, bool)
	UserID() string
	Loaded() bool
	State() LoadState
	LastError() error
	Subscribe(fn func(Snapshot)) (unsubscribe func())
	Close() error
}

// TaskStoreConfig carries the store's collaborators. Store is required;
// every other field has a default.
type TaskStoreConfig struct {
	Store           storage.KVStore
	Clock           Clock
	IDs             IDGenerator
	Logger          logrus.FieldLogger
	Events          EventLogger
	SweepInterval   time.Duration
	DefaultPriority models.Priority
}

// taskStore implements TaskStore. mu guards the collection and is held
// across each durable write, so writes to a user namespace are serialized
// and memory only changes after the write succeeds.
type taskStore struct {
	kv              storage.KVStore
	clock           Clock
	ids             IDGenerator
	log             logrus.FieldLogger
	events          EventLogger
	sweepInterval   time.Duration
	defaultPriority models.Priority

	mu      sync.Mutex
	userID  string
	tasks   []models.Task
	state   LoadState
	lastErr error
	closed  bool
	// loaded is set once the current user's collection has been read and
	// decoded. Writes are refused until then so a failed read never
	// overwrites data this store could not see.
	loaded bool

	sweepCancel context.CancelFunc
	sweepers    sync.WaitGroup

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// NewTaskStore creates a TaskStore. A negative SweepInterval disables the
// background sweeper; zero selects DefaultSweepInterval.
func NewTaskStore(cfg TaskStoreConfig) TaskStore {
	s := &taskStore{
		kv:              cfg.Store,
		clock:           cfg.Clock,
		ids:             cfg.IDs,
		log:             cfg.Logger,
		events:          cfg.Events,
		sweepInterval:   cfg.SweepInterval,
		defaultPriority: cfg.DefaultPriority,
		state:           LoadStateIdle,
		subs:            make(map[int]func(Snapshot)),
	}
	if s.clock == nil {
		s.clock = SystemClock()
	}
	if s.ids == nil {
		s.ids = NewUUIDGenerator()
	}
	if s.log == nil {
		s.log = discardLogger()
	}
	if s.sweepInterval == 0 {
		s.sweepInterval = DefaultSweepInterval
	}
	if !s.defaultPriority.Valid() {
		s.defaultPriority = models.PriorityMedium
	}
	return s
}

func (s *taskStore) now() time.Time {
	return s.clock.Now().UTC()
}

// Load replaces the collection with userID's persisted tasks and expires
// any that are overdue. If writing the expired tasks back fails, the swept
// collection stays loaded and the error is returned. If the collection
// cannot be read or decoded, the store stays bound to userID but refuses
// mutations until a later Load succeeds.
func (s *taskStore) Load(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalid("user_id", "user id is required")
	}

	// Rebind before publishing "loading" so nothing can be written to the
	// previous user's namespace while the read is in flight.
	s.mu.Lock()
	s.userID, s.tasks, s.loaded = userID, nil, false
	s.state = LoadStateLoading
	s.lastErr = nil
	s.stopSweeperLocked()
	s.mu.Unlock()
	s.publish()

	s.mu.Lock()
	err := s.loadLocked(ctx, userID)
	if err != nil {
		s.state = LoadStateError
		s.lastErr = err
	} else {
		s.state = LoadStateIdle
	}
	s.ensureSweeperLocked()
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("loading tasks")
	}
	s.publish()
	return err
}

func (s *taskStore) loadLocked(ctx context.Context, userID string) error {
	key := storage.TasksKey(userID)
	data, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.userID, s.tasks = userID, nil
		return persistenceError("loading tasks", err)
	}

	tasks := []models.Task{}
	if found {
		tasks, err = storage.DecodeTasks(data)
		if err != nil {
			s.userID, s.tasks = userID, nil
			return persistenceError("loading tasks", err)
		}
	}

	now := s.now()
	expired := expireOverdue(tasks, now)
	s.userID, s.tasks, s.loaded = userID, tasks, true
	s.log.WithFields(logrus.Fields{"user_id": userID, "tasks": len(tasks), "expired": len(expired)}).Debug("tasks loaded")

	if len(expired) == 0 {
		return nil
	}
	if err := s.write(ctx, tasks); err != nil {
		return err
	}
	s.logExpired(expired, now)
	return nil
}

// Clear drops the in-memory collection and stops the sweeper without
// touching persisted data. Used on sign-out.
func (s *taskStore) Clear() {
	s.mu.Lock()
	s.userID = ""
	s.tasks = nil
	s.loaded = false
	s.state = LoadStateIdle
	s.lastErr = nil
	s.stopSweeperLocked()
	s.mu.Unlock()
	s.publish()
}

// ClearAll deletes the current user's persisted collection and empties memory.
func (s *taskStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return ErrNoSession
	}
	if !s.loaded {
		err := s.notLoadedLocked("clearing tasks")
		s.mu.Unlock()
		return err
	}
	userID := s.userID
	if err := s.kv.Remove(ctx, storage.TasksKey(userID)); err != nil {
		s.mu.Unlock()
		err = persistenceError("clearing tasks", err)
		s.log.WithError(err).Error("clearing tasks")
		return err
	}
	count := len(s.tasks)
	s.tasks = []models.Task{}
	s.stopSweeperLocked()
	s.mu.Unlock()

	s.logEvent("tasks.cleared", map[string]any{"user_id": userID, "count": count})
	s.publish()
	return nil
}

// Create appends a new pending task and persists the collection.
func (s *taskStore) Create(ctx context.Context, in TaskInput) (models.Task, error) {
	if err := in.Validate(); err != nil {
		return models.Task{}, err
	}

	var created models.Task
	err := s.mutate(ctx, "creating task", func(tasks []models.Task, now time.Time, userID string) ([]models.Task, bool, error) {
		priority := in.Priority
		if priority == "" {
			priority = s.defaultPriority
		}
		created = models.Task{
			ID:          s.ids.NewID(),
			UserID:      userID,
			Title:       strings.TrimSpace(in.Title),
			Description: strings.TrimSpace(in.Description),
			Priority:    priority,
			Status:      models.StatusPending,
			ExpiryTime:  in.ExpiryTime.UTC(),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return append(tasks, created), true, nil
	})
	if err != nil {
		return models.Task{}, err
	}

	s.logEvent("task.created", map[string]any{
		"task_id":  created.ID,
		"user_id":  created.UserID,
		"priority": string(created.Priority),
		"expiry":   created.ExpiryTime.Format(time.RFC3339),
	})
	return created.Clone(), nil
}

// Update merges patch into the task with the given id. An empty patch is a
// no-op that returns the task as stored.
func (s *taskStore) Update(ctx context.Context, id string, patch TaskPatch) (models.Task, error) {
	if err := patch.Validate(); err != nil {
		return models.Task{}, err
	}

	var updated models.Task
	err := s.mutate(ctx, "updating task", func(tasks []models.Task, now time.Time, _ string) ([]models.Task, bool, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, false, taskNotFound(id)
		}
		if patch.IsEmpty() {
			updated = tasks[i]
			return tasks, false, nil
		}
		if err := patch.apply(&tasks[i], now); err != nil {
			return nil, false, err
		}
		updated = tasks[i]
		return tasks, true, nil
	})
	if err != nil {
		return models.Task{}, err
	}

	if !patch.IsEmpty() {
		s.logEvent("task.updated", map[string]any{"task_id": id, "priority": string(updated.Priority)})
	}
	return updated.Clone(), nil
}

// Delete removes the task with the given id whatever its status. An absent
// id returns ErrNotFound and writes nothing.
func (s *taskStore) Delete(ctx context.Context, id string) error {
	var removed models.Task
	err := s.mutate(ctx, "deleting task", func(tasks []models.Task, _ time.Time, _ string) ([]models.Task, bool, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, false, taskNotFound(id)
		}
		removed = tasks[i]
		return append(tasks[:i], tasks[i+1:]...), true, nil
	})
	if err != nil {
		return err
	}

	s.logEvent("task.deleted", map[string]any{"task_id": id, "status": string(removed.Status)})
	return nil
}

// Complete moves a pending task to completed. Completing an already
// completed task returns it unchanged; completing an expired task fails
// with ErrInvalidTransition.
func (s *taskStore) Complete(ctx context.Context, id string) (models.Task, error) {
	var (
		result  models.Task
		changed bool
	)
	err := s.mutate(ctx, "completing task", func(tasks []models.Task, now time.Time, _ string) ([]models.Task, bool, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, false, taskNotFound(id)
		}
		t := &tasks[i]
		switch t.Status {
		case models.StatusCompleted:
			result = *t
			return tasks, false, nil
		case models.StatusExpired:
			return nil, false, &transitionError{id: id, from: t.Status, action: "complete"}
		}
		completedAt := now
		t.Status = models.StatusCompleted
		t.CompletedAt = &completedAt
		t.UpdatedAt = now
		result = *t
		changed = true
		return tasks, true, nil
	})
	if err != nil {
		return models.Task{}, err
	}

	if changed {
		s.logEvent("task.completed", map[string]any{
			"task_id":  id,
			"priority": string(result.Priority),
			"early_by": result.ExpiryTime.Sub(*result.CompletedAt).String(),
		})
	}
	return result.Clone(), nil
}

// Sweep expires every pending task whose deadline is at or before now and
// persists the batch in one write. Nothing is written when nothing changed.
func (s *taskStore) Sweep(ctx context.Context) (int, error) {
	var (
		expired []models.Task
		at      time.Time
	)
	err := s.mutate(ctx, "sweeping tasks", func(tasks []models.Task, now time.Time, _ string) ([]models.Task, bool, error) {
		at = now
		expired = expireOverdue(tasks, now)
		return tasks, len(expired) > 0, nil
	})
	if err != nil {
		return 0, err
	}
	if len(expired) > 0 {
		s.log.WithField("expired", len(expired)).Debug("sweep expired tasks")
		s.logExpired(expired, at)
	}
	return len(expired), nil
}

// Filter returns the matching tasks in display order.
func (s *taskStore) Filter(criterion Filter) []models.Task {
	return s.Search(criterion, "")
}

// Search is Filter narrowed by a case-insensitive title substring.
func (s *taskStore) Search(criterion Filter, query string) []models.Task {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if criterion.Matches(t) && matchesSearch(t, query) {
			out = append(out, t.Clone())
		}
	}
	s.mu.Unlock()

	SortForDisplay(out)
	return out
}

// GetByID returns the task with the given id or ErrNotFound.
func (s *taskStore) GetByID(id string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.tasks, id)
	if i < 0 {
		return models.Task{}, taskNotFound(id)
	}
	return s.tasks[i].Clone(), nil
}

// Tasks returns the collection in storage order.
func (s *taskStore) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.tasks)
}

// NextExpiry returns the nearest deadline among pending tasks.
func (s *taskStore) NextExpiry() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		next  time.Time
		found bool
	)
	for _, t := range s.tasks {
		if t.Status != models.StatusPending {
			continue
		}
		if !found || t.ExpiryTime.Before(next) {
			next, found = t.ExpiryTime, true
		}
	}
	return next, found
}

func (s *taskStore) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Loaded reports whether the current user's collection was read
// successfully. Mutations are refused while it is false.
func (s *taskStore) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *taskStore) State() LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *taskStore) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe registers fn to receive a Snapshot after every committed
// change. fn runs on the goroutine that made the change, outside the lock.
func (s *taskStore) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Close stops the sweeper and waits for it to exit. The store rejects
// further mutations afterwards.
func (s *taskStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.stopSweeperLocked()
	s.mu.Unlock()
	s.sweepers.Wait()
	return nil
}

// mutate runs fn against a private copy of the collection and, when fn
// reports a change, persists the result before swapping it in. A failed
// write leaves memory untouched.
func (s *taskStore) mutate(ctx context.Context, op string, fn func(tasks []models.Task, now time.Time, userID string) ([]models.Task, bool, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%s: task store is closed", op)
	}
	if s.userID == "" {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	if !s.loaded {
		err := s.notLoadedLocked(op)
		s.mu.Unlock()
		return err
	}

	next, changed, err := fn(cloneTasks(s.tasks), s.now(), s.userID)
	if err != nil || !changed {
		s.mu.Unlock()
		if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidTransition) {
			s.log.WithError(err).Error(op)
		}
		return err
	}

	if err := s.write(ctx, next); err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.log.WithError(err).Error(op)
		return err
	}
	s.tasks = next
	s.ensureSweeperLocked()
	s.mu.Unlock()

	s.publish()
	return nil
}

// notLoadedLocked explains why a mutation was refused after a failed Load.
// The result matches ErrPersistence. Caller holds mu.
func (s *taskStore) notLoadedLocked(op string) error {
	if s.lastErr != nil {
		return fmt.Errorf("%s: %w: %w", op, errNotLoaded, s.lastErr)
	}
	return persistenceError(op, errNotLoaded)
}

// write persists tasks under the current user's key. Caller holds mu.
func (s *taskStore) write(ctx context.Context, tasks []models.Task) error {
	data, err := storage.EncodeTasks(tasks)
	if err != nil {
		return persistenceError("saving tasks", err)
	}
	if err := s.kv.Set(ctx, storage.TasksKey(s.userID), data); err != nil {
		return persistenceError("saving tasks", err)
	}
	return nil
}

func (s *taskStore) publish() {
	s.mu.Lock()
	snap := Snapshot{
		UserID: s.userID,
		Tasks:  cloneTasks(s.tasks),
		State:  s.state,
		Err:    s.lastErr,
	}
	s.mu.Unlock()

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *taskStore) logEvent(eventType string, data map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.LogEvent(eventType, data); err != nil {
		s.log.WithError(err).WithField("event", eventType).Warn("recording event")
	}
}

func (s *taskStore) logExpired(expired []models.Task, at time.Time) {
	for _, t := range expired {
		s.logEvent("task.expired", map[string]any{
			"task_id":  t.ID,
			"priority": string(t.Priority),
			"late_by":  at.Sub(t.ExpiryTime).String(),
		})
	}
}

// expireOverdue transitions overdue pending tasks in place and returns the
// ones it changed.
func expireOverdue(tasks []models.Task, now time.Time) []models.Task {
	var expired []models.Task
	for i := range tasks {
		t := &tasks[i]
		if !t.IsOverdue(now) {
			continue
		}
		expiredAt := now
		t.Status = models.StatusExpired
		t.ExpiredAt = &expiredAt
		t.UpdatedAt = now
		expired = append(expired, *t)
	}
	return expired
}

func indexOf(tasks []models.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneTasks(tasks []models.Task) []models.Task {
	if tasks == nil {
		return nil
	}
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
