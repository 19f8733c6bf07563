package core

import (
	"context"
	"testing"
	"time"

	"github.com/valter-silva-au/taskclock/internal/storage"
	"github.com/valter-silva-au/taskclock/pkg/models"
	"pgregory.net/rapid"
)

// buildRandomStore creates a store holding a random mix of pending,
// completed and expired tasks.
func buildRandomStore(rt *rapid.T) (TaskStore, *FakeClock) {
	clock := NewFakeClock(epoch)
	store := NewTaskStore(TaskStoreConfig{
		Store:         storage.NewMemoryStore(),
		Clock:         clock,
		IDs:           &seqIDs{},
		SweepInterval: -1,
	})
	if err := store.Load(context.Background(), "prop-user"); err != nil {
		rt.Fatalf("Load: %v", err)
	}

	n := rapid.IntRange(0, 25).Draw(rt, "n")
	for i := 0; i < n; i++ {
		offset := time.Duration(rapid.IntRange(-120, 120).Draw(rt, "offsetMin")) * time.Minute
		task, err := store.Create(context.Background(), TaskInput{
			Title:      rapid.StringMatching(`[A-Za-z]{1,12}`).Draw(rt, "title"),
			Priority:   rapid.SampledFrom(models.PriorityLevels).Draw(rt, "priority"),
			ExpiryTime: clock.Now().Add(offset),
		})
		if err != nil {
			rt.Fatalf("Create: %v", err)
		}
		if rapid.IntRange(0, 3).Draw(rt, "complete") == 0 {
			if _, err := store.Complete(context.Background(), task.ID); err != nil {
				rt.Fatalf("Complete: %v", err)
			}
		}
	}
	clock.Advance(time.Duration(rapid.IntRange(0, 60).Draw(rt, "advanceMin")) * time.Minute)
	if _, err := store.Sweep(context.Background()); err != nil {
		rt.Fatalf("Sweep: %v", err)
	}
	return store, clock
}

// Property: filter(pending), filter(expired) and filter(completed) are
// pairwise disjoint and together cover the whole collection. The same
// holds for the three priority filters.
func TestProperty_FilterPartition(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store, _ := buildRandomStore(rt)
		defer store.Close()

		all := store.Filter(FilterAll)
		for _, group := range [][]Filter{
			{FilterPending, FilterExpired, FilterCompleted},
			{FilterLow, FilterMedium, FilterHigh},
		} {
			seen := make(map[string]Filter)
			for _, f := range group {
				for _, task := range store.Filter(f) {
					if prev, dup := seen[task.ID]; dup {
						rt.Fatalf("task %s in both %s and %s", task.ID, prev, f)
					}
					seen[task.ID] = f
				}
			}
			if len(seen) != len(all) {
				rt.Fatalf("partition %v covers %d of %d tasks", group, len(seen), len(all))
			}
		}
	})
}

// Property: after a sweep no pending task is overdue, and every expired
// task carries an ExpiredAt no earlier than its deadline.
func TestProperty_SweepLeavesNoOverdueTasks(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store, clock := buildRandomStore(rt)
		defer store.Close()

		now := clock.Now()
		for _, task := range store.Tasks() {
			switch task.Status {
			case models.StatusPending:
				if !task.ExpiryTime.After(now) {
					rt.Fatalf("pending task %s overdue after sweep", task.ID)
				}
			case models.StatusExpired:
				if task.ExpiredAt == nil || task.ExpiredAt.Before(task.ExpiryTime) {
					rt.Fatalf("expired task %s has ExpiredAt %v before deadline %v", task.ID, task.ExpiredAt, task.ExpiryTime)
				}
			case models.StatusCompleted:
				if task.CompletedAt == nil || task.ExpiredAt != nil {
					rt.Fatalf("completed task %s has bad timestamps", task.ID)
				}
			}
		}
	})
}

// Property: the display order puts every pending task before every other
// task, pending by ascending deadline and the rest by descending deadline.
func TestProperty_DisplayOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store, _ := buildRandomStore(rt)
		defer store.Close()

		view := store.Filter(FilterAll)
		for i := 1; i < len(view); i++ {
			prev, cur := view[i-1], view[i]
			prevPending := prev.Status == models.StatusPending
			curPending := cur.Status == models.StatusPending
			switch {
			case !prevPending && curPending:
				rt.Fatalf("pending task %s after non-pending %s", cur.ID, prev.ID)
			case prevPending && curPending && cur.ExpiryTime.Before(prev.ExpiryTime):
				rt.Fatalf("pending out of order at %d", i)
			case !prevPending && !curPending && cur.ExpiryTime.After(prev.ExpiryTime):
				rt.Fatalf("non-pending out of order at %d", i)
			}
		}
	})
}

// Property: a fresh store loading the same user sees the same collection.
func TestProperty_LoadRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		kv := storage.NewMemoryStore()
		clock := NewFakeClock(epoch)
		store := NewTaskStore(TaskStoreConfig{Store: kv, Clock: clock, IDs: &seqIDs{}, SweepInterval: -1})
		defer store.Close()
		if err := store.Load(context.Background(), "u"); err != nil {
			rt.Fatalf("Load: %v", err)
		}

		n := rapid.IntRange(1, 10).Draw(rt, "n")
		for i := 0; i < n; i++ {
			_, err := store.Create(context.Background(), TaskInput{
				Title:       rapid.StringMatching(`[A-Za-z ]{1,20}[a-z]`).Draw(rt, "title"),
				Description: rapid.StringMatching(`[a-z]{0,20}`).Draw(rt, "desc"),
				ExpiryTime:  clock.Now().Add(time.Duration(rapid.IntRange(1, 1000).Draw(rt, "min")) * time.Minute),
			})
			if err != nil {
				rt.Fatalf("Create: %v", err)
			}
		}

		other := NewTaskStore(TaskStoreConfig{Store: kv, Clock: clock, SweepInterval: -1})
		defer other.Close()
		if err := other.Load(context.Background(), "u"); err != nil {
			rt.Fatalf("reload: %v", err)
		}
		want, got := store.Tasks(), other.Tasks()
		if len(want) != len(got) {
			rt.Fatalf("reloaded %d tasks, want %d", len(got), len(want))
		}
		for i := range want {
			if want[i].ID != got[i].ID || want[i].Title != got[i].Title || !want[i].ExpiryTime.Equal(got[i].ExpiryTime) {
				rt.Fatalf("task %d differs: %+v vs %+v", i, got[i], want[i])
			}
		}
	})
}
