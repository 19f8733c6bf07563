package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/valter-silva-au/taskclock/internal/core"
	"github.com/valter-silva-au/taskclock/internal/observability"
	"github.com/valter-silva-au/taskclock/internal/storage"
	"github.com/valter-silva-au/taskclock/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("task-%04d", s.n)
}

// cliFixture wires real core services over an in-memory store into the
// package-level vars and restores the previous values on cleanup.
type cliFixture struct {
	kv     *storage.MemoryStore
	clock  *core.FakeClock
	store  core.TaskStore
	idp    core.IdentityProvider
	events observability.EventLog
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()

	f := &cliFixture{
		kv:    storage.NewMemoryStore(),
		clock: core.NewFakeClock(epoch),
	}
	ids := &seqIDs{}

	log, err := observability.NewJSONLEventLog(t.TempDir() + "/events.jsonl")
	if err != nil {
		t.Fatalf("opening event log: %v", err)
	}
	f.events = log
	recorder := observability.NewRecorder(log, f.clock.Now)

	f.store = core.NewTaskStore(core.TaskStoreConfig{
		Store:         f.kv,
		Clock:         f.clock,
		IDs:           ids,
		Events:        recorder,
		SweepInterval: -1,
	})
	f.idp = core.NewIdentityProvider(core.IdentityProviderConfig{
		Store:      f.kv,
		Clock:      f.clock,
		Events:     recorder,
		BcryptCost: bcrypt.MinCost,
	})
	if err := f.idp.Load(context.Background()); err != nil {
		t.Fatalf("loading identity: %v", err)
	}
	unbind, err := core.BindSession(context.Background(), f.idp, f.store, nil)
	if err != nil {
		t.Fatalf("binding session: %v", err)
	}

	origStore, origIdentity, origClock := TaskStore, Identity, Clock
	origLog, origAlerts, origMetrics, origNotifier := EventLog, AlertEngine, MetricsCalc, Notifier
	TaskStore, Identity, Clock = f.store, f.idp, f.clock
	EventLog = log
	AlertEngine = observability.NewAlertEngine(observability.DefaultAlertThresholds())
	MetricsCalc = observability.NewMetricsCalculator(log)
	Notifier = nil

	t.Cleanup(func() {
		unbind()
		_ = f.store.Close()
		_ = log.Close()
		TaskStore, Identity, Clock = origStore, origIdentity, origClock
		EventLog, AlertEngine, MetricsCalc, Notifier = origLog, origAlerts, origMetrics, origNotifier
	})
	return f
}

// signIn registers and signs in a fresh account.
func (f *cliFixture) signIn(t *testing.T, email string) models.Identity {
	t.Helper()
	id, err := f.idp.SignUp(context.Background(), models.Credentials{
		Email: email, Password: "secret1", Confirm: "secret1",
	})
	if err != nil {
		t.Fatalf("SignUp(%s): %v", email, err)
	}
	return id
}

func (f *cliFixture) create(t *testing.T, title string, in time.Duration, p models.Priority) models.Task {
	t.Helper()
	task, err := f.store.Create(context.Background(), core.TaskInput{
		Title:      title,
		Priority:   p,
		ExpiryTime: f.clock.Now().Add(in),
	})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return task
}

// runCLI executes the root command with args and returns its output.
// Flag values are reset first since cobra keeps them between runs.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
