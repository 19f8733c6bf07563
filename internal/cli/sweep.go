package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskclock/internal/core"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire every pending task whose deadline has passed",
	Long: `Run the expiry sweep once. Overdue tasks are also expired when a
collection is loaded and periodically while taskclock runs in the
foreground (watch, dashboard, mcp serve).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		n, err := TaskStore.Sweep(cmd.Context())
		if err != nil {
			return explain("sweeping tasks", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Expired %d overdue task(s).\n", n)
		printNextDeadline(out)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay in the foreground and report tasks as they expire",
	Long: `Keep the signed-in collection loaded with the background sweeper
running, and print a line each time a task expires or is completed.
Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runWatch(ctx, cmd.OutOrStdout())
	},
}

// runWatch reports status changes until ctx is done.
func runWatch(ctx context.Context, out io.Writer) error {
	w := newTransitionPrinter(out, TaskStore.Tasks(), Clock.Now)
	unsubscribe := TaskStore.Subscribe(w.observe)
	defer unsubscribe()

	if _, err := TaskStore.Sweep(ctx); err != nil {
		return explain("sweeping tasks", err)
	}
	fmt.Fprintf(out, "Watching %d pending task(s). Press Ctrl+C to stop.\n", len(TaskStore.Filter(core.FilterPending)))
	printNextDeadline(out)

	<-ctx.Done()
	return nil
}

func printNextDeadline(out io.Writer) {
	if next, ok := TaskStore.NextExpiry(); ok {
		fmt.Fprintf(out, "Next deadline: %s (in %s)\n",
			next.Local().Format(time.RFC1123), next.Sub(Clock.Now()).Truncate(time.Second))
	}
}

// transitionPrinter prints one line per task that leaves pending. Store
// snapshots arrive from the sweeper goroutine, hence the lock.
type transitionPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	now    func() time.Time
	status map[string]models.TaskStatus
}

func newTransitionPrinter(out io.Writer, initial []models.Task, now func() time.Time) *transitionPrinter {
	p := &transitionPrinter{out: out, now: now, status: make(map[string]models.TaskStatus, len(initial))}
	for _, t := range initial {
		p.status[t.ID] = t.Status
	}
	return p
}

func (p *transitionPrinter) observe(s core.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]models.TaskStatus, len(s.Tasks))
	for _, t := range s.Tasks {
		seen[t.ID] = t.Status
		if prev, ok := p.status[t.ID]; ok && prev == models.StatusPending && t.Status != models.StatusPending {
			fmt.Fprintf(p.out, "%s  %-9s  %-8s  %s\n",
				p.now().Local().Format("15:04:05"), t.Status, shortID(t.ID), t.Title)
		}
	}
	p.status = seen
}

func init() {
	rootCmd.AddCommand(sweepCmd, watchCmd)
}
