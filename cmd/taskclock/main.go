package main

import (
	"context"
	"fmt"
	"os"

	app "github.com/valter-silva-au/taskclock/internal"
	"github.com/valter-silva-au/taskclock/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersionInfo(version, commit, date)
	basePath := app.ResolveBasePath()
	ctx := context.Background()

	a, err := app.NewApp(ctx, basePath, app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing taskclock: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing taskclock: %v\n", err)
		}
	}()

	if err := cli.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
