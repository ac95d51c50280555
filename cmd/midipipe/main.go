// Command midipipe ingests Standard MIDI File libraries, normalizes and
// analyzes them, and persists the results to PostgreSQL (or an
// in-process store for local use).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Michael-F-Ellis/midipipe/internal/config"
	"github.com/Michael-F-Ellis/midipipe/internal/pipeline"
	"github.com/Michael-F-Ellis/midipipe/internal/store"
)

var log = logrus.WithField("component", "cli")

var useMemoryStore bool

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "midipipe",
		Short: "Ingest, normalize and analyze Standard MIDI File libraries",
	}
	root.PersistentFlags().BoolVar(&useMemoryStore, "memory", false, "use an in-process store instead of DATABASE_URL (local/dev use)")
	root.AddCommand(newImportCmd())
	root.AddCommand(newImportArchivesCmd())
	root.AddCommand(newAnalyzePendingCmd())
	root.AddCommand(newExportPatternCmd())
	root.AddCommand(newServeCmd())
	return root
}

// openStore builds the Store backing a command invocation: the
// in-process fake when --memory is set, otherwise a pgx pool against
// cfg.DatabaseURL.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if useMemoryStore {
		return store.NewMemoryStore(), nil
	}
	return store.Open(ctx, cfg.DatabaseURL, cfg.PoolSize(), cfg.PoolAcquireTimeout)
}

// newRuntime loads Config and opens a Store, returning a Runtime ready
// to drive a single ImportDirectory or AnalyzePending call.
func newRuntime(ctx context.Context) (*pipeline.Runtime, store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return pipeline.NewRuntime(cfg, st), st, nil
}
