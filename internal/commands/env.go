package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/doubletake-dev/doubletake/internal/config"
	"github.com/doubletake-dev/doubletake/internal/gitops"
	"github.com/doubletake-dev/doubletake/internal/logger"
	"github.com/doubletake-dev/doubletake/internal/review"
	"github.com/doubletake-dev/doubletake/internal/store"
	"github.com/doubletake-dev/doubletake/internal/store/filestore"
	"github.com/doubletake-dev/doubletake/internal/store/postgres"
)

// ledgerEnv bundles everything a command needs: the loaded config, the store
// behind it, and the service.
type ledgerEnv struct {
	dir  string
	cfg  *config.Config
	st   store.Store
	file *filestore.Store // nil when the store is postgres
	pg   *postgres.Store  // nil when the store is CSV-backed
	svc  *review.Service
}

// openLedger resolves dir, loads doubletake.yaml, and opens the configured
// store (CSV files by default, postgres when a database is configured).
func openLedger(ctx context.Context, dir string) (*ledgerEnv, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(absDir, config.FileName))
	if err != nil {
		return nil, err
	}

	env := &ledgerEnv{dir: absDir, cfg: cfg}
	if cfg.Store.Database != "" {
		env.pg, err = postgres.NewStore(ctx, cfg.Store.Database)
		if err != nil {
			return nil, err
		}
		env.st = env.pg
	} else {
		env.file, err = filestore.Open(absDir)
		if err != nil {
			return nil, err
		}
		env.st = env.file
	}

	env.svc = review.NewService(env.st, logger.New())
	return env, nil
}

func (e *ledgerEnv) close() {
	if e.pg != nil {
		e.pg.Close()
	}
}

// persist writes a CSV-backed ledger to disk after a mutating operation and,
// when configured, commits the change. Postgres ledgers persist on commit.
func (e *ledgerEnv) persist(message string) error {
	if e.file == nil {
		return nil
	}
	if err := e.file.Save(); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}

	if e.cfg.Git.AutoCommit && gitops.IsRepo(e.dir) {
		if _, err := gitops.CommitAll(e.dir, message, e.cfg.Git.AuthorName, e.cfg.Git.AuthorEmail); err != nil {
			return fmt.Errorf("committing ledger: %w", err)
		}
	}
	return nil
}

// addLedgerFlag registers the shared --ledger flag.
func addLedgerFlag(cmd *cobra.Command, dir *string) {
	cmd.Flags().StringVar(dir, "ledger", ".", "ledger directory")
}
