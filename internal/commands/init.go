package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/doubletake-dev/doubletake/internal/config"
	"github.com/doubletake-dev/doubletake/internal/gitops"
	"github.com/doubletake-dev/doubletake/internal/store/filestore"
)

func newInitCommand() *cobra.Command {
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new ledger directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(absDir, useGit)
		},
	}

	cmd.Flags().BoolVar(&useGit, "git", false, "initialize a git repository and commit the scaffold")

	return cmd
}

func runInit(dir string, useGit bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	cfg := config.Default()
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write empty CSV files so the layout is visible from day one.
	empty, err := filestore.Open(dir)
	if err != nil {
		return err
	}
	if err := empty.Save(); err != nil {
		return err
	}

	if useGit {
		if err := gitops.Init(dir); err != nil {
			return fmt.Errorf("git init: %w", err)
		}
		hash, err := gitops.CommitAll(dir, "init: new doubletake ledger", cfg.Git.AuthorName, cfg.Git.AuthorEmail)
		if err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
		fmt.Printf("Initialized doubletake ledger at %s (%s)\n", dir, hash)
		return nil
	}

	fmt.Printf("Initialized doubletake ledger at %s\n", dir)
	return nil
}
