package cmd

import (
	"errors"
	"fmt"

	"duet-backup/core/config"

	"github.com/spf13/cobra"
)

var createBranch bool

// branchesCmd represents the branches command
var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List the branches of the remote",
	Long: `Lists the branches of the configured remote. With --create the configured
backup branch is created on an object store remote. GitHub branches must be
created on GitHub.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logg.Sync()

		ctx := cmd.Context()
		if createBranch {
			if cfg.Backup.Remote != config.RemoteObjectStore {
				return errors.New("--create needs backup.remote=objectstore")
			}
			tree, err := newObjectTree(cfg, logg)
			if err != nil {
				return err
			}
			if err := tree.EnsureBranch(ctx, cfg.Backup.Branch, cfg.Storage.Region); err != nil {
				return err
			}
		}

		tree, err := newTree(cfg, logg)
		if err != nil {
			return err
		}
		names, err := tree.ListBranches(ctx)
		if err != nil {
			return fmt.Errorf("failed to list branches: %w", err)
		}
		for _, name := range names {
			marker := " "
			if name == cfg.Backup.Branch {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
		return nil
	},
}

func init() {
	branchesCmd.Flags().BoolVar(&createBranch, "create", false, "create the backup branch (object store only)")
	RootCmd.AddCommand(branchesCmd)
}

