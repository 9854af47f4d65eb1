package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"duet-backup/core/reconcile"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var planFormat string

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what a backup pass would change",
	Long:  `Lists the source and the remote branch and prints the planned adds, updates and deletes without writing anything.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		plan, err := a.engine.Plan(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to plan backup: %w", err)
		}
		return writePlan(cmd.OutOrStdout(), plan, planFormat)
	},
}

func writePlan(w io.Writer, plan *reconcile.Plan, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		for _, a := range plan.Actions {
			fmt.Fprintf(w, "%-7s %s\n", a.Op, a.Path)
		}
		for _, r := range plan.Retained {
			fmt.Fprintf(w, "%-7s %s (%s)\n", "keep", r.Path, r.Reason)
		}
		for _, f := range plan.Failed {
			fmt.Fprintf(w, "%-7s %s: %s\n", "error", f.Path, f.Error)
		}
		s := plan.Summary
		fmt.Fprintf(w, "\n%d source files, %d remote files: %d to add, %d to update, %d to delete, %d unchanged\n",
			s.SourceFiles, s.RemoteFiles, s.Add, s.Update, s.Delete, s.Skip)
		return nil
	default:
		return fmt.Errorf("unknown format %q (text, json or yaml)", format)
	}
}

func init() {
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "text", "output format: text, json or yaml")
	RootCmd.AddCommand(planCmd)
}
