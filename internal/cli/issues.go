package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/fixdesk/internal/app"
	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/config"
)

func newIssuesCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "Inspect or extend the issue catalog",
	}
	cmd.AddCommand(newIssuesListCommand(logger))
	cmd.AddCommand(newIssuesAddCommand(logger))
	return cmd
}

func newIssuesListCommand(logger *slog.Logger) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries in insertion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			issueCatalog, closeCatalog, err := app.OpenCatalog(ctx, config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer closeCatalog()

			needle := strings.ToLower(strings.TrimSpace(query))
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "ISSUE\tFIX\tIMAGE")
			for _, record := range issueCatalog.Records(ctx) {
				if needle != "" && !strings.Contains(strings.ToLower(record.Issue), needle) {
					continue
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\n", record.Issue, oneLine(record.Fix), record.Image)
			}
			return writer.Flush()
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "only show issues containing this text")
	return cmd
}

func newIssuesAddCommand(logger *slog.Logger) *cobra.Command {
	var (
		issue string
		fix   string
		image string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append an issue and its fix to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := catalog.NewRecord(catalog.NewRecordInput{
				Issue:     issue,
				Fix:       fix,
				Image:     image,
				CreatedBy: "cli",
			})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			issueCatalog, closeCatalog, err := app.OpenCatalog(ctx, config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer closeCatalog()
			if err := issueCatalog.Append(ctx, record); err != nil {
				return err
			}
			cmd.Printf("added %q (%s)\n", record.Issue, record.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&issue, "issue", "", "issue text users will mention")
	cmd.Flags().StringVar(&fix, "fix", "", "how to fix it")
	cmd.Flags().StringVar(&image, "img", "", "optional image url shown with the fix")
	_ = cmd.MarkFlagRequired("issue")
	_ = cmd.MarkFlagRequired("fix")
	return cmd
}

func oneLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
