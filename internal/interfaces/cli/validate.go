package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	domain "github.com/civicplan/planschedule/internal/domain/schedule"
)

func newValidateCmd(opts *RootOptions, factory ServiceFactory, out io.Writer) *cobra.Command {
	var (
		projectID  string
		deadlineID string
		dateArg    string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a candidate date against a deadline's rules",
		Long:  "Validate a hypothetical date for one deadline without persisting\nanything: date pool membership and distance constraints are checked\nand a suggested alternative is reported when the date is rejected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := time.Parse(domain.DateFormat, dateArg)
			if err != nil {
				return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", dateArg)
			}

			svc, cleanup, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.ValidateUserEdit(cmd.Context(), projectID, deadlineID, date)
			if err != nil {
				return err
			}
			return printResult(out, opts, result, func() {
				if result.Valid {
					fmt.Fprintf(out, "%s %s: valid\n", deadlineID, dateArg)
				} else {
					fmt.Fprintf(out, "%s %s: invalid (%s)\n", deadlineID, dateArg, result.Reason)
					if result.SuggestedDate != nil {
						fmt.Fprintf(out, "suggested: %s\n", *result.SuggestedDate)
					}
				}
				for _, w := range result.Warnings {
					fmt.Fprintf(out, "warning: %s\n", w)
				}
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project identifier [REQUIRED]")
	cmd.Flags().StringVar(&deadlineID, "deadline", "", "deadline identifier [REQUIRED]")
	cmd.Flags().StringVar(&dateArg, "date", "", "candidate date, YYYY-MM-DD [REQUIRED]")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("deadline")
	cmd.MarkFlagRequired("date")

	return cmd
}

func newExplainCmd(opts *RootOptions, factory ServiceFactory, out io.Writer) *cobra.Command {
	var (
		projectID  string
		deadlineID string
	)

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show how a deadline's date was derived",
		Long:  "Walk the deadline's calculation branches against the project's\ncurrent attribute data and report which branch produced the date.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			traces, err := svc.ExplainDeadline(cmd.Context(), projectID, deadlineID)
			if err != nil {
				return err
			}

			type traceOut struct {
				Index       int     `json:"index"`
				Description string  `json:"description"`
				Skipped     bool    `json:"skipped"`
				Satisfied   bool    `json:"satisfied"`
				Date        *string `json:"date"`
			}
			rows := make([]traceOut, 0, len(traces))
			for _, t := range traces {
				row := traceOut{Index: t.Index, Description: t.Description, Skipped: t.Skipped, Satisfied: t.Satisfied}
				if t.Date != nil {
					s := t.Date.Format(domain.DateFormat)
					row.Date = &s
				}
				rows = append(rows, row)
			}

			return printResult(out, opts, rows, func() {
				for _, r := range rows {
					status := "condition not met"
					switch {
					case r.Skipped:
						status = "skipped"
					case r.Satisfied && r.Date != nil:
						status = "matched, date " + *r.Date
					case r.Satisfied:
						status = "matched, no date"
					}
					fmt.Fprintf(out, "branch %d: %s (%s)\n", r.Index, r.Description, status)
				}
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project identifier [REQUIRED]")
	cmd.Flags().StringVar(&deadlineID, "deadline", "", "deadline identifier [REQUIRED]")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("deadline")

	return cmd
}
