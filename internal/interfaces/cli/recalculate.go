package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newRecalculateCmd(opts *RootOptions, factory ServiceFactory, out io.Writer) *cobra.Command {
	var (
		projectID string
		all       bool
		initial   bool
	)

	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Recalculate project deadline schedules",
		Long:  "Run the scheduling engine for one project or for every project,\npersisting the resulting deadline rows.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" && !all {
				return fmt.Errorf("either --project or --all is required")
			}
			if projectID != "" && all {
				return fmt.Errorf("--project and --all are mutually exclusive")
			}
			if all && initial {
				return fmt.Errorf("--initial applies to a single project only")
			}

			svc, cleanup, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if all {
				results, err := svc.RecalculateAll(cmd.Context())
				if err != nil {
					return err
				}
				return printResult(out, opts, results, func() {
					for _, r := range results {
						fmt.Fprintf(out, "%s: created=%d deleted=%d changed=%d\n",
							r.ProjectID, r.Created, r.Deleted, r.Changed)
					}
					fmt.Fprintf(out, "recalculated %d projects\n", len(results))
				})
			}

			result, err := svc.RecalculateProject(cmd.Context(), projectID, initial)
			if err != nil {
				return err
			}
			return printResult(out, opts, result, func() {
				fmt.Fprintf(out, "%s: created=%d deleted=%d changed=%d\n",
					result.ProjectID, result.Created, result.Deleted, result.Changed)
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project identifier")
	cmd.Flags().BoolVar(&all, "all", false, "recalculate every project")
	cmd.Flags().BoolVar(&initial, "initial", false, "run initial generation instead of an update")

	return cmd
}
