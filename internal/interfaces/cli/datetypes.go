package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newDateTypesCmd(opts *RootOptions, factory ServiceFactory, out io.Writer) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "datetypes <identifier>",
		Short: "List a date type's valid dates for one year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier := args[0]
			if year == 0 {
				year = time.Now().Year()
			}

			svc, cleanup, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			dates, err := svc.DateTypeDates(cmd.Context(), identifier, year)
			if err != nil {
				return err
			}
			return printResult(out, opts, dates, func() {
				for _, d := range dates {
					fmt.Fprintln(out, d)
				}
				fmt.Fprintf(out, "%d dates in %d\n", len(dates), year)
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "calendar year (default: current year)")

	return cmd
}
