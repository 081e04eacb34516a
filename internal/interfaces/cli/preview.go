package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newPreviewCmd(opts *RootOptions, factory ServiceFactory, out io.Writer) *cobra.Command {
	var (
		projectID string
		sets      []string
		confirmed []string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview a schedule with hypothetical attribute values",
		Long:  "Run the scheduling engine against the project with attribute\noverrides applied, without persisting anything.  Values given with\n--set are decoded as JSON where possible and kept as strings otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			overlay := make(map[string]interface{}, len(sets))
			for _, s := range sets {
				key, raw, ok := strings.Cut(s, "=")
				if !ok || key == "" {
					return fmt.Errorf("invalid --set %q: expected key=value", s)
				}
				var v interface{}
				if err := json.Unmarshal([]byte(raw), &v); err != nil {
					v = raw
				}
				overlay[key] = v
			}

			svc, cleanup, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			dates, err := svc.PreviewSchedule(cmd.Context(), projectID, overlay, confirmed)
			if err != nil {
				return err
			}
			return printResult(out, opts, dates, func() {
				ids := make([]string, 0, len(dates))
				for id := range dates {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					if dates[id] == nil {
						fmt.Fprintf(out, "%s: -\n", id)
					} else {
						fmt.Fprintf(out, "%s: %s\n", id, *dates[id])
					}
				}
			})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project identifier [REQUIRED]")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "attribute override, key=value (repeatable)")
	cmd.Flags().StringSliceVar(&confirmed, "confirmed", nil, "attribute identifiers to treat as confirmed")
	cmd.MarkFlagRequired("project")

	return cmd
}
