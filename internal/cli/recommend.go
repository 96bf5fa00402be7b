package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/okian/allot/internal/domain/planning"
	"github.com/spf13/cobra"
)

func newRecommendCmd() *cobra.Command {
	var (
		opts      engineOptions
		projectID string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank candidates for one project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := newEngine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out, err := eng.planner.Recommend(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			switch output {
			case outputJSON:
				return writeJSON(cmd.OutOrStdout(), out)
			case outputTable:
				return writeRecommendTable(cmd, out)
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
		},
	}
	addEngineFlags(cmd, &opts)
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project id (required)")
	cmd.Flags().IntVar(&opts.limit, "limit", planning.DefaultLimit, "Maximum number of recommendations")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table or json")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func writeRecommendTable(cmd *cobra.Command, out planning.Recommendations) error {
	w := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(w, "%s: %s\n", out.Status, out.Message); err != nil {
		return err
	}
	if len(out.Recommendations) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tEMPLOYEE\tNAME\tSCORE\tHOURS\tSELECTED\tWHY")
	for i, r := range out.Recommendations {
		sel := ""
		if r.Selected {
			sel = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.1f\t%s\t%s\n",
			i+1, r.EmployeeID, r.EmployeeName, r.MatchScore, r.AvailableHours, sel, r.Explanation)
	}
	return tw.Flush()
}
