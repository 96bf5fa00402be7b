package cli

import (
	"github.com/okian/allot/internal/domain/fault"
	"github.com/spf13/cobra"
)

type proposalOutput struct {
	EmployeeID   string `json:"employee_id"`
	ProjectID    string `json:"project_id"`
	AllocationID string `json:"allocation_id,omitempty"`
	Error        string `json:"error,omitempty"`
	Kind         string `json:"kind,omitempty"`
}

func newOptimizeCmd() *cobra.Command {
	var (
		opts     engineOptions
		projects []string
		apply    bool
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Solve several projects together",
		Long: `Solve the given projects (default: every planning project) in one
problem. With --apply the assignments are committed as proposed allocations
against the in-memory copy of the working set and the outcome of each is
reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := newEngine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			plan, err := eng.planner.Optimize(cmd.Context(), projects, apply)
			if err != nil {
				return err
			}
			out := struct {
				Plan      any              `json:"plan"`
				Proposals []proposalOutput `json:"proposals,omitempty"`
			}{Plan: plan}
			for _, p := range plan.Proposals {
				po := proposalOutput{EmployeeID: p.Assignment.EmployeeID, ProjectID: p.Assignment.ProjectID}
				if p.Err != nil {
					po.Error = p.Err.Error()
					po.Kind = fault.KindName(p.Err)
				} else {
					po.AllocationID = p.Allocation.ID
				}
				out.Proposals = append(out.Proposals, po)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	addEngineFlags(cmd, &opts)
	cmd.Flags().StringSliceVarP(&projects, "project", "p", nil, "Project ids (repeatable; default all planning projects)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Commit the result as proposed allocations")
	return cmd
}
