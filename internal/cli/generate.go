package cli

import (
	"fmt"
	"os"

	"github.com/okian/allot/internal/fixture"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var (
		opts fixture.GenerateOptions
		out  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a random, reproducible working set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := fixture.Generate(opts)
			if err != nil {
				return err
			}
			data, err := fixture.Marshal(ws)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d employees and %d projects to %s\n", len(ws.Employees), len(ws.Projects), out)
			return err
		},
	}
	cmd.Flags().IntVar(&opts.Employees, "employees", 20, "Number of employees")
	cmd.Flags().IntVar(&opts.Projects, "projects", 5, "Number of projects")
	cmd.Flags().IntVar(&opts.MaxSkills, "max-skills", 3, "Maximum skills per employee and requirements per project")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "Random seed")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}
