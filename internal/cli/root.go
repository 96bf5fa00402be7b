// Package cli implements allocctl, the offline planning command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/lifecycle"
	"github.com/okian/allot/internal/domain/optimizer"
	"github.com/okian/allot/internal/domain/planning"
	"github.com/okian/allot/internal/fixture"
	"github.com/okian/allot/pkg/logger"
	"github.com/spf13/cobra"
)

// Output formats.
const (
	outputJSON  = "json"
	outputTable = "table"
)

// NewRootCmd builds the allocctl command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "allocctl",
		Short: "Plan employee allocations from a YAML working set",
		Long: `allocctl runs the allocation engine offline against a YAML working set
of employees, projects and existing allocations.

Examples:
  # Generate a random working set
  allocctl generate --employees 40 --projects 8 --seed 1 -o team.yaml

  # Rank candidates for one project
  allocctl recommend --fixture team.yaml --project prj-1a2b3c4d

  # Solve every planning project and propose the result
  allocctl optimize --fixture team.yaml --apply

  # Load-test a server that was started with ALLOT_FIXTURE_PATH=team.yaml
  allocctl load --fixture team.yaml --url http://localhost:9080 --requests 5000`,
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	var logLevel string
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr())); err != nil {
			return err
		}
		return logger.SetLevelString(logLevel)
	}

	root.AddCommand(newRecommendCmd(), newOptimizeCmd(), newGenerateCmd(), newLoadCmd())
	return root
}

// engine is an in-memory engine seeded from a working set.
type engine struct {
	repo      *repository.MemoryStore
	lifecycle *lifecycle.Manager
	planner   *planning.Planner
}

type engineOptions struct {
	fixturePath string
	mode        string
	timeout     time.Duration
	limit       int
}

func newEngine(ctx context.Context, o engineOptions) (*engine, error) {
	ws, err := fixture.Load(o.fixturePath)
	if err != nil {
		return nil, err
	}
	repo := repository.NewMemoryStore()
	if err := ws.Seed(ctx, repo, time.Now().UTC()); err != nil {
		return nil, err
	}

	var lcOpts []lifecycle.Option
	if ws.HoursPerWeek > 0 {
		lcOpts = append(lcOpts, lifecycle.WithHoursPerWeek(ws.HoursPerWeek))
	}
	lc := lifecycle.New(repo, ledger.New(), lcOpts...)

	mode := optimizer.Mode(o.mode)
	switch mode {
	case optimizer.ModeAuto, optimizer.ModeExact, optimizer.ModeHeuristic:
	default:
		return nil, fmt.Errorf("unknown solver mode %q", o.mode)
	}
	solver := optimizer.New(optimizer.WithMode(mode), optimizer.WithTimeout(o.timeout))
	return &engine{
		repo:      repo,
		lifecycle: lc,
		planner:   planning.New(repo, lc, solver, planning.WithLimit(o.limit)),
	}, nil
}

func addEngineFlags(cmd *cobra.Command, o *engineOptions) {
	cmd.Flags().StringVarP(&o.fixturePath, "fixture", "f", "", "Working set YAML file (required)")
	cmd.Flags().StringVar(&o.mode, "mode", string(optimizer.ModeAuto), "Solver mode: auto, exact or heuristic")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 2*time.Second, "Exact search time budget")
	_ = cmd.MarkFlagRequired("fixture")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
