package cli

import (
	"runtime"
	"time"

	"github.com/okian/allot/internal/fixture"
	"github.com/okian/allot/internal/loadtest"
	"github.com/spf13/cobra"
)

func newLoadCmd() *cobra.Command {
	var (
		cfg         loadtest.Config
		fixturePath string
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Drive a running server and verify its answers",
		Long: `Send concurrent recommendation requests for the open projects of a working
set to a running allot server, optionally apply one optimization, then read
every employee's capacity back and check it for consistency.

The server must have been seeded with the same working set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := fixture.Load(fixturePath)
			if err != nil {
				return err
			}
			cfg.Set = set
			stats, runErr := loadtest.Run(cmd.Context(), cfg)
			if err := writeJSON(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&fixturePath, "fixture", "f", "", "Working set the server was seeded with (required)")
	cmd.Flags().StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	cmd.Flags().IntVar(&cfg.Requests, "requests", 1000, "Number of recommendation requests")
	cmd.Flags().IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "Number of concurrent workers")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	cmd.Flags().BoolVar(&cfg.Apply, "apply", false, "Apply one optimization after the recommendations")
	cmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log every failed request")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}
