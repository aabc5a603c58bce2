package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/mapcheck/internal/samples"
	"github.com/okian/mapcheck/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumEvents   = 1000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultWait        = time.Minute
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	config := &samples.Config{}
	var (
		logFile   string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "sample-events",
		Short: "Submit synthetic Android events to mapcheck and verify their diagnoses",
		Long: `sample-events generates Android events with and without ProGuard images,
registers mappings for some of them, submits every event to a running mapcheck
service and checks the stored diagnoses against the expected ones.`,
		Example: `  sample-events
  sample-events --events 5000 --workers 16 --url http://localhost:8080`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			closeLog, err := samples.SetupLogging(logFile, logFormat)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTestTimeout)
			defer cancel()

			if _, err := samples.Run(ctx, config); err != nil {
				logger.Get().Error(ctx, "sample run failed", logger.Error(err))
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&config.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	flags.StringVar(&config.Org, "org", "sample-org", "Organization slug of the events")
	flags.StringVar(&config.Project, "project", "sample-android", "Project slug of the events")
	flags.IntVar(&config.NumEvents, "events", defaultNumEvents, "Number of events to generate and submit")
	flags.IntVar(&config.Workers, "workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
	flags.DurationVar(&config.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	flags.DurationVar(&config.WaitTimeout, "wait", defaultWait, "How long to wait for every diagnosis")
	flags.StringVar(&config.OutputFile, "output", "", "Write the generated samples to this file")
	flags.BoolVar(&config.Verbose, "verbose", false, "Log every rejected submission and mismatch")
	flags.StringVar(&logFile, "log", "", "Also write logs to this file")
	flags.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	return cmd
}
