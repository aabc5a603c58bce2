package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	app "github.com/okian/mapcheck/internal/app"
	"github.com/okian/mapcheck/internal/domain/diagnostic"
	"github.com/okian/mapcheck/internal/domain/errorsummary"
	model "github.com/okian/mapcheck/internal/domain/model"
	"github.com/okian/mapcheck/internal/domain/proguard"
)

type checkOutput struct {
	EventID     string              `json:"eventId"`
	Diagnostics []model.EventError  `json:"diagnostics"`
	Banner      errorsummary.Banner `json:"banner"`
}

func newCheckCmd() *cobra.Command {
	var scope proguard.Scope
	cmd := &cobra.Command{
		Use:   "check <event.json|->",
		Short: "Diagnose one event against the configured registry",
		Long: `check reads a normalized event from a file (or stdin with "-"), runs the
mapping diagnostics against the configured debug-file registry and prints the
diagnostics and the error banner as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := readEvent(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if scope.Platform == "" {
				scope.Platform = event.Platform
			}

			ctx := cmd.Context()
			cfg, l, err := setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			svc := app.New(app.WithConfig(cfg), app.WithLogger(l), app.WithWorkerCount(1))
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("failed to start service: %w", err)
			}
			defer svc.Stop()

			diags, banner := svc.Diagnose(ctx, scope, event)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(checkOutput{
				EventID:     event.ID,
				Diagnostics: diagnostic.ToEventErrors(diags),
				Banner:      banner,
			})
		},
	}
	cmd.Flags().StringVar(&scope.OrgID, "org-id", "", "numeric organization id used in analytics")
	cmd.Flags().StringVar(&scope.OrgSlug, "org", "", "organization slug owning the project")
	cmd.Flags().StringVar(&scope.ProjectSlug, "project", "", "project slug the event belongs to")
	cmd.Flags().StringVar(&scope.Platform, "platform", "", "platform, defaults to the event's")
	cmd.Flags().StringSliceVar(&scope.Features, "feature", nil, "organization feature to enable (repeatable)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func readEvent(stdin io.Reader, path string) (*model.Event, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading event: %w", err)
	}
	var event model.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return &event, nil
}
