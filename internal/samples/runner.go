package samples

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/mapcheck/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes the complete sample run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting mapcheck sample run",
		logger.String("baseURL", config.BaseURL),
		logger.String("project", config.Org+"/"+config.Project),
		logger.Int("events", config.NumEvents),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	samples := Generate(config.NumEvents)
	stats.EventsGenerated = len(samples)

	if err := uploadMappings(ctx, config, samples, stats); err != nil {
		return stats, fmt.Errorf("mapping upload failed: %w", err)
	}

	submitEvents(ctx, config, samples, stats)
	if stats.EventsFailed > 0 {
		return stats, fmt.Errorf("%d of %d submissions failed", stats.EventsFailed, stats.EventsSubmitted)
	}

	verifyErr := verifyResults(ctx, config, samples, stats)

	if config.OutputFile != "" {
		if err := saveSamples(ctx, config.OutputFile, samples); err != nil {
			logger.Get().Warn(ctx, "failed to save samples to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verifyErr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verifyErr)
	}
	logger.Get().Info(ctx, "sample run completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("reading health response: %w", err)
	}
	// The service answers with its Prometheus metrics.
	if resp.StatusCode != StatusOK {
		return unexpectedStatus(resp, body)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveSamples writes the generated samples as indented JSON.
func saveSamples(ctx context.Context, filename string, samples []Sample) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal samples: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	logger.Get().Info(ctx, "samples saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var verifiedRate, eventsPerSecond float64
	if stats.EventsSubmitted > 0 {
		verifiedRate = float64(stats.Verified) / float64(stats.EventsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("mappingsUploaded", stats.MappingsUploaded),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsInFlight", stats.EventsInFlight),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("verified", stats.Verified),
		logger.Int("mismatched", stats.Mismatched),
		logger.Int("unfinished", stats.Unfinished),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("verifiedRate", verifiedRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
