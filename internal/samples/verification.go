package samples

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/okian/mapcheck/internal/adapters/repository"
	"github.com/okian/mapcheck/pkg/logger"
)

// verifyResults polls every sample's stored diagnosis until it is done or
// the wait timeout passes, and compares the diagnosis kinds with the
// expected ones.
func verifyResults(ctx context.Context, config *Config, samples []Sample, stats *Stats) error {
	logger.Get().Info(ctx, "verifying diagnoses", logger.Int("events", len(samples)))

	client := newHTTPClient(config.Timeout)
	deadline := time.Now().Add(config.WaitTimeout)
	pending := make([]*Sample, 0, len(samples))
	for i := range samples {
		pending = append(pending, &samples[i])
	}

	for len(pending) > 0 {
		next := pending[:0]
		for _, s := range pending {
			res, done, err := fetchResult(ctx, client, config, s.Event.ID)
			if err != nil {
				return err
			}
			if !done {
				next = append(next, s)
				continue
			}
			got := make([]string, 0, len(res.Diagnostics))
			for _, d := range res.Diagnostics {
				got = append(got, d.Type)
			}
			if slices.Equal(got, s.Expect) {
				stats.Verified++
				continue
			}
			stats.Mismatched++
			if config.Verbose {
				logger.Get().Warn(ctx, "unexpected diagnosis",
					logger.String("event_id", s.Event.ID),
					logger.String("kind", string(s.Kind)),
					logger.Strings("expected", s.Expect),
					logger.Strings("got", got))
			}
		}
		pending = next
		if len(pending) == 0 || time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(PollInterval):
		}
	}

	stats.Unfinished = len(pending)
	if stats.Mismatched > 0 || stats.Unfinished > 0 {
		return fmt.Errorf("%d mismatched and %d unfinished of %d events",
			stats.Mismatched, stats.Unfinished, len(samples))
	}
	logger.Get().Info(ctx, "all diagnoses verified", logger.Int("verified", stats.Verified))
	return nil
}

// fetchResult reads the stored diagnosis. done is false while the result is
// missing or pending.
func fetchResult(ctx context.Context, client *HTTPClient, config *Config, eventID string) (repository.Result, bool, error) {
	var res repository.Result
	target := fmt.Sprintf("%s/api/0/projects/%s/%s/events/%s/diagnostics", config.BaseURL,
		url.PathEscape(config.Org), url.PathEscape(config.Project), url.PathEscape(eventID))
	resp, err := client.Get(ctx, target)
	if err != nil {
		return res, false, fmt.Errorf("fetching diagnosis of %s: %w", eventID, err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return res, false, fmt.Errorf("reading diagnosis of %s: %w", eventID, err)
	}

	switch resp.StatusCode {
	case StatusNotFound:
		return res, false, nil
	case StatusOK:
		if err := json.Unmarshal(body, &res); err != nil {
			return res, false, fmt.Errorf("decoding diagnosis of %s: %w", eventID, err)
		}
		return res, res.Status != repository.StatusPending, nil
	default:
		return res, false, unexpectedStatus(resp, body)
	}
}
