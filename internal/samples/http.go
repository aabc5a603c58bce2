package samples

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/mapcheck/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, target string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func unexpectedStatus(resp *http.Response, body []byte) error {
	preview := strings.TrimSpace(string(body))
	if len(preview) > maxErrorPreview {
		preview = preview[:maxErrorPreview]
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, preview)
}

func dsymsURL(config *Config) string {
	return fmt.Sprintf("%s/api/0/projects/%s/%s/files/dsyms/",
		config.BaseURL, url.PathEscape(config.Org), url.PathEscape(config.Project))
}

// uploadMappings registers the mapping of every sample that needs one.
func uploadMappings(ctx context.Context, config *Config, samples []Sample, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	target := dsymsURL(config)

	for i := range samples {
		if !samples[i].NeedsMapping() {
			continue
		}
		resp, err := client.Post(ctx, target, map[string]any{
			"uuid":       samples[i].MappingUUID,
			"objectName": "proguard-mapping",
			"symbolType": "proguard",
		})
		if err != nil {
			return fmt.Errorf("uploading mapping %s: %w", samples[i].MappingUUID, err)
		}
		body, err := readResponseBody(resp)
		if err != nil {
			return fmt.Errorf("reading upload response: %w", err)
		}
		if resp.StatusCode != StatusCreated {
			return fmt.Errorf("uploading mapping %s: %w", samples[i].MappingUUID, unexpectedStatus(resp, body))
		}
		stats.MappingsUploaded++
	}
	logger.Get().Info(ctx, "mappings uploaded", logger.Int("count", stats.MappingsUploaded))
	return nil
}

// submitEvents submits samples concurrently using a worker pool.
func submitEvents(ctx context.Context, config *Config, samples []Sample, stats *Stats) {
	workers := max(config.Workers, 1)
	logger.Get().Info(ctx, "submitting events",
		logger.Int("events", len(samples)),
		logger.Int("workers", workers))

	client := newHTTPClient(config.Timeout)
	target := config.BaseURL + "/api/0/events"

	var accepted, inFlight, failed, submitted atomic.Int64

	jobs := make(chan *Sample, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				submitted.Add(1)
				switch submitSingleEvent(ctx, client, target, config, s) {
				case "accepted":
					accepted.Add(1)
				case "in_flight":
					inFlight.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range samples {
			select {
			case <-ctx.Done():
				return
			case jobs <- &samples[i]:
			}
		}
	}()

	wg.Wait()

	stats.EventsSubmitted = int(submitted.Load())
	stats.EventsAccepted = int(accepted.Load())
	stats.EventsInFlight = int(inFlight.Load())
	stats.EventsFailed = int(failed.Load())

	logger.Get().Info(ctx, "event submission completed",
		logger.Int("accepted", stats.EventsAccepted),
		logger.Int("inFlight", stats.EventsInFlight),
		logger.Int("failed", stats.EventsFailed))
}

// submitSingleEvent submits one sample and returns the ack status.
func submitSingleEvent(ctx context.Context, client *HTTPClient, target string, config *Config, s *Sample) string {
	resp, err := client.Post(ctx, target, map[string]any{
		"orgSlug":     config.Org,
		"projectSlug": config.Project,
		"event":       s.Event,
	})
	if err != nil {
		return "failed"
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	switch resp.StatusCode {
	case StatusAccepted, StatusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err != nil {
			return "failed"
		}
		return ack.Status
	default:
		if config.Verbose {
			logger.Get().Warn(ctx, "submission rejected",
				logger.String("event_id", s.Event.ID),
				logger.Error(unexpectedStatus(resp, body)))
		}
		return "failed"
	}
}
