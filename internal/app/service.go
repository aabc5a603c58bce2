// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/okian/mapcheck/internal/adapters/debugfiles"
	"github.com/okian/mapcheck/internal/adapters/mq/queue"
	"github.com/okian/mapcheck/internal/adapters/mq/worker"
	"github.com/okian/mapcheck/internal/adapters/repository"
	"github.com/okian/mapcheck/internal/adapters/telemetry"
	"github.com/okian/mapcheck/internal/domain/dedupe"
	"github.com/okian/mapcheck/internal/domain/diagnostic"
	"github.com/okian/mapcheck/internal/domain/errorsummary"
	model "github.com/okian/mapcheck/internal/domain/model"
	"github.com/okian/mapcheck/internal/domain/proguard"
	"github.com/okian/mapcheck/pkg/logger"
	"github.com/okian/mapcheck/pkg/metrics"
)

// ErrNotStarted is returned by operations that need Start first.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the diagnosis system.
type Service struct {
	mu sync.RWMutex

	// Core components
	checker    *proguard.Checker
	lookup     proguard.Lookup
	debugFiles debugfiles.Store
	guard      dedupe.Guard
	results    repository.Store
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	reporter   *telemetry.Reporter
	analytics  *telemetry.Analytics

	// Configuration
	workerCount     int
	queueSize       int
	inflightLimit   int
	resultTTL       time.Duration
	shutdownTimeout time.Duration
	features        []string
	docsURL         string
	driver          string
	dsn             string
	remoteURL       string
	remoteToken     string
	remoteTimeout   time.Duration

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       10_000,
		inflightLimit:   50_000,
		resultTTL:       time.Hour,
		shutdownTimeout: 30 * time.Second,
		driver:          "sqlite",
		dsn:             "mapcheck.db",
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the stores and starts the worker pool. Calling it twice is a
// no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting mapcheck service...")

	if s.debugFiles == nil {
		store, err := debugfiles.Open(ctx, s.driver, s.dsn, debugfiles.WithLogger(s.logger.Named("debugfiles")))
		if err != nil {
			return fmt.Errorf("opening debug file store: %w", err)
		}
		s.debugFiles = store
	}

	if s.lookup == nil {
		if s.remoteURL != "" {
			s.lookup = debugfiles.NewClient(s.remoteURL,
				debugfiles.WithToken(s.remoteToken),
				debugfiles.WithTimeout(s.remoteTimeout),
				debugfiles.WithClientLogger(s.logger.Named("registry")))
			s.logger.Info(ctx, "using remote debug file registry", logger.String("url", s.remoteURL))
		} else {
			s.lookup = debugfiles.NewStoreLookup(s.debugFiles, s.logger.Named("lookup"))
		}
	}

	s.reporter = telemetry.NewReporter("checker", s.logger.Named("telemetry"))
	s.analytics = telemetry.NewAnalytics(s.logger.Named("analytics"))
	s.checker = proguard.NewChecker(
		proguard.WithLookup(s.lookup),
		proguard.WithReporter(s.reporter),
		proguard.WithFeatures(s.features...),
		proguard.WithDocsURL(s.docsURL),
		proguard.WithLogger(s.logger.Named("checker")),
	)

	s.guard = dedupe.NewInMemoryGuard(dedupe.WithMaxSize(s.inflightLimit))
	s.results = repository.NewMemoryStore(ctx, repository.WithTTL(s.resultTTL))
	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, s, s.results,
		worker.WithReleaser(s.guard),
		worker.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "mapcheck service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("inflightLimit", s.inflightLimit),
		logger.Strings("features", s.features),
	)
	return nil
}

// Shutdown drains the workers and closes the stores.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping mapcheck service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.results.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing result store: %w", err))
	}
	if err := s.debugFiles.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing debug file store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "mapcheck service stopped")
	return errors.Join(errs...)
}

// Stop shuts the service down with the configured timeout.
func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil && s.logger != nil {
		s.logger.Error(ctx, "shutdown failed", logger.Error(err))
	}
}

// Diagnose checks event, builds its error banner and records the banner
// analytics event when the event has errors of its own.
func (s *Service) Diagnose(ctx context.Context, scope proguard.Scope, event *model.Event) ([]diagnostic.Diagnostic, errorsummary.Banner) {
	diags := s.checker.Check(ctx, scope, event)
	banner := errorsummary.BuildBanner(event, diags)
	if props, ok := errorsummary.BannerViewedProps(scope.OrgID, scope.Platform, event); ok {
		s.analytics.Record(ctx, errorsummary.EventBannerViewed, props)
	}
	return diags, banner
}

// TryBegin marks the event under key as in flight.
func (s *Service) TryBegin(ctx context.Context, key string) error {
	err := s.guard.TryBegin(ctx, key)
	if errors.Is(err, dedupe.ErrInFlight) {
		metrics.RecordInFlightDuplicate()
		s.logger.Debug(ctx, "event already in flight", logger.String("key", key))
	}
	return err
}

// Done releases key.
func (s *Service) Done(ctx context.Context, key string) {
	s.guard.Done(ctx, key)
}

// Size returns the number of events in flight.
func (s *Service) Size() int64 {
	if s.guard == nil {
		return 0
	}
	return s.guard.Size()
}

// Oldest returns the age of the longest running check.
func (s *Service) Oldest() time.Duration {
	if s.guard == nil {
		return 0
	}
	return s.guard.Oldest()
}

// NextRevision issues the revision of the next check of the event under key.
func (s *Service) NextRevision(ctx context.Context, key string) int64 {
	return s.results.NextRevision(ctx, key)
}

// Enqueue records the job as pending and queues it. When the queue refuses
// the job the pending record becomes a failed one.
func (s *Service) Enqueue(ctx context.Context, job queue.CheckJob) bool { //nolint:gocritic // hugeParam: jobs travel by value
	pending := repository.Result{
		Owner:       job.Scope.OrgSlug,
		Project:     job.Scope.ProjectSlug,
		EventID:     job.Event.ID,
		Revision:    job.Revision,
		Status:      repository.StatusPending,
		Diagnostics: []model.EventError{},
		CheckedAt:   job.EnqueuedAt,
	}
	if _, err := s.results.Put(ctx, pending); err != nil {
		s.logger.Warn(ctx, "could not record pending diagnosis", logger.String("event_id", job.Event.ID), logger.Error(err))
	}

	if !s.queue.Enqueue(ctx, job) {
		pending.Status = repository.StatusFailed
		pending.Error = "check queue is full"
		_, _ = s.results.Put(ctx, pending)
		return false
	}
	s.logger.Debug(ctx, "queued check",
		logger.String("event_id", job.Event.ID),
		logger.Int("revision", int(job.Revision)))
	return true
}

// GetResult returns the latest stored diagnosis of the event under key.
func (s *Service) GetResult(ctx context.Context, key string) (repository.Result, error) {
	return s.results.Get(ctx, key)
}

// CreateDebugFile registers a debug file in the local store.
func (s *Service) CreateDebugFile(ctx context.Context, f debugfiles.DebugFile) (debugfiles.DebugFile, error) {
	created, err := s.debugFiles.Create(ctx, f)
	if err == nil {
		s.logger.Info(ctx, "debug file registered",
			logger.String("project", f.ProjectOwner+"/"+f.Project),
			logger.String("uuid", created.UUID),
			logger.String("symbol_type", created.SymbolType))
	}
	return created, err
}

// FindDebugFiles queries the local store.
func (s *Service) FindDebugFiles(ctx context.Context, q debugfiles.Query) ([]debugfiles.DebugFile, error) {
	return s.debugFiles.Find(ctx, q)
}

// DeleteDebugFile removes a file from the local store.
func (s *Service) DeleteDebugFile(ctx context.Context, ref debugfiles.ProjectRef, id string) error {
	return s.debugFiles.Delete(ctx, ref, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"inflightLimit": s.inflightLimit,
		"features":      s.features,
	}
	if !s.started {
		return stats
	}

	queueLen := s.queue.Len(ctx)
	stats["uptime"] = strings.TrimSpace(humanize.RelTime(s.startedAt, time.Now(), "", ""))
	stats["queueLength"] = queueLen
	stats["inFlight"] = s.guard.Size()
	stats["oldestInFlight"] = s.guard.Oldest().String()
	stats["resultsStored"] = s.results.Count(ctx)
	stats["processed"] = s.pool.Processed()
	stats["recentErrors"] = s.reporter.Recent()
	stats["analytics"] = s.analytics.Counts()
	if n, err := s.debugFiles.Count(ctx); err == nil {
		stats["debugFiles"] = n
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateQueueUtilization(float64(queueLen) / float64(s.queue.Cap()))
	metrics.UpdateWorkerCount(s.pool.Size())
	return stats
}
