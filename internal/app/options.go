package service

import (
	"time"

	"github.com/okian/mapcheck/internal/adapters/debugfiles"
	"github.com/okian/mapcheck/internal/config"
	"github.com/okian/mapcheck/internal/domain/proguard"
	"github.com/okian/mapcheck/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the check queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithInFlightLimit caps events being checked at once. 0 means unbounded.
func WithInFlightLimit(limit int) Option {
	return func(s *Service) {
		if limit >= 0 {
			s.inflightLimit = limit
		}
	}
}

// WithResultTTL sets how long stored diagnoses are kept.
func WithResultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resultTTL = ttl
		}
	}
}

// WithFeatures enables organization features for every check.
func WithFeatures(features ...string) Option {
	return func(s *Service) {
		s.features = append(s.features, features...)
	}
}

// WithDocsURL sets the link of the incorrectly-configured-plugin diagnostic.
func WithDocsURL(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.docsURL = url
		}
	}
}

// WithDatabase selects the debug-file store opened on Start.
func WithDatabase(driver, dsn string) Option {
	return func(s *Service) {
		if driver != "" && dsn != "" {
			s.driver, s.dsn = driver, dsn
		}
	}
}

// WithDebugFileStore uses an already open store instead of WithDatabase.
// The service closes it on Stop.
func WithDebugFileStore(store debugfiles.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.debugFiles = store
		}
	}
}

// WithRemoteRegistry answers mapping lookups from a remote dsyms API
// instead of the local store.
func WithRemoteRegistry(url, token string, timeout time.Duration) Option {
	return func(s *Service) {
		s.remoteURL, s.remoteToken, s.remoteTimeout = url, token, timeout
	}
}

// WithLookup overrides the mapping lookup entirely.
func WithLookup(l proguard.Lookup) Option {
	return func(s *Service) {
		if l != nil {
			s.lookup = l
		}
	}
}

// WithShutdownTimeout bounds how long Run waits for workers to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig applies every service setting of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		for _, opt := range []Option{
			WithWorkerCount(cfg.WorkerCount),
			WithQueueSize(cfg.QueueSize),
			WithInFlightLimit(cfg.InFlightLimit),
			WithResultTTL(cfg.ResultTTL),
			WithFeatures(cfg.Features...),
			WithDocsURL(cfg.DocsURL),
			WithDatabase(cfg.DebugFiles.Driver, cfg.DebugFiles.DSN),
			WithShutdownTimeout(cfg.ShutdownTimeout),
		} {
			opt(s)
		}
		if cfg.DebugFiles.RemoteURL != "" {
			WithRemoteRegistry(cfg.DebugFiles.RemoteURL, cfg.DebugFiles.Token, cfg.DebugFiles.Timeout)(s)
		}
	}
}
