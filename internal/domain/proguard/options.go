package proguard

import (
	"github.com/okian/mapcheck/pkg/logger"
)

// Option applies a configuration option to the Checker.
type Option func(*Checker)

// WithLookup sets the debug-file registry used to resolve mapping uuids.
func WithLookup(lookup Lookup) Option {
	return func(c *Checker) {
		if lookup != nil {
			c.lookup = lookup
		}
	}
}

// WithThreadSelector replaces the best-thread strategy.
func WithThreadSelector(sel ThreadSelector) Option {
	return func(c *Checker) {
		if sel != nil {
			c.selectThread = sel
		}
	}
}

// WithExceptionExtractor replaces the thread exception extraction.
func WithExceptionExtractor(ext ExceptionExtractor) Option {
	return func(c *Checker) {
		if ext != nil {
			c.extractException = ext
		}
	}
}

// WithReporter sets where swallowed lookup errors are sent.
func WithReporter(r Reporter) Option {
	return func(c *Checker) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithFeatures enables features for every scope, on top of the scope's own.
func WithFeatures(features ...string) Option {
	return func(c *Checker) {
		c.features = append(c.features, features...)
	}
}

// WithDocsURL overrides the setup guide linked by plugin diagnostics.
func WithDocsURL(url string) Option {
	return func(c *Checker) {
		if url != "" {
			c.docsURL = url
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.log = l
		}
	}
}
