// Package proguard decides whether an Android event's stack traces were left
// obfuscated by a missing or misconfigured ProGuard/R8 mapping.
package proguard

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/okian/mapcheck/internal/domain/diagnostic"
	"github.com/okian/mapcheck/internal/domain/minified"
	model "github.com/okian/mapcheck/internal/domain/model"
	"github.com/okian/mapcheck/internal/domain/threads"
	"github.com/okian/mapcheck/pkg/logger"
	"github.com/okian/mapcheck/pkg/metrics"
)

// ThreadSelector picks the thread that represents the event.
type ThreadSelector func(threads []model.Thread) *model.Thread

// ExceptionExtractor returns the exception values raised on a thread.
type ExceptionExtractor func(event *model.Event, thread *model.Thread) *model.ExceptionData

// Checker produces mapping diagnostics for events. It holds no per-event
// state and is safe for concurrent use.
type Checker struct {
	lookup           Lookup
	selectThread     ThreadSelector
	extractException ExceptionExtractor
	reporter         Reporter
	features         []string
	docsURL          string
	log              logger.Logger
}

// NewChecker creates a Checker. Without WithLookup every mapping lookup fails
// and is reported as a missing mapping.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		lookup: LookupFunc(func(context.Context, LookupRequest) LookupResult {
			return Failed(ErrNoLookup)
		}),
		selectThread:     threads.FindBestThread,
		extractException: threads.ThreadException,
		reporter:         nopReporter{},
		docsURL:          diagnostic.DefaultDocsURL,
		log:              logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns the diagnostics for event. The result is never nil and the
// event is never modified. Lookup failures are reported and folded into a
// missing-mapping diagnostic.
func (c *Checker) Check(ctx context.Context, scope Scope, event *model.Event) []diagnostic.Diagnostic {
	start := time.Now()
	out := []diagnostic.Diagnostic{}
	if event == nil {
		metrics.RecordCheckSkipped("no_event")
		return out
	}

	if event.HasError(string(diagnostic.KindMissingMapping)) {
		metrics.RecordCheckSkipped("already_reported")
		c.log.Debug(ctx, "mapping already reported upstream", logger.String("event_id", event.ID))
		return out
	}

	if image := proguardImage(event.DebugImages()); image != nil {
		if d := c.checkMapping(ctx, scope, event.ID, image.UUID); d != nil {
			out = append(out, d)
		}
	} else if c.hasMinifiedFrames(event) {
		out = append(out, diagnostic.IncorrectlyConfiguredPlugin{DocsURL: c.docsURL})
	}

	for _, kind := range diagnostic.Kinds(out) {
		metrics.RecordDiagnostic(string(kind))
	}
	metrics.RecordCheck(float64(time.Since(start).Milliseconds()))
	return out
}

func (c *Checker) checkMapping(ctx context.Context, scope Scope, eventID, uuid string) diagnostic.Diagnostic {
	req := LookupRequest{
		ProjectOwner: scope.OrgSlug,
		Project:      scope.ProjectSlug,
		Query:        uuid,
	}
	if c.featureEnabled(scope, FeatureAndroidMappings) {
		req.FileFormats = slices.Clone(androidMappingFormats)
	}

	start := time.Now()
	res := c.lookup.LookupDebugFiles(ctx, req)
	metrics.RecordLookup(res.Outcome.String(), float64(time.Since(start).Milliseconds()))

	switch res.Outcome {
	case OutcomeFound:
		return nil
	case OutcomeFailed:
		c.reporter.Capture(ctx, fmt.Errorf("lookup mapping %s for %s/%s: %w", uuid, scope.OrgSlug, scope.ProjectSlug, res.Err))
		c.log.Warn(ctx, "mapping lookup failed",
			logger.String("event_id", eventID),
			logger.String("mapping_uuid", uuid),
			logger.Error(res.Err))
		return diagnostic.MissingMapping{UUID: uuid, Cause: diagnostic.CauseLookupFailed}
	default:
		return diagnostic.MissingMapping{UUID: uuid, Cause: diagnostic.CauseNotFound}
	}
}

func (c *Checker) featureEnabled(scope Scope, feature string) bool {
	return scope.HasFeature(feature) || slices.Contains(c.features, feature)
}

// hasMinifiedFrames looks at the best thread's exceptions, then the thread's
// own stacktrace. Without threads every exception value is considered.
func (c *Checker) hasMinifiedFrames(event *model.Event) bool {
	best := c.selectThread(event.Threads())
	if best == nil {
		exc := event.Exception()
		if exc == nil {
			return false
		}
		return valuesMinified(exc.Values)
	}

	if exc := c.extractException(event, best); exc != nil && len(exc.Values) > 0 {
		return valuesMinified(exc.Values)
	}
	return framesMinified(model.FramesOf(best.Stacktrace))
}

func valuesMinified(values []model.ExceptionValue) bool {
	for _, v := range values {
		if framesMinified(model.FramesOf(v.Stacktrace)) {
			return true
		}
	}
	return false
}

func framesMinified(frames []model.Frame) bool {
	modules := make([]string, 0, len(frames))
	for _, f := range frames {
		modules = append(modules, f.Module)
	}
	return minified.AnyMinified(modules)
}

// proguardImage returns the first proguard image that carries a uuid.
func proguardImage(images []model.DebugImage) *model.DebugImage {
	for i := range images {
		if images[i].Type == model.ImageTypeProguard && images[i].UUID != "" {
			return &images[i]
		}
	}
	return nil
}
