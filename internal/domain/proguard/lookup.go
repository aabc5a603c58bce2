package proguard

import (
	"context"
	"slices"
)

// FeatureAndroidMappings restricts mapping lookups to native debug formats.
const FeatureAndroidMappings = "android-mappings"

// androidMappingFormats is the format filter sent while the
// android-mappings feature is enabled.
var androidMappingFormats = []string{"breakpad", "macho", "elf", "pe", "pdb", "sourcebundle"}

// Scope identifies the organization and project an event belongs to.
type Scope struct {
	OrgID       string   `json:"orgId,omitempty"`
	OrgSlug     string   `json:"orgSlug"`
	ProjectSlug string   `json:"projectSlug"`
	Platform    string   `json:"platform,omitempty"`
	Features    []string `json:"features,omitempty"`
}

// HasFeature reports whether the organization has feature enabled.
func (s Scope) HasFeature(feature string) bool {
	return slices.Contains(s.Features, feature)
}

// LookupRequest asks the debug-file registry for files matching Query.
// A nil FileFormats means no format filter.
type LookupRequest struct {
	ProjectOwner string
	Project      string
	Query        string
	FileFormats  []string
}

// Outcome classifies a lookup.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeFailed:
		return "failed"
	default:
		return "not_found"
	}
}

// LookupResult is the explicit result of a registry lookup. Err is set only
// for OutcomeFailed.
type LookupResult struct {
	Outcome Outcome
	Count   int
	Err     error
}

// Found reports count matching files. A zero count is treated as not found.
func Found(count int) LookupResult {
	if count <= 0 {
		return NotFound()
	}
	return LookupResult{Outcome: OutcomeFound, Count: count}
}

// NotFound reports an empty or absent result.
func NotFound() LookupResult { return LookupResult{Outcome: OutcomeNotFound} }

// Failed reports a lookup that could not complete.
func Failed(err error) LookupResult {
	if err == nil {
		err = ErrLookupFailed
	}
	return LookupResult{Outcome: OutcomeFailed, Err: err}
}

// Lookup queries the debug-file registry.
type Lookup interface {
	LookupDebugFiles(ctx context.Context, req LookupRequest) LookupResult
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, req LookupRequest) LookupResult

// LookupDebugFiles calls f.
func (f LookupFunc) LookupDebugFiles(ctx context.Context, req LookupRequest) LookupResult {
	return f(ctx, req)
}

// Reporter receives errors the checker swallows.
type Reporter interface {
	Capture(ctx context.Context, err error)
}

type nopReporter struct{}

func (nopReporter) Capture(context.Context, error) {}
