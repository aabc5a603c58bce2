// Package diagnostic defines the closed set of problems the mapping checker
// can report and their display form.
package diagnostic

import (
	"fmt"

	model "github.com/okian/mapcheck/internal/domain/model"
)

// Kind is the wire tag of a diagnostic.
type Kind string

const (
	// KindMissingMapping means the event references a mapping file that is
	// not registered for the project.
	KindMissingMapping Kind = "proguard_missing_mapping"
	// KindIncorrectlyConfiguredPlugin means frames are obfuscated but no
	// mapping reference was attached to the event.
	KindIncorrectlyConfiguredPlugin Kind = "proguard_incorrectly_configured_plugin"
)

// DefaultDocsURL points at the Gradle plugin setup guide.
const DefaultDocsURL = "https://docs.sentry.io/platforms/android/proguard/#gradle"

// Cause explains why a missing mapping was reported. It is used for logs and
// metric labels and never leaves the process.
type Cause string

const (
	CauseNotFound     Cause = "not_found"
	CauseLookupFailed Cause = "lookup_failed"
)

// Diagnostic is implemented only by the variants of this package.
type Diagnostic interface {
	Kind() Kind
	Message() string
	Data() map[string]any
	sealed()
}

// MissingMapping is reported when no debug file matches the mapping uuid.
type MissingMapping struct {
	UUID  string
	Cause Cause
}

func (MissingMapping) Kind() Kind { return KindMissingMapping }

func (MissingMapping) Message() string { return "A proguard mapping file was missing." }

func (d MissingMapping) Data() map[string]any {
	return map[string]any{"mapping_uuid": d.UUID}
}

func (MissingMapping) sealed() {}

// IncorrectlyConfiguredPlugin is reported when minified frames appear without
// a mapping reference.
type IncorrectlyConfiguredPlugin struct {
	DocsURL string
}

func (IncorrectlyConfiguredPlugin) Kind() Kind { return KindIncorrectlyConfiguredPlugin }

func (d IncorrectlyConfiguredPlugin) Message() string {
	url := d.DocsURL
	if url == "" {
		url = DefaultDocsURL
	}
	return fmt.Sprintf("It seems that the Sentry Gradle Plugin (%s) was not correctly configured.", url)
}

func (IncorrectlyConfiguredPlugin) Data() map[string]any { return nil }

func (IncorrectlyConfiguredPlugin) sealed() {}

// ToEventError projects a diagnostic onto the {type, message, data} shape
// shared with pre-existing event errors.
func ToEventError(d Diagnostic) model.EventError {
	return model.EventError{
		Type:    string(d.Kind()),
		Message: d.Message(),
		Data:    d.Data(),
	}
}

// ToEventErrors projects a list, preserving order. It never returns nil.
func ToEventErrors(ds []Diagnostic) []model.EventError {
	out := make([]model.EventError, 0, len(ds))
	for _, d := range ds {
		out = append(out, ToEventError(d))
	}
	return out
}

// Kinds returns the kind of each diagnostic in order.
func Kinds(ds []Diagnostic) []Kind {
	out := make([]Kind, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Kind())
	}
	return out
}
