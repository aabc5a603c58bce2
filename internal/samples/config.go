// Package samples generates synthetic Android events, submits them to a
// running mapcheck service and verifies the diagnoses it stores.
package samples

import (
	"time"

	model "github.com/okian/mapcheck/internal/domain/model"
)

// Config holds configuration for a sample run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Org         string        // Organization slug the samples belong to
	Project     string        // Project slug the samples belong to
	NumEvents   int           // Number of events to generate
	Workers     int           // Number of concurrent submitters
	Timeout     time.Duration // HTTP request timeout
	WaitTimeout time.Duration // How long to wait for all diagnoses
	OutputFile  string        // Output file for events, empty to skip
	Verbose     bool          // Log every mismatch
}

// Kind is the shape of a generated event.
type Kind string

const (
	KindMapped   Kind = "mapped"   // proguard image with a registered mapping
	KindUnmapped Kind = "unmapped" // proguard image without a mapping
	KindMinified Kind = "minified" // no image, obfuscated frames
	KindReadable Kind = "readable" // no image, readable frames
	KindReported Kind = "reported" // unmapped, but already flagged upstream
)

// Kinds lists every sample kind in generation order.
var Kinds = []Kind{KindMapped, KindUnmapped, KindMinified, KindReadable, KindReported}

// Sample is one generated event with the diagnoses it should receive.
type Sample struct {
	Kind        Kind        `json:"kind"`
	Event       model.Event `json:"event"`
	MappingUUID string      `json:"mappingUuid,omitempty"`
	Expect      []string    `json:"expect"`
}

// AckResponse represents the response from event submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Revision  int64  `json:"revision"`
}

// Stats holds run statistics.
type Stats struct {
	EventsGenerated  int
	MappingsUploaded int
	EventsSubmitted  int
	EventsAccepted   int
	EventsInFlight   int
	EventsFailed     int
	Verified         int
	Mismatched       int
	Unfinished       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
