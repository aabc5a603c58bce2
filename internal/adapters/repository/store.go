// Package repository keeps the latest diagnosis of each event.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/okian/mapcheck/internal/domain/errorsummary"
	model "github.com/okian/mapcheck/internal/domain/model"
)

// Status of a stored diagnosis.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Key identifies an event within its project; event ids are unique per
// project only.
func Key(owner, project, eventID string) string {
	return strings.Join([]string{owner, project, eventID}, "/")
}

// Result is the diagnosis of one event revision.
type Result struct {
	Owner       string               `json:"orgSlug"`
	Project     string               `json:"projectSlug"`
	EventID     string               `json:"eventId"`
	Revision    int64                `json:"revision"`
	Status      Status               `json:"status"`
	Diagnostics []model.EventError   `json:"diagnostics"`
	Banner      *errorsummary.Banner `json:"banner,omitempty"`
	Error       string               `json:"error,omitempty"`
	CheckedAt   time.Time            `json:"checkedAt"`
}

// Key returns the store key of r.
func (r *Result) Key() string {
	return Key(r.Owner, r.Project, r.EventID)
}

// Store provides read/write access to diagnosis results.
type Store interface {
	// NextRevision issues a revision for key, larger than any issued before.
	NextRevision(ctx context.Context, key string) int64

	// Put stores r unless a newer revision is already stored. It returns
	// false when r was stale.
	Put(ctx context.Context, r Result) (bool, error)

	// Get returns the result stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (Result, error)

	// Count returns the number of stored results.
	Count(ctx context.Context) int

	Close() error
}
