package debugfiles

import (
	"context"

	"github.com/okian/mapcheck/internal/domain/proguard"
	"github.com/okian/mapcheck/pkg/logger"
)

// Finder is the read side shared by Store and Client.
type Finder interface {
	Find(ctx context.Context, q Query) ([]DebugFile, error)
}

// StoreLookup answers checker lookups from a local store.
type StoreLookup struct {
	finder Finder
	log    logger.Logger
}

// NewStoreLookup wraps finder as a proguard.Lookup.
func NewStoreLookup(finder Finder, l logger.Logger) *StoreLookup {
	if l == nil {
		l = logger.Nop()
	}
	return &StoreLookup{finder: finder, log: l}
}

// LookupDebugFiles implements proguard.Lookup.
func (s *StoreLookup) LookupDebugFiles(ctx context.Context, req proguard.LookupRequest) proguard.LookupResult {
	return lookup(ctx, s.log, s.finder, req)
}

func lookup(ctx context.Context, log logger.Logger, finder Finder, req proguard.LookupRequest) proguard.LookupResult {
	files, err := finder.Find(ctx, Query{
		ProjectRef: ProjectRef{Owner: req.ProjectOwner, Project: req.Project},
		Text:       req.Query,
		Formats:    req.FileFormats,
	})
	if err != nil {
		return proguard.Failed(err)
	}
	log.Debug(ctx, "debug file lookup",
		logger.String("query", req.Query),
		logger.Int("matches", len(files)))
	return proguard.Found(len(files))
}
