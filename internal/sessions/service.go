// Package sessions merges session indices from every enabled source behind
// a two-tier cache: a lightweight index for list views and on-demand
// details for opened sessions.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/DevArk-AI/devark/internal/cursordb"
	"github.com/DevArk-AI/devark/internal/pathfilter"
	"github.com/DevArk-AI/devark/internal/transcript"
	"github.com/DevArk-AI/devark/pkg/models"
)

// Source prefixes. Parsing the prefix is the only authoritative way to
// route a details lookup.
const (
	PrefixClaude = "claude"
	PrefixCursor = "cursor"
)

// Cache TTLs: the index is cheap and refreshes often; details are heavy.
const (
	IndexCacheTTL   = 60 * time.Second
	DetailsCacheTTL = 30 * time.Second
	cacheSize       = 128
)

// Filter narrows a session query.
type Filter struct {
	Since          time.Time
	Until          time.Time
	Sources        []string
	MinPromptCount int
	Limit          int
}

// key serialises the filter for cache lookups.
func (f Filter) key() string {
	return fmt.Sprintf("%d|%d|%s|%d|%d",
		f.Since.UnixMilli(), f.Until.UnixMilli(),
		strings.Join(f.Sources, ","), f.MinPromptCount, f.Limit)
}

// normalized applies defaults: MinPromptCount floors at 1 so empty sessions
// never surface.
func (f Filter) normalized() Filter {
	if f.MinPromptCount < 1 {
		f.MinPromptCount = 1
	}
	return f
}

// Service is the unified session index and loader.
type Service struct {
	claude *transcript.Reader
	cursor *cursordb.Reader
	filter *pathfilter.Filter

	indexCache   *expirable.LRU[string, []models.SessionIndex]
	detailsCache *expirable.LRU[string, *models.SessionDetails]
}

// New creates the service over both readers. Either reader may be nil when
// its source is disabled.
func New(claude *transcript.Reader, cursor *cursordb.Reader, filter *pathfilter.Filter) *Service {
	if filter == nil {
		filter = pathfilter.Default()
	}
	return &Service{
		claude:       claude,
		cursor:       cursor,
		filter:       filter,
		indexCache:   expirable.NewLRU[string, []models.SessionIndex](cacheSize, nil, IndexCacheTTL),
		detailsCache: expirable.NewLRU[string, *models.SessionDetails](cacheSize, nil, DetailsCacheTTL),
	}
}

// NamespaceSessionID prefixes a raw source ID.
func NamespaceSessionID(prefix, raw string) string {
	return prefix + "-" + raw
}

// ParseSessionID splits a namespaced ID into (sourcePrefix, raw). The
// prefix must be one of the registered sources.
func ParseSessionID(id string) (source, raw string, err error) {
	for _, prefix := range []string{PrefixClaude, PrefixCursor} {
		if strings.HasPrefix(id, prefix+"-") {
			return prefix, strings.TrimPrefix(id, prefix+"-"), nil
		}
	}
	return "", "", fmt.Errorf("unrecognised session id: %q", id)
}

// List returns the merged, filtered index, newest first. Results are cached
// per serialised filter for IndexCacheTTL.
func (s *Service) List(ctx context.Context, f Filter) ([]models.SessionIndex, error) {
	f = f.normalized()
	if cached, ok := s.indexCache.Get(f.key()); ok {
		return cached, nil
	}

	var merged []models.SessionIndex

	if s.claude != nil && s.sourceEnabled(f, models.SourceClaudeCode.ID) && s.claude.IsAvailable() {
		indices, err := s.claude.ReadSessionIndex(transcript.IndexOptions{Since: f.Since})
		if err != nil {
			log.Debug().Err(err).Msg("Claude index read failed")
		} else {
			for _, idx := range indices {
				idx.ID = NamespaceSessionID(PrefixClaude, idx.ID)
				merged = append(merged, idx)
			}
		}
	}

	if s.cursor != nil && s.sourceEnabled(f, models.SourceCursor.ID) && s.cursor.IsAvailable() {
		indices, err := s.cursor.SessionIndex(ctx, f.Since)
		if err != nil {
			if !cursordb.IsBusy(err) {
				log.Debug().Err(err).Msg("Cursor index read failed")
			}
		} else {
			for _, idx := range indices {
				idx.ID = NamespaceSessionID(PrefixCursor, idx.ID)
				merged = append(merged, idx)
			}
		}
	}

	filtered := merged[:0]
	for _, idx := range merged {
		if idx.PromptCount < f.MinPromptCount {
			continue
		}
		if !f.Until.IsZero() && idx.Timestamp.After(f.Until) {
			continue
		}
		if s.filter.ShouldIgnorePath(idx.ProjectPath) {
			continue
		}
		filtered = append(filtered, idx)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.After(filtered[j].Timestamp)
	})
	if f.Limit > 0 && len(filtered) > f.Limit {
		filtered = filtered[:f.Limit]
	}

	s.indexCache.Add(f.key(), filtered)
	return filtered, nil
}

// Details loads one session's heavy representation, routed by ID prefix.
func (s *Service) Details(ctx context.Context, id string) (*models.SessionDetails, error) {
	if cached, ok := s.detailsCache.Get(id); ok {
		return cached, nil
	}

	source, raw, err := ParseSessionID(id)
	if err != nil {
		return nil, err
	}

	var details *models.SessionDetails
	switch source {
	case PrefixClaude:
		if s.claude == nil {
			return nil, fmt.Errorf("claude source disabled")
		}
		details, err = s.claude.GetSessionDetails(raw)
	case PrefixCursor:
		if s.cursor == nil {
			return nil, fmt.Errorf("cursor source disabled")
		}
		details, err = s.cursor.SessionDetails(ctx, raw)
	}
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, nil
	}
	if s.filter.ShouldIgnorePath(details.ProjectPath) {
		return nil, nil
	}

	details.ID = id
	s.detailsCache.Add(id, details)
	return details, nil
}

// Invalidate drops both cache tiers. Called on write events: new prompt,
// new response, new goal.
func (s *Service) Invalidate() {
	s.indexCache.Purge()
	s.detailsCache.Purge()
}

func (s *Service) sourceEnabled(f Filter, sourceID string) bool {
	if len(f.Sources) == 0 {
		return true
	}
	for _, src := range f.Sources {
		if src == sourceID {
			return true
		}
	}
	return false
}
