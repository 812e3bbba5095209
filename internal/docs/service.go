// Package docs composes the source registry, fetcher, cache store, and
// search index into the operations exposed by the MCP tools. The service
// holds no request state of its own; everything observable lives in the
// cache store and the index.
package docs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/cache"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/fetcher"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/index"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/registry"
)

// ErrInvalidQuery is returned for empty or whitespace-only search queries.
var ErrInvalidQuery = errors.New("search query cannot be empty")

// Fetcher retrieves and extracts a documentation page. Satisfied by
// *fetcher.Client; tests substitute fakes.
type Fetcher interface {
	FetchDocument(ctx context.Context, url string) (*fetcher.Document, error)
}

// Service implements the five documentation operations.
type Service struct {
	registry   *registry.Registry
	fetcher    Fetcher
	store      *cache.Store
	index      *index.Inverted
	logger     *slog.Logger
	maxResults int

	// flight collapses concurrent fetches of the same source into one
	// network call.
	flight singleflight.Group

	// mu serializes the paired store and index mutations so a clear racing
	// a fetch cannot leave one updated without the other.
	mu sync.Mutex
}

// NewService wires the documentation service together.
func NewService(reg *registry.Registry, f Fetcher, store *cache.Store, ix *index.Inverted, logger *slog.Logger, maxResults int) *Service {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Service{
		registry:   reg,
		fetcher:    f,
		store:      store,
		index:      ix,
		logger:     logger,
		maxResults: maxResults,
	}
}

// FetchOutcome is the result of a Fetch operation.
type FetchOutcome struct {
	Document  *cache.Document
	FromCache bool
}

// fetchResult carries the singleflight return value.
type fetchResult struct {
	doc       *cache.Document
	fromCache bool
}

// Fetch returns the document for a source, fetching over the network on a
// cache miss (or when refresh is set). At most one fetch per source id is in
// flight at a time; concurrent callers share its result. A failed fetch
// leaves any previously cached version untouched.
func (s *Service) Fetch(ctx context.Context, sourceID string, refresh bool) (*FetchOutcome, error) {
	desc, err := s.registry.Resolve(sourceID)
	if err != nil {
		return nil, err
	}

	if !refresh {
		if doc, ok := s.store.Get(sourceID); ok {
			s.logger.Debug("Cache hit", "source", sourceID)
			return &FetchOutcome{Document: doc, FromCache: true}, nil
		}
	}

	v, err, shared := s.flight.Do(sourceID, func() (interface{}, error) {
		// A waiter that lost the cache race re-checks before fetching.
		if !refresh {
			if doc, ok := s.store.Get(sourceID); ok {
				return fetchResult{doc: doc, fromCache: true}, nil
			}
		}

		fetched, err := s.fetcher.FetchDocument(ctx, desc.URL)
		if err != nil {
			s.logger.Warn("Fetch failed", "source", sourceID, "url", desc.URL, "error", err)
			return nil, err
		}

		title := fetched.Title
		if title == "" {
			title = desc.Title
		}

		s.mu.Lock()
		doc, changed, err := s.store.Put(sourceID, desc.URL, title, fetched.Text)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if changed || !s.index.HasSource(sourceID) {
			s.index.Index(sourceID, doc.Text)
			s.logger.Info("Document stored and indexed", "source", sourceID, "hash", doc.ContentHash)
		} else {
			s.logger.Debug("Document unchanged, index untouched", "source", sourceID)
		}
		s.mu.Unlock()

		return fetchResult{doc: doc}, nil
	})
	if err != nil {
		return nil, err
	}

	res := v.(fetchResult)
	if shared {
		s.logger.Debug("Fetch shared with concurrent caller", "source", sourceID)
	}
	return &FetchOutcome{Document: res.doc, FromCache: res.fromCache}, nil
}

// Search runs a keyword query against the index. It never performs network
// I/O; sources that were never fetched simply produce no results.
func (s *Service) Search(query string, limit int) ([]index.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}
	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}
	return s.index.Query(query, limit), nil
}

// SearchSources runs a keyword query restricted to the given source ids.
// Every id must be registered; an empty list searches everything.
func (s *Service) SearchSources(query string, sourceIDs []string, limit int) ([]index.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}
	if len(sourceIDs) == 0 {
		return s.Search(query, limit)
	}
	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}

	allowed := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		if _, err := s.registry.Resolve(id); err != nil {
			return nil, err
		}
		allowed[id] = true
	}

	// Query wide, then filter: the index cannot rank a subset directly.
	results := s.index.Query(query, s.registry.Len())
	filtered := make([]index.Result, 0, limit)
	for _, r := range results {
		if !allowed[r.SourceID] {
			continue
		}
		filtered = append(filtered, r)
		if len(filtered) == limit {
			break
		}
	}
	return filtered, nil
}

// List returns every source descriptor in registration order.
func (s *Service) List() []registry.SourceDescriptor {
	return s.registry.List()
}

// OfficialLinks returns the registered sources grouped by category.
func (s *Service) OfficialLinks() []registry.CategoryGroup {
	return s.registry.GroupedByCategory()
}

// ClearCache removes the cached document and index postings for one source,
// or for all sources when sourceID is empty. Clearing an empty cache
// succeeds silently. An in-flight fetch for a cleared source still completes
// and stores its result.
func (s *Service) ClearCache(sourceID string) error {
	if sourceID == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.store.ClearAll(); err != nil {
			return err
		}
		s.index.Reset()
		s.logger.Info("Cleared all cached documents")
		return nil
	}

	if _, err := s.registry.Resolve(sourceID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Clear(sourceID); err != nil {
		return err
	}
	s.index.Remove(sourceID)
	s.logger.Info("Cleared cached document", "source", sourceID)
	return nil
}

// RebuildIndex re-indexes every live cached document and returns the number
// restored. Called at startup so search works across restarts without
// re-fetching.
func (s *Service) RebuildIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.store.Documents()
	for _, doc := range docs {
		s.index.Index(doc.SourceID, doc.Text)
	}
	s.logger.Info("Search index rebuilt from cache", "documents", len(docs))
	return len(docs)
}

// CachedCount returns the number of entries currently in the cache store.
func (s *Service) CachedCount() int {
	return s.store.Count()
}

// IsCached reports whether a live cached document exists for the source.
func (s *Service) IsCached(sourceID string) bool {
	_, ok := s.store.Get(sourceID)
	return ok
}
