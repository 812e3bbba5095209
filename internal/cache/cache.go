// Package cache persists fetched documentation on disk, one JSON file per
// source, with TTL expiry and content-hash idempotence. The store survives
// process restarts; previously cached documents stay valid until their TTL
// lapses.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// fileVersion is the current on-disk format version.
	fileVersion = "1"

	dirPermissions  = 0755
	filePermissions = 0644
)

// Document is one cached documentation page. Documents are never mutated in
// place; a re-fetch supersedes the entry with a new value.
type Document struct {
	SourceID    string    `json:"source_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	Text        string    `json:"text"`
	ContentHash string    `json:"content_hash"`
	FetchedAt   time.Time `json:"fetched_at"`
	TTLSeconds  int       `json:"ttl_seconds"`
}

// Expired reports whether the document is past its TTL at the given time.
// A zero TTL means caching is disabled for the source, so the document is
// always considered expired.
func (d *Document) Expired(now time.Time) bool {
	if d.TTLSeconds <= 0 {
		return true
	}
	return now.Sub(d.FetchedAt) > time.Duration(d.TTLSeconds)*time.Second
}

// cacheFile is the on-disk envelope for a Document.
type cacheFile struct {
	Version  string    `json:"version"`
	Document *Document `json:"document"`
}

// Store is a filesystem-backed document cache with an in-memory map in
// front. Safe for concurrent use.
type Store struct {
	dir         string
	defaultTTL  time.Duration
	ttlOverride map[string]time.Duration
	logger      *slog.Logger

	now func() time.Time

	mu   sync.RWMutex
	docs map[string]*Document
}

// Open creates the cache directory if needed and loads any documents
// persisted by a previous run. Files that fail to decode are skipped with a
// warning rather than aborting startup.
func Open(dir string, defaultTTL time.Duration, ttlOverride map[string]time.Duration, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory cannot be empty")
	}

	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s := &Store{
		dir:         dir,
		defaultTTL:  defaultTTL,
		ttlOverride: ttlOverride,
		logger:      logger,
		now:         time.Now,
		docs:        make(map[string]*Document),
	}

	if err := s.loadAll(); err != nil {
		return nil, err
	}

	return s, nil
}

// loadAll restores cached documents from disk into the in-memory map,
// sweeping out entries that are expired under the current TTL settings.
func (s *Store) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := s.now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("Failed to read cache file, skipping", "file", entry.Name(), "error", err)
			continue
		}

		var cf cacheFile
		if err := json.Unmarshal(data, &cf); err != nil || cf.Version != fileVersion || cf.Document == nil || cf.Document.SourceID == "" {
			s.logger.Warn("Invalid cache file, skipping", "file", entry.Name())
			continue
		}

		// TTL is configuration, not document state: entries written under an
		// earlier setting live or die by the current one.
		doc := cf.Document
		doc.TTLSeconds = int(s.ttlFor(doc.SourceID) / time.Second)
		if doc.Expired(now) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("Failed to remove expired cache file", "file", entry.Name(), "error", err)
			}
			s.logger.Debug("Expired cache entry swept", "source", doc.SourceID)
			continue
		}

		s.docs[doc.SourceID] = doc
	}

	s.logger.Debug("Cache loaded", "dir", s.dir, "documents", len(s.docs))
	return nil
}

// ttlFor returns the TTL for a source, preferring a per-source override.
func (s *Store) ttlFor(sourceID string) time.Duration {
	if ttl, ok := s.ttlOverride[sourceID]; ok {
		return ttl
	}
	return s.defaultTTL
}

// filePath returns the cache file path for a source id.
func (s *Store) filePath(sourceID string) string {
	return filepath.Join(s.dir, filepath.Base(sourceID)+".json")
}

// Get returns the cached document for the source, or a miss when the source
// is absent or the entry has expired.
func (s *Store) Get(sourceID string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[sourceID]
	if !ok || doc.Expired(s.now()) {
		return nil, false
	}
	return doc, true
}

// Put stores extracted text for a source. When the content hash matches the
// existing entry, only the fetch timestamp is refreshed and changed is
// false, so callers can skip reindexing. Otherwise the entry is superseded
// by a new document and changed is true.
func (s *Store) Put(sourceID, url, title, text string) (doc *Document, changed bool, err error) {
	if sourceID == "" {
		return nil, false, fmt.Errorf("source id cannot be empty")
	}

	hash := ContentHash(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := s.ttlFor(sourceID)

	if cur, ok := s.docs[sourceID]; ok && cur.ContentHash == hash {
		refreshed := *cur
		refreshed.URL = url
		refreshed.Title = title
		refreshed.FetchedAt = s.now()
		refreshed.TTLSeconds = int(ttl / time.Second)

		if err := s.write(&refreshed); err != nil {
			return nil, false, err
		}
		s.docs[sourceID] = &refreshed

		s.logger.Debug("Cache refreshed, content unchanged", "source", sourceID, "hash", hash)
		return &refreshed, false, nil
	}

	doc = &Document{
		SourceID:    sourceID,
		URL:         url,
		Title:       title,
		Text:        text,
		ContentHash: hash,
		FetchedAt:   s.now(),
		TTLSeconds:  int(ttl / time.Second),
	}

	if err := s.write(doc); err != nil {
		return nil, false, err
	}
	s.docs[sourceID] = doc

	s.logger.Debug("Cache stored", "source", sourceID, "hash", hash, "size", len(text))
	return doc, true, nil
}

// write persists a document using the temp file + rename pattern so readers
// never observe a partially written file.
func (s *Store) write(doc *Document) error {
	data, err := json.MarshalIndent(&cacheFile{Version: fileVersion, Document: doc}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	target := s.filePath(doc.SourceID)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}

	f, err := os.Open(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to open temp cache file for sync: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync temp cache file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}

	return nil
}

// Clear removes the cached document for a source. Clearing an absent entry
// succeeds silently.
func (s *Store) Clear(sourceID string) error {
	if sourceID == "" {
		return fmt.Errorf("source id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, sourceID)
	if err := os.Remove(s.filePath(sourceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}

	s.logger.Debug("Cache cleared", "source", sourceID)
	return nil
}

// ClearAll removes every cached document and recreates the cache directory.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove cache directory: %w", err)
	}
	if err := os.MkdirAll(s.dir, dirPermissions); err != nil {
		return fmt.Errorf("failed to recreate cache directory: %w", err)
	}

	s.docs = make(map[string]*Document)
	s.logger.Debug("All cache entries cleared")
	return nil
}

// Documents returns all live (non-expired) cached documents, for index
// rehydration after restart.
func (s *Store) Documents() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	docs := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if !doc.Expired(now) {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Count returns the number of entries in the store, expired or not.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// ContentHash returns the deterministic hash of extracted text used for
// idempotence checks.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
