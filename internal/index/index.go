// Package index provides an in-memory inverted keyword index over cached
// documentation, with deterministic relevance ranking and snippet extraction.
// Index contents are derived data: they are rebuilt from the cache store and
// never persisted on their own.
package index

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// DefaultSnippetLength bounds the text window returned with each result.
const DefaultSnippetLength = 200

// defaultLimit caps query results when the caller does not supply a limit.
const defaultLimit = 10

// stopwords are dropped during tokenization. Small on purpose; documentation
// queries are keyword-heavy and aggressive stopword lists hurt recall.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "with": {},
}

// Token is a normalized term together with its byte offset in the source text.
type Token struct {
	Term   string
	Offset int
}

// Tokenize lowercases text, splits it on non-alphanumeric boundaries, and
// drops stopwords. Offsets index into the original text.
func Tokenize(text string) []Token {
	var tokens []Token
	start := -1

	flush := func(end int) {
		if start < 0 {
			return
		}
		term := strings.ToLower(text[start:end])
		if _, stop := stopwords[term]; !stop {
			tokens = append(tokens, Token{Term: term, Offset: start})
		}
		start = -1
	}

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
	}
	flush(len(text))

	return tokens
}

// QueryTerms returns the distinct normalized terms of a query in first-seen
// order.
func QueryTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, tok := range Tokenize(query) {
		if _, dup := seen[tok.Term]; dup {
			continue
		}
		seen[tok.Term] = struct{}{}
		terms = append(terms, tok.Term)
	}
	return terms
}

// Result is one ranked search hit.
type Result struct {
	SourceID  string
	Score     float64
	Snippet   string
	Positions []int // byte offsets of matched terms in the source's text
}

// Inverted is a thread-safe inverted index mapping tokens to per-source
// position lists. Postings for a source are always replaced wholesale, so
// readers never observe a mix of old and new entries.
type Inverted struct {
	mu         sync.RWMutex
	postings   map[string]map[string][]int // term -> sourceID -> ascending byte offsets
	docTerms   map[string][]string         // sourceID -> terms present, for removal
	texts      map[string]string           // sourceID -> indexed text, for snippets
	snippetLen int
}

// New creates an empty index. snippetLen bounds result snippets; values <= 0
// select the default.
func New(snippetLen int) *Inverted {
	if snippetLen <= 0 {
		snippetLen = DefaultSnippetLength
	}
	return &Inverted{
		postings:   make(map[string]map[string][]int),
		docTerms:   make(map[string][]string),
		texts:      make(map[string]string),
		snippetLen: snippetLen,
	}
}

// Index rebuilds the postings for a source from the given text, atomically
// replacing any prior postings for the same source.
func (ix *Inverted) Index(sourceID, text string) {
	positions := make(map[string][]int)
	for _, tok := range Tokenize(text) {
		positions[tok.Term] = append(positions[tok.Term], tok.Offset)
	}

	terms := make([]string, 0, len(positions))
	for term := range positions {
		terms = append(terms, term)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(sourceID)

	for term, pos := range positions {
		bySource, ok := ix.postings[term]
		if !ok {
			bySource = make(map[string][]int)
			ix.postings[term] = bySource
		}
		bySource[sourceID] = pos
	}
	ix.docTerms[sourceID] = terms
	ix.texts[sourceID] = text
}

// Remove deletes all postings for a source. Removing an unindexed source is
// a no-op.
func (ix *Inverted) Remove(sourceID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(sourceID)
}

func (ix *Inverted) removeLocked(sourceID string) {
	for _, term := range ix.docTerms[sourceID] {
		bySource := ix.postings[term]
		delete(bySource, sourceID)
		if len(bySource) == 0 {
			delete(ix.postings, term)
		}
	}
	delete(ix.docTerms, sourceID)
	delete(ix.texts, sourceID)
}

// Reset drops every posting.
func (ix *Inverted) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.postings = make(map[string]map[string][]int)
	ix.docTerms = make(map[string][]string)
	ix.texts = make(map[string]string)
}

// Count returns the number of indexed sources.
func (ix *Inverted) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docTerms)
}

// HasSource reports whether the source has postings in the index.
func (ix *Inverted) HasSource(sourceID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.docTerms[sourceID]
	return ok
}

// Positions returns the byte offsets of a term within a source's indexed
// text, or nil if absent.
func (ix *Inverted) Positions(sourceID, term string) []int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	pos, ok := ix.postings[strings.ToLower(term)][sourceID]
	if !ok {
		return nil
	}
	out := make([]int, len(pos))
	copy(out, pos)
	return out
}

// candidate accumulates per-source match statistics during a query.
type candidate struct {
	sourceID  string
	distinct  int
	tf        int
	first     int
	positions []int
}

// Query tokenizes the query and returns up to limit results ranked by
// distinct matched terms, then total term frequency, then source id. A query
// with no matching terms returns an empty slice.
func (ix *Inverted) Query(query string, limit int) []Result {
	if limit <= 0 {
		limit = defaultLimit
	}

	terms := QueryTerms(query)
	if len(terms) == 0 {
		return []Result{}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bySource := make(map[string]*candidate)
	for _, term := range terms {
		for sourceID, pos := range ix.postings[term] {
			c, ok := bySource[sourceID]
			if !ok {
				c = &candidate{sourceID: sourceID, first: pos[0]}
				bySource[sourceID] = c
			}
			c.distinct++
			c.tf += len(pos)
			c.positions = append(c.positions, pos...)
			if pos[0] < c.first {
				c.first = pos[0]
			}
		}
	}

	candidates := make([]*candidate, 0, len(bySource))
	for _, c := range bySource {
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.distinct != b.distinct {
			return a.distinct > b.distinct
		}
		if a.tf != b.tf {
			return a.tf > b.tf
		}
		return a.sourceID < b.sourceID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		sort.Ints(c.positions)
		results = append(results, Result{
			SourceID: c.sourceID,
			// The fractional term is strictly below 1, so ordering stays
			// distinct-count first, total frequency second.
			Score:     float64(c.distinct) + float64(c.tf)/float64(c.tf+1),
			Snippet:   snippet(ix.texts[c.sourceID], c.first, ix.snippetLen),
			Positions: c.positions,
		})
	}

	return results
}

// snippet returns a window of at most maxLen bytes centered on the first
// match, trimmed to word boundaries with ellipses marking truncation.
func snippet(text string, center, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	start := center - maxLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(text) {
		end = len(text)
		start = end - maxLen
		if start < 0 {
			start = 0
		}
	}

	// The window is computed in bytes; snap both bounds to rune starts so a
	// cut never splits a multi-byte sequence.
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	out := text[start:end]

	if start > 0 {
		if idx := strings.Index(out, " "); idx > 0 {
			out = "..." + out[idx+1:]
		}
	}
	if end < len(text) {
		if idx := strings.LastIndex(out, " "); idx > 0 {
			out = out[:idx] + "..."
		}
	}

	return out
}
