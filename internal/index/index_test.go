package index

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("RDMA over Converged-Ethernet (RoCE)")

	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}

	want := []string{"rdma", "over", "converged", "ethernet", "roce"}
	if len(terms) != len(want) {
		t.Fatalf("Token count mismatch: got %v, want %v", terms, want)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("Token %d mismatch: got %s, want %s", i, terms[i], want[i])
		}
	}
}

func TestTokenizeOffsetsPointIntoText(t *testing.T) {
	text := "queue pair state transitions"
	for _, tok := range Tokenize(text) {
		end := tok.Offset + len(tok.Term)
		if end > len(text) {
			t.Fatalf("Token %q offset %d out of range", tok.Term, tok.Offset)
		}
		if got := strings.ToLower(text[tok.Offset:end]); got != tok.Term {
			t.Errorf("Offset mismatch for %q: text has %q at %d", tok.Term, got, tok.Offset)
		}
	}
}

func TestTokenizeDropsStopwords(t *testing.T) {
	for _, tok := range Tokenize("the state of the queue is ready") {
		if tok.Term == "the" || tok.Term == "of" || tok.Term == "is" {
			t.Errorf("Stopword %q was not dropped", tok.Term)
		}
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	ix := New(0)
	results := ix.Query("completion queue", 10)
	if len(results) != 0 {
		t.Errorf("Expected empty results on empty index, got %d", len(results))
	}
}

func TestQueryNoMatchingTerms(t *testing.T) {
	ix := New(0)
	ix.Index("doca", "flow pipeline programming")

	results := ix.Query("kernel bypass", 10)
	if len(results) != 0 {
		t.Errorf("Expected empty results, got %d", len(results))
	}
}

func TestQueryRanksDistinctTermsFirst(t *testing.T) {
	ix := New(0)
	// A contains only "verbs"; B contains both "verbs" and "completion".
	ix.Index("a-doc", "verbs verbs verbs verbs usage")
	ix.Index("b-doc", "verbs api and completion queue handling")

	results := ix.Query("verbs completion", 10)
	if len(results) != 2 {
		t.Fatalf("Result count mismatch: got %d, want 2", len(results))
	}
	if results[0].SourceID != "b-doc" {
		t.Errorf("Expected b-doc first (matches more distinct terms), got %s", results[0].SourceID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("Score ordering violated: %f <= %f", results[0].Score, results[1].Score)
	}
}

func TestQueryTiesBrokenByTermFrequency(t *testing.T) {
	ix := New(0)
	ix.Index("sparse", "firmware update once")
	ix.Index("dense", "firmware update firmware tooling firmware")

	results := ix.Query("firmware", 10)
	if len(results) != 2 {
		t.Fatalf("Result count mismatch: got %d, want 2", len(results))
	}
	if results[0].SourceID != "dense" {
		t.Errorf("Expected dense first on term frequency, got %s", results[0].SourceID)
	}
}

func TestQueryFinalTieBrokenBySourceID(t *testing.T) {
	ix := New(0)
	ix.Index("zeta", "link aggregation")
	ix.Index("alpha", "link aggregation")

	results := ix.Query("link", 10)
	if len(results) != 2 {
		t.Fatalf("Result count mismatch: got %d, want 2", len(results))
	}
	if results[0].SourceID != "alpha" || results[1].SourceID != "zeta" {
		t.Errorf("Deterministic id tiebreak violated: got %s, %s", results[0].SourceID, results[1].SourceID)
	}
}

func TestQueryRespectsLimit(t *testing.T) {
	ix := New(0)
	ix.Index("a", "tuning guide")
	ix.Index("b", "tuning notes")
	ix.Index("c", "tuning tips")

	results := ix.Query("tuning", 2)
	if len(results) != 2 {
		t.Errorf("Limit not applied: got %d results", len(results))
	}
}

func TestQuerySnippetContainsMatch(t *testing.T) {
	filler := strings.Repeat("padding words before the match region appear here ", 20)
	text := filler + "interrupt moderation reduces CPU load substantially " + filler

	ix := New(120)
	ix.Index("tuning", text)

	results := ix.Query("moderation", 1)
	if len(results) != 1 {
		t.Fatalf("Expected one result, got %d", len(results))
	}
	if !strings.Contains(results[0].Snippet, "moderation") {
		t.Errorf("Snippet does not contain the matched term: %q", results[0].Snippet)
	}
	if len(results[0].Snippet) > 120+6 {
		t.Errorf("Snippet exceeds bound: %d bytes", len(results[0].Snippet))
	}
}

func TestQuerySnippetStaysValidUTF8(t *testing.T) {
	// Multi-byte text with no ASCII spaces, so the word-boundary trim cannot
	// repair a cut that lands inside a rune. The leading "x" misaligns the
	// window from the 3-byte rune grid.
	text := "x" + strings.Repeat("信頼性、", 40) + "latency" + strings.Repeat("、高帯域", 40)

	ix := New(24)
	ix.Index("jp-guide", text)

	results := ix.Query("latency", 1)
	if len(results) != 1 {
		t.Fatalf("Expected one result, got %d", len(results))
	}
	if !utf8.ValidString(results[0].Snippet) {
		t.Errorf("Snippet contains broken UTF-8: %q", results[0].Snippet)
	}
	if !strings.Contains(results[0].Snippet, "latency") {
		t.Errorf("Snippet does not contain the matched term: %q", results[0].Snippet)
	}
}

func TestQueryPositionsPointIntoCurrentText(t *testing.T) {
	ix := New(0)
	text := "send queue and receive queue sizes"
	ix.Index("qp", text)

	results := ix.Query("queue", 1)
	if len(results) != 1 {
		t.Fatalf("Expected one result, got %d", len(results))
	}
	for _, pos := range results[0].Positions {
		if pos < 0 || pos+len("queue") > len(text) {
			t.Fatalf("Position %d out of range", pos)
		}
		if text[pos:pos+len("queue")] != "queue" {
			t.Errorf("Position %d does not point at the term: %q", pos, text[pos:pos+5])
		}
	}
}

func TestReindexReplacesPostingsAtomically(t *testing.T) {
	ix := New(0)
	ix.Index("doca", "legacy telemetry counters")

	if got := ix.Positions("doca", "telemetry"); len(got) != 1 {
		t.Fatalf("Expected telemetry posting before reindex, got %v", got)
	}

	ix.Index("doca", "flow steering rules")

	if got := ix.Positions("doca", "telemetry"); got != nil {
		t.Errorf("Stale posting survived reindex: %v", got)
	}
	if got := ix.Positions("doca", "steering"); len(got) != 1 {
		t.Errorf("New posting missing after reindex: %v", got)
	}

	results := ix.Query("telemetry", 10)
	if len(results) != 0 {
		t.Errorf("Query found stale content after reindex: %v", results)
	}
}

func TestRemoveDeletesAllPostings(t *testing.T) {
	ix := New(0)
	ix.Index("vma", "socket acceleration library")
	ix.Index("rdma", "verbs programming")

	ix.Remove("vma")

	if ix.HasSource("vma") {
		t.Error("Source still present after Remove")
	}
	if len(ix.Query("acceleration", 10)) != 0 {
		t.Error("Removed source still matches queries")
	}
	if len(ix.Query("verbs", 10)) != 1 {
		t.Error("Unrelated source was affected by Remove")
	}

	// Removing again is a no-op.
	ix.Remove("vma")
}

func TestReset(t *testing.T) {
	ix := New(0)
	ix.Index("a", "some text")
	ix.Index("b", "other text")

	ix.Reset()

	if ix.Count() != 0 {
		t.Errorf("Count after Reset: got %d, want 0", ix.Count())
	}
	if len(ix.Query("text", 10)) != 0 {
		t.Error("Query returned results after Reset")
	}
}

func TestQueryTermsDeduplicates(t *testing.T) {
	terms := QueryTerms("queue queue QUEUE pair")
	if len(terms) != 2 {
		t.Fatalf("Expected 2 distinct terms, got %v", terms)
	}
	if terms[0] != "queue" || terms[1] != "pair" {
		t.Errorf("Term order mismatch: got %v", terms)
	}
}
