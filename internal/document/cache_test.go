package document

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/signal23/signal23-ai/internal/chunk"
	"github.com/signal23/signal23-ai/internal/testutil"
)

// countingLoader serves fixed content and tracks invocations.
type countingLoader struct {
	mu      sync.Mutex
	calls   int
	content map[string]string
	err     error
}

func (l *countingLoader) Load(_ context.Context, docID string) (Raw, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()

	if l.err != nil {
		return Raw{}, l.err
	}
	return Raw{
		Content:  l.content[docID],
		Metadata: map[string]string{"source": "test"},
	}, nil
}

func (l *countingLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func newTestSplitter(t *testing.T) *chunk.Splitter {
	t.Helper()
	s, err := chunk.NewSplitter(20, 4, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGetOrLoadMissThenHit(t *testing.T) {
	c := NewCache(Config{Capacity: 10}, testutil.DiscardLogger())
	defer c.Close()
	loader := &countingLoader{content: map[string]string{"page-1": "some page body text"}}
	splitter := newTestSplitter(t)

	first, err := c.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	second, err := c.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter)
	if err != nil {
		t.Fatalf("GetOrLoad (cached): %v", err)
	}

	if loader.Calls() != 1 {
		t.Errorf("loader invoked %d times, want exactly 1", loader.Calls())
	}
	if len(first) != len(second) {
		t.Fatalf("hit returned %d chunks, miss returned %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between miss and hit", i)
		}
	}
}

func TestGetOrLoadReturnsDetachedSlice(t *testing.T) {
	c := NewCache(Config{Capacity: 10}, testutil.DiscardLogger())
	defer c.Close()
	loader := &countingLoader{content: map[string]string{"page-1": "some page body text"}}
	splitter := newTestSplitter(t)

	first, err := c.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	want := first[0].Text
	first[0].Text = "scribbled over"

	second, err := c.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter)
	if err != nil {
		t.Fatalf("GetOrLoad (cached): %v", err)
	}
	if second[0].Text != want {
		t.Errorf("cached chunk = %q after caller mutation, want %q", second[0].Text, want)
	}

	// The hit path must hand out a fresh slice too.
	second[0].Text = "scribbled again"
	third, err := c.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter)
	if err != nil {
		t.Fatal(err)
	}
	if third[0].Text != want {
		t.Errorf("cached chunk = %q after hit-path mutation, want %q", third[0].Text, want)
	}
}

func TestGetOrLoadNewFingerprintReloads(t *testing.T) {
	c := NewCache(Config{Capacity: 10}, testutil.DiscardLogger())
	defer c.Close()
	loader := &countingLoader{content: map[string]string{"page-1": "body"}}
	splitter := newTestSplitter(t)

	if _, err := c.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrLoad(context.Background(), "page-1", "rev-2", loader, splitter); err != nil {
		t.Fatal(err)
	}

	if loader.Calls() != 2 {
		t.Errorf("loader invoked %d times, want 2 (edit must invalidate)", loader.Calls())
	}
}

func TestGetOrLoadFailureNotCached(t *testing.T) {
	c := NewCache(Config{Capacity: 10}, testutil.DiscardLogger())
	defer c.Close()
	splitter := newTestSplitter(t)

	boom := errors.New("content source unreachable")
	loader := &countingLoader{err: boom, content: map[string]string{}}

	if _, err := c.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}

	// Same key must invoke the loader again: failures are never cached.
	loader.err = nil
	loader.content["page-1"] = "recovered"
	if _, err := c.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if loader.Calls() != 2 {
		t.Errorf("loader invoked %d times, want 2", loader.Calls())
	}
}

func TestGetOrLoadEmptyDocID(t *testing.T) {
	c := NewCache(Config{Capacity: 10}, testutil.DiscardLogger())
	defer c.Close()

	_, err := c.GetOrLoad(context.Background(), "", "rev", &countingLoader{}, newTestSplitter(t))
	if !errors.Is(err, ErrEmptyDocID) {
		t.Errorf("error = %v, want ErrEmptyDocID", err)
	}
}

func TestKeyDistinguishesRevisions(t *testing.T) {
	if Key("doc", "rev-1") == Key("doc", "rev-2") {
		t.Error("different fingerprints must produce different keys")
	}
	if Key("doc-a", "rev") == Key("doc-b", "rev") {
		t.Error("different documents must produce different keys")
	}
	// The separator prevents ambiguous concatenation.
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("key derivation is ambiguous across id/fingerprint boundary")
	}
}

func TestDocumentCachePersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	loader := &countingLoader{content: map[string]string{"page-1": "persisted body text"}}
	splitter := newTestSplitter(t)

	c := NewCache(Config{Capacity: 10, SnapshotPath: path}, testutil.DiscardLogger())
	if _, err := c.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter); err != nil {
		t.Fatal(err)
	}
	c.Close()

	restored := NewCache(Config{Capacity: 10, SnapshotPath: path}, testutil.DiscardLogger())
	defer restored.Close()
	if _, err := restored.GetOrLoad(context.Background(), "page-1", "rev-1", loader, splitter); err != nil {
		t.Fatal(err)
	}

	if loader.Calls() != 1 {
		t.Errorf("loader invoked %d times, want 1 (snapshot should serve the restart)", loader.Calls())
	}
}
