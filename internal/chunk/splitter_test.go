package chunk

import (
	"strings"
	"testing"

	"github.com/signal23/signal23-ai/internal/testutil"
)

func TestNewSplitterValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid defaults", DefaultSize, DefaultOverlap, false},
		{"zero overlap", 100, 0, false},
		{"zero size", 0, 10, true},
		{"negative size", -1, 0, true},
		{"negative overlap", 100, -1, true},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSplitter(tt.size, tt.overlap, testutil.DiscardLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSplitter(%d, %d) error = %v, wantErr %v",
					tt.size, tt.overlap, err, tt.wantErr)
			}
		})
	}
}

func TestSplitShortDocumentIsSingleChunk(t *testing.T) {
	s, err := NewSplitter(100, 10, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}

	chunks := s.Split("tiny document")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want exactly 1", len(chunks))
	}
	if chunks[0].Text != "tiny document" {
		t.Errorf("chunk = %q, want the whole document", chunks[0].Text)
	}
	if chunks[0].Index != 0 {
		t.Errorf("Index = %d, want 0", chunks[0].Index)
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	s, err := NewSplitter(100, 10, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}

	if chunks := s.Split(""); len(chunks) != 0 {
		t.Errorf("got %d chunks for empty input, want 0", len(chunks))
	}
}

func TestSplitOverlapProperty(t *testing.T) {
	const size, overlap = 50, 10
	s, err := NewSplitter(size, overlap, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("abcdefghij", 23) // 230 runes, several windows
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want more than one", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		tail := []rune(chunks[i].Text)
		head := []rune(chunks[i+1].Text)
		if string(tail[len(tail)-overlap:]) != string(head[:overlap]) {
			t.Errorf("chunk %d tail does not match chunk %d head", i, i+1)
		}
	}
}

func TestSplitPreservesSourceOrderAndContent(t *testing.T) {
	const size, overlap = 40, 8
	s, err := NewSplitter(size, overlap, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("0123456789", 20)
	chunks := s.Split(text)

	// Reassembling the chunks minus their overlaps must reproduce the source.
	var b strings.Builder
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		runes := []rune(c.Text)
		if i == 0 {
			b.WriteString(c.Text)
		} else {
			b.WriteString(string(runes[overlap:]))
		}
	}
	if b.String() != text {
		t.Error("reassembled chunks do not reproduce the source text")
	}
}

func TestSplitMultiByteRunesNotTorn(t *testing.T) {
	s, err := NewSplitter(5, 2, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("日本語テキスト", 4)
	for i, c := range s.Split(text) {
		if strings.ContainsRune(c.Text, '�') {
			t.Errorf("chunk %d contains a replacement character: %q", i, c.Text)
		}
	}
}

func TestSplitChunkSizes(t *testing.T) {
	const size, overlap = 30, 5
	s, err := NewSplitter(size, overlap, testutil.DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}

	chunks := s.Split(strings.Repeat("x", 100))
	for i, c := range chunks[:len(chunks)-1] {
		if n := len([]rune(c.Text)); n != size {
			t.Errorf("chunk %d has %d runes, want %d", i, n, size)
		}
	}
	last := []rune(chunks[len(chunks)-1].Text)
	if len(last) == 0 || len(last) > size {
		t.Errorf("final chunk has %d runes, want 1..%d", len(last), size)
	}
}
