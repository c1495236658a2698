// Package chunk splits raw document text into overlapping windows sized for
// the embedding model. Window boundaries are measured in runes so multi-byte
// content never tears a character across chunks.
package chunk

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Defaults match the ingestion pipeline's embedding window.
const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

var (
	chunkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "s23_chunking_duration_seconds",
		Help:    "Wall time spent splitting one document into chunks.",
		Buckets: prometheus.DefBuckets,
	})

	chunksProduced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "s23_chunks_produced_total",
		Help: "Total chunks produced by the splitter.",
	})
)

// Chunk is one contiguous text window extracted from a document.
type Chunk struct {
	Text  string `json:"text"`
	Index int    `json:"index"` // position within the source document, 0-based
}

// Splitter produces fixed-size overlapping chunks. It is stateless and safe
// for concurrent use.
type Splitter struct {
	size    int
	overlap int
	logger  *slog.Logger
}

// NewSplitter creates a splitter with the given window size and overlap,
// both in runes. Overlap must be smaller than size or the split would never
// advance.
func NewSplitter(size, overlap int, logger *slog.Logger) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{size: size, overlap: overlap, logger: logger}, nil
}

// Split materializes the full ordered chunk sequence for text. The final
// overlap runes of each chunk equal the first overlap runes of its
// successor, so context spanning a boundary is retained on both sides.
// A document shorter than one window yields exactly one chunk holding the
// whole document. Empty input yields no chunks.
//
// Duration and chunk count are recorded regardless of whether the caller
// ultimately serves the result from cache, so operators can see the cost
// that caching avoids.
func (s *Splitter) Split(text string) []Chunk {
	start := time.Now()

	runes := []rune(text)
	var chunks []Chunk
	if len(runes) > 0 {
		step := s.size - s.overlap
		for pos := 0; ; pos += step {
			end := pos + s.size
			if end >= len(runes) {
				chunks = append(chunks, Chunk{Text: string(runes[pos:]), Index: len(chunks)})
				break
			}
			chunks = append(chunks, Chunk{Text: string(runes[pos:end]), Index: len(chunks)})
		}
	}

	elapsed := time.Since(start)
	chunkDuration.Observe(elapsed.Seconds())
	chunksProduced.Add(float64(len(chunks)))
	s.logger.Debug("split document",
		"runes", len(runes),
		"chunks", len(chunks),
		"duration", elapsed)

	return chunks
}

// Size returns the configured window size in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the configured overlap in runes.
func (s *Splitter) Overlap() int { return s.overlap }
