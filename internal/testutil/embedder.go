package testutil

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// Embedder is a deterministic ai.Embedder mock. Each input text maps to a
// stable vector derived from its content, so tests can assert both
// idempotence and per-text identity without a live model.
//
// The zero value is usable. Configure Err to simulate upstream failure, or
// Dimension to change the vector width (default 4).
type Embedder struct {
	Err       error // returned for the whole batch when set
	Dimension int

	mu     sync.Mutex
	calls  int
	texts  []string // every text ever sent, in request order
}

func (e *Embedder) Name() string { return "testutil-embedder" }

func (e *Embedder) Register(api.Registry) {}

// Embed returns one vector per input document, same order, same length.
func (e *Embedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	e.calls++
	for _, doc := range req.Input {
		e.texts = append(e.texts, docText(doc))
	}
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Err != nil {
		return nil, e.Err
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: e.Vector(docText(doc)),
		})
	}
	return resp, nil
}

// Vector returns the deterministic embedding this mock produces for text.
func (e *Embedder) Vector(text string) []float32 {
	dim := e.Dimension
	if dim <= 0 {
		dim = 4
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return vec
}

// Calls returns how many Embed requests were issued.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// EmbeddedTexts returns every text embedded so far, in request order.
func (e *Embedder) EmbeddedTexts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.texts))
	copy(out, e.texts)
	return out
}

func docText(doc *ai.Document) string {
	if doc == nil || len(doc.Content) == 0 {
		return ""
	}
	return doc.Content[0].Text
}
