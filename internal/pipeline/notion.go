package pipeline

import (
	"context"
	"fmt"

	"github.com/signal23/signal23-ai/internal/document"
	"github.com/signal23/signal23-ai/internal/notion"
)

// notionSource adapts notion.Loader to the Source interface.
type notionSource struct {
	loader *notion.Loader
}

// NewNotionSource wraps a Notion loader as a pipeline Source.
func NewNotionSource(loader *notion.Loader) Source {
	return &notionSource{loader: loader}
}

func (s *notionSource) ListPages(ctx context.Context) ([]Page, error) {
	refs, err := s.loader.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notion pages: %w", err)
	}

	pages := make([]Page, len(refs))
	for i, ref := range refs {
		pages[i] = Page{
			ID:          ref.ID,
			Title:       ref.Title,
			URL:         ref.URL,
			Fingerprint: ref.Fingerprint,
		}
	}
	return pages, nil
}

func (s *notionSource) Load(ctx context.Context, docID string) (document.Raw, error) {
	return s.loader.Load(ctx, docID)
}
