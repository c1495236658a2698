package notion

import (
	"context"
	"fmt"
	"time"

	"github.com/signal23/signal23-ai/internal/document"
)

// PageRef identifies one loadable page: its ID plus the revision fingerprint
// the document cache keys on. Notion bumps last_edited_time on every edit,
// so it is a natural content fingerprint available before the expensive
// block fetch.
type PageRef struct {
	ID          string
	Title       string
	URL         string
	Fingerprint string
}

// Loader implements document.Loader on top of the Notion client. Load proper
// is the expensive call the document cache exists to amortize.
type Loader struct {
	client *Client
}

// NewLoader creates a loader over an initialized client.
func NewLoader(client *Client) *Loader {
	return &Loader{client: client}
}

// ListPages enumerates every accessible page as a PageRef. This is the cheap
// listing call; content is not fetched.
func (l *Loader) ListPages(ctx context.Context) ([]PageRef, error) {
	pages, err := l.client.Search(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing notion pages: %w", err)
	}

	refs := make([]PageRef, 0, len(pages))
	for _, page := range pages {
		refs = append(refs, PageRef{
			ID:          page.ID,
			Title:       ExtractPageTitle(&page),
			URL:         page.URL,
			Fingerprint: page.LastEditedTime.UTC().Format(time.RFC3339Nano),
		})
	}
	return refs, nil
}

// Load fetches a page's blocks and flattens them to raw text. Not-found and
// connectivity errors propagate to the caller unmodified in meaning; the
// document cache never stores a failure.
func (l *Loader) Load(ctx context.Context, pageID string) (document.Raw, error) {
	page, err := l.client.GetPage(ctx, pageID)
	if err != nil {
		return document.Raw{}, err
	}

	blocks, err := l.client.GetBlockChildren(ctx, pageID)
	if err != nil {
		return document.Raw{}, err
	}

	return document.Raw{
		Content: ExtractText(blocks),
		Metadata: map[string]string{
			"source_type":      "notion",
			"page_id":          page.ID,
			"page_title":       ExtractPageTitle(page),
			"page_url":         page.URL,
			"last_edited_time": page.LastEditedTime.UTC().Format(time.RFC3339),
		},
	}, nil
}
