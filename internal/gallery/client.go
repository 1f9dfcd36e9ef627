// Package gallery serves the site's media gallery from a headless CMS,
// fetched over GraphQL and cached in process.
package gallery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jparrish/portfolio-platform/pkg/logging"
)

const mediaQuery = `query {
  mediaItems(sort: "publishedAt:desc", pagination: { limit: 100 }) {
    data {
      id
      attributes { title caption url kind publishedAt }
    }
  }
}`

// MediaItem is one gallery entry.
type MediaItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Caption     string `json:"caption,omitempty"`
	URL         string `json:"url"`
	Kind        string `json:"kind"` // "image" or "video"
	PublishedAt string `json:"published_at,omitempty"`
}

// Client fetches media items from the CMS GraphQL endpoint, caching results
// for a short window so page loads do not fan out to the CMS.
type Client struct {
	endpoint   string
	token      string
	cacheTTL   time.Duration
	httpClient *http.Client
	logger     *logging.Logger

	mu        sync.Mutex
	cached    []MediaItem
	fetchedAt time.Time
}

// NewClient creates a gallery client. An empty endpoint yields an empty
// gallery rather than an error.
func NewClient(endpoint, token string, cacheTTL time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Client{
		endpoint:   endpoint,
		token:      token,
		cacheTTL:   cacheTTL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Items returns the gallery, from cache when fresh. A fetch failure with a
// stale cache serves the stale copy.
func (c *Client) Items(ctx context.Context) ([]MediaItem, error) {
	if c.endpoint == "" {
		return []MediaItem{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && time.Since(c.fetchedAt) < c.cacheTTL {
		return c.cached, nil
	}

	items, err := c.fetch(ctx)
	if err != nil {
		if c.cached != nil {
			c.logger.Warn("gallery fetch failed, serving stale cache", "error", err)
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = items
	c.fetchedAt = time.Now()
	return items, nil
}

type graphqlResponse struct {
	Data struct {
		MediaItems struct {
			Data []struct {
				ID         string `json:"id"`
				Attributes struct {
					Title       string `json:"title"`
					Caption     string `json:"caption"`
					URL         string `json:"url"`
					Kind        string `json:"kind"`
					PublishedAt string `json:"publishedAt"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"mediaItems"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) fetch(ctx context.Context) ([]MediaItem, error) {
	payload, err := json.Marshal(map[string]string{"query": mediaQuery})
	if err != nil {
		return nil, fmt.Errorf("gallery: encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gallery: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gallery: cms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gallery: cms returned %d: %s", resp.StatusCode, body)
	}

	var parsed graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("gallery: decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("gallery: cms error: %s", parsed.Errors[0].Message)
	}

	items := make([]MediaItem, 0, len(parsed.Data.MediaItems.Data))
	for _, d := range parsed.Data.MediaItems.Data {
		items = append(items, MediaItem{
			ID:          d.ID,
			Title:       d.Attributes.Title,
			Caption:     d.Attributes.Caption,
			URL:         d.Attributes.URL,
			Kind:        d.Attributes.Kind,
			PublishedAt: d.Attributes.PublishedAt,
		})
	}
	return items, nil
}
