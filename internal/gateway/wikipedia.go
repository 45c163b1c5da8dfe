package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Wikipedia looks up page summaries through the REST API:
// GET {base}/{title} → {"extract": "..."}.
type Wikipedia struct {
	client    *http.Client
	baseURL   string
	userAgent string
	timeout   time.Duration
}

// NewWikipedia creates a Wikipedia provider. An empty baseURL uses
// DefaultWikipediaURL.
func NewWikipedia(client *http.Client, baseURL, userAgent string, timeout time.Duration) *Wikipedia {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if baseURL == "" {
		baseURL = DefaultWikipediaURL
	}
	return &Wikipedia{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Name implements Provider.
func (w *Wikipedia) Name() string { return ProviderWikipedia }

// Lookup returns the page extract for query.
func (w *Wikipedia) Lookup(ctx context.Context, query string) (string, error) {
	title := strings.Join(strings.Fields(query), "_")
	if title == "" {
		return "", fmt.Errorf("%w: %s: empty query", ErrNotFound, ProviderWikipedia)
	}

	body, err := fetchJSON(ctx, w.client, ProviderWikipedia, w.baseURL+"/"+url.PathEscape(title), w.userAgent, w.timeout)
	if err != nil {
		return "", err
	}

	extract := strings.TrimSpace(gjson.GetBytes(body, "extract").String())
	if extract == "" {
		return "", fmt.Errorf("%w: %s: empty extract for %q", ErrNotFound, ProviderWikipedia, query)
	}
	return extract, nil
}
