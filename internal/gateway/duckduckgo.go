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

// DuckDuckGo queries the instant answer API and returns AbstractText,
// falling back to Definition.
type DuckDuckGo struct {
	client    *http.Client
	baseURL   string
	userAgent string
	timeout   time.Duration
}

// NewDuckDuckGo creates a DuckDuckGo provider. An empty baseURL uses
// DefaultDuckDuckGoURL.
func NewDuckDuckGo(client *http.Client, baseURL, userAgent string, timeout time.Duration) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if baseURL == "" {
		baseURL = DefaultDuckDuckGoURL
	}
	return &DuckDuckGo{
		client:    client,
		baseURL:   baseURL,
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Name implements Provider.
func (d *DuckDuckGo) Name() string { return ProviderDuckDuckGo }

// Lookup returns the instant answer abstract for query.
func (d *DuckDuckGo) Lookup(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("%w: %s: empty query", ErrNotFound, ProviderDuckDuckGo)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	body, err := fetchJSON(ctx, d.client, ProviderDuckDuckGo, d.baseURL+"?"+params.Encode(), d.userAgent, d.timeout)
	if err != nil {
		return "", err
	}

	for _, field := range []string{"AbstractText", "Definition"} {
		if text := strings.TrimSpace(gjson.GetBytes(body, field).String()); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: %s: no abstract for %q", ErrNotFound, ProviderDuckDuckGo, query)
}
