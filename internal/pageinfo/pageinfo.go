// Package pageinfo looks up page titles for tabs the browser has not named
// yet, such as tabs restored without loading.
package pageinfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/lotas/tabgruppen/internal/applog"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxBody caps how much of a page is parsed.
	maxBody = 2 << 20
)

// Resolver fetches pages and extracts their readable title.
type Resolver struct {
	client *http.Client
}

// New creates a Resolver. A nil client gets a 15 second timeout.
func New(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{client: client}
}

// ResolveTitle returns the title of the page at rawURL. Only http and https
// pages are fetched.
func (r *Resolver) ResolveTitle(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("skipping non-HTTP URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBody), u)
	if err != nil {
		return "", fmt.Errorf("extract title from %s: %w", rawURL, err)
	}
	title := strings.Join(strings.Fields(article.Title), " ")
	applog.Info("pageinfo.title", "url", rawURL, "title", title)
	return title, nil
}
