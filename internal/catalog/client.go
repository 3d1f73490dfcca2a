// Package catalog fetches and normalizes the storefront's product catalog.
//
// The catalog is the authority for prices and stock. The cart engine never
// patches it incrementally: each refresh pages through the whole listing and
// publishes a complete snapshot, or nothing at all.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"larmone-cart/internal/clienthdr"
	"larmone-cart/internal/model"
	"larmone-cart/internal/transport"
)

const (
	// DefaultPageSize is the listing page size used when none is configured.
	DefaultPageSize = 100

	// maxPages caps the paging loop against a backend that keeps reporting
	// more pages than it serves.
	maxPages = 1000

	// maxResponseBytes limits a single page body read.
	maxResponseBytes = 8 << 20 // 8MB

	productsPath = "/productos"

	userAgent = "larmone-cart/1.0"
)

// FetchOptions controls a catalog fetch.
type FetchOptions struct {
	// IncludeInactive asks the backend for deactivated products too.
	IncludeInactive bool

	// Admin adds the elevated-role header required for administrative
	// visibility. The backend ignores IncludeInactive without it.
	Admin bool
}

// Client pages through the product listing endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pageSize   int
}

// Option configures a Client.
type Option func(*Client)

// WithPageSize overrides the listing page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithHTTPClient substitutes the HTTP client, used by tests to point at a
// local fixture server without the browser transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a catalog client for the given backend base URL.
// apiKey may be empty for backends that accept anonymous reads.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport.NewBrowserTransport(30 * time.Second),
		},
		baseURL:  trimSlash(baseURL),
		apiKey:   apiKey,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll pages through the product listing until a page comes back empty or
// the reported total-pages figure is reached, accumulating every entry.
// Any page failure discards the pages already fetched: no partial catalog is
// ever published.
func (c *Client) FetchAll(ctx context.Context, opts FetchOptions) ([]model.CatalogEntry, error) {
	var entries []model.CatalogEntry

	for page := 1; page <= maxPages; page++ {
		resp, err := c.fetchPage(ctx, page, opts)
		if err != nil {
			return nil, model.NewCatalogError(err)
		}

		for _, p := range resp.Items {
			if entry, ok := normalize(p); ok {
				entries = append(entries, entry)
			}
		}

		if len(resp.Items) == 0 {
			break
		}
		if resp.TotalPages > 0 && page >= resp.TotalPages {
			break
		}
	}

	return entries, nil
}

// FetchSnapshot fetches the full catalog and indexes it by product ID.
func (c *Client) FetchSnapshot(ctx context.Context, opts FetchOptions) (Snapshot, error) {
	entries, err := c.FetchAll(ctx, opts)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(entries), nil
}

// fetchPage requests one listing page.
func (c *Client) fetchPage(ctx context.Context, page int, opts FetchOptions) (*pagedResponse, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(c.pageSize))
	if opts.IncludeInactive {
		query.Set("soloActivos", "false")
	}

	reqURL := c.baseURL + productsPath + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating catalog request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if opts.Admin {
		if role := clienthdr.BuildRoleHeader(clienthdr.RoleAdmin); role != "" {
			req.Header.Set(clienthdr.RoleHeaderName, role)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog page %d: %w", page, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading catalog page %d: %w", page, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog page %d returned status %d", page, resp.StatusCode)
	}

	var parsed pagedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing catalog page %d: %w", page, err)
	}

	return &parsed, nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
