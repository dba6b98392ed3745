package moonraker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// FileService covers the HTTP side channel used next to the websocket link.
// It is implemented by *HTTPClient and can be faked in tests.
type FileService interface {
	ListFiles(ctx context.Context, root string) ([]FileEntry, error)
	DeleteFile(ctx context.Context, root, name string) error
	MediaURL(name string) string
}

var _ FileService = (*HTTPClient)(nil)

// HTTPClient talks to Moonraker's HTTP API.
type HTTPClient struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultHost      = "127.0.0.1:7125"
	defaultUserAgent = "katana-link/0.1"
	requestTimeout   = 10 * time.Second
)

// NewHTTPClient builds a client from a host:port, an http(s) URL, or the
// ws(s) URL of the websocket endpoint.
func NewHTTPClient(endpoint string) (*HTTPClient, error) {
	base, err := parseBaseURL(endpoint)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
	}, nil
}

// ListFiles lists the files under root (gcodes, config, timelapse).
func (c *HTTPClient) ListFiles(ctx context.Context, root string) ([]FileEntry, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		root = "gcodes"
	}
	values := url.Values{}
	values.Set("root", root)
	rel := &url.URL{Path: "/server/files/list", RawQuery: values.Encode()}
	var payload struct {
		Result []FileEntry `json:"result"`
	}
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return nil, err
	}
	return payload.Result, nil
}

// DeleteFile removes root/name.
func (c *HTTPClient) DeleteFile(ctx context.Context, root, name string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("file name required")
	}
	rel := &url.URL{Path: path.Join("/server/files", root, name)}
	return c.doURL(ctx, http.MethodDelete, rel, nil)
}

// MediaURL returns the static URL of a captured timelapse file.
func (c *HTTPClient) MediaURL(name string) string {
	rel := &url.URL{Path: path.Join("/server/files/timelapse", name)}
	return c.baseURL.ResolveReference(rel).String()
}

func (c *HTTPClient) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", rel.Path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(endpoint string) (*url.URL, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = defaultHost
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
