// Package graph is the Microsoft Graph drive client: remote config
// fetch, recursive folder enumeration, and image download.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/driveshow/driveshow/internal/domain"
	"github.com/driveshow/driveshow/internal/retry"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "driveshow/1.0"

	// listSelect keeps listing responses small; top matches the Graph
	// page-size ceiling.
	listSelect = "id,name,size,eTag,lastModifiedDateTime,file,folder,image,parentReference"
	listTop    = "200"
)

// supportedMimeTypes are the image formats the renderer can decode.
var supportedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// TokenProvider supplies a valid bearer token for each request.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to a Graph-style drive API.
type Client struct {
	baseURL    string
	configFile string
	tokens     TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a drive client rooted at baseURL (e.g.
// https://graph.microsoft.com/v1.0/me/drive). configFile is the name of
// the remote slideshow configuration document in the drive root.
func NewClient(baseURL, configFile string, tokens TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		configFile: configFile,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// GetConfig downloads and parses the remote slideshow configuration.
// Graph answers content requests with a 302 to a download URL; the HTTP
// client follows it. A malformed document returns domain.ErrConfigParse
// so callers can keep their previous configuration.
func (c *Client) GetConfig(ctx context.Context) (domain.SlideshowConfig, error) {
	var cfg domain.SlideshowConfig
	reqURL := fmt.Sprintf("%s/root:/%s:/content", c.baseURL, url.PathEscape(c.configFile))

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return cfg, fmt.Errorf("fetch config: %w", err)
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", domain.ErrConfigParse, err)
	}
	c.logger.Debug("fetched remote config", "directories", len(cfg.Directories), "interval", cfg.Interval)
	return cfg, nil
}

// ListFolder recursively enumerates dir (a path relative to the drive
// root) and returns every supported image found beneath it. Folders are
// expanded; pagination links are followed.
func (c *Client) ListFolder(ctx context.Context, dir string) ([]domain.ImageRef, error) {
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if dir == "" {
		return nil, errors.New("empty directory name")
	}

	type pending struct {
		url  string
		path string
	}
	query := url.Values{"$select": {listSelect}, "$top": {listTop}}.Encode()

	stack := []pending{{
		url:  fmt.Sprintf("%s/root:/%s:/children?%s", c.baseURL, escapePath(dir), query),
		path: dir,
	}}

	var images []domain.ImageRef
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		pageURL := next.url
		for pageURL != "" {
			body, err := c.doRequest(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", next.path, err)
			}
			var page listResponse
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, fmt.Errorf("parse listing of %s: %w", next.path, err)
			}

			for _, item := range page.Value {
				switch {
				case item.Folder != nil:
					stack = append(stack, pending{
						url:  fmt.Sprintf("%s/items/%s/children?%s", c.baseURL, item.ID, query),
						path: path.Join(next.path, item.Name),
					})
				case isImage(item):
					images = append(images, domain.ImageRef{
						ID:           item.ID,
						Name:         item.Name,
						Path:         next.path,
						Size:         item.Size,
						ETag:         item.ETag,
						LastModified: item.LastModified,
					})
				}
			}
			pageURL = page.NextLink
		}
	}

	c.logger.Debug("enumerated folder", "dir", dir, "images", len(images))
	return images, nil
}

// Download streams the content of itemID into w and returns the number
// of bytes written.
func (c *Client) Download(ctx context.Context, itemID string, w io.Writer) (int64, error) {
	reqURL := fmt.Sprintf("%s/items/%s/content", c.baseURL, url.PathEscape(itemID))

	req, err := c.newRequest(ctx, reqURL)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, retry.Transient(fmt.Errorf("download request: %w", err))
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, retry.Transient(fmt.Errorf("download body: %w", err))
	}
	return n, nil
}

// isImage reports whether the item is an image the renderer can decode.
func isImage(item driveItem) bool {
	return item.File != nil && supportedMimeTypes[strings.ToLower(item.File.MimeType)]
}

// escapePath escapes each segment of a drive path, keeping the slashes.
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func (c *Client) newRequest(ctx context.Context, reqURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// doRequest performs an authenticated GET and returns the body.
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := c.newRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "url", reqURL, "error", err)
		return nil, retry.Transient(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("read response: %w", err))
	}
	return body, nil
}

// statusError maps an HTTP status to an error. Server-side trouble and
// throttling are transient; client errors are not.
func statusError(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		return retry.Transient(fmt.Errorf("status %d", status))
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}
