// Package objectstore talks to the object-storage service: it issues
// presigned upload destinations and streams file bytes to them.
package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	domupload "github.com/keepsakehq/keepsake/internal/domain/upload"
	"github.com/keepsakehq/keepsake/internal/metrics"
	"github.com/keepsakehq/keepsake/internal/usecase/upload"
)

// DefaultTimeout bounds a single transfer.
const DefaultTimeout = 2 * time.Minute

// Client is the object-storage HTTP client.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an object-storage client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// IssueDestination requests a short-lived upload destination. An empty
// entryID requests an unscoped destination (used for voice recordings
// whose entry does not exist yet).
func (c *Client) IssueDestination(ctx context.Context, entryID string) (upload.Destination, error) {
	url := c.baseURL + "/upload-destination"
	if entryID != "" {
		url = fmt.Sprintf("%s/entries/%s/upload-destination", c.baseURL, entryID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return upload.Destination{}, fmt.Errorf("build destination request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return upload.Destination{}, fmt.Errorf("request destination: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return upload.Destination{}, fmt.Errorf("destination request returned %d", resp.StatusCode)
	}

	var body struct {
		UploadURL  string `json:"uploadURL"`
		ObjectPath string `json:"objectPath"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return upload.Destination{}, fmt.Errorf("decode destination: %w", err)
	}
	if body.UploadURL == "" || body.ObjectPath == "" {
		return upload.Destination{}, fmt.Errorf("incomplete destination response")
	}
	return upload.Destination{UploadURL: body.UploadURL, ObjectPath: body.ObjectPath}, nil
}

// Transfer streams the file to its presigned destination with a raw PUT.
// progress receives the percent of bytes sent; 100 is reported only after
// the storage service confirms the transfer.
func (c *Client) Transfer(ctx context.Context, dest upload.Destination, file domupload.File, progress func(pct int)) error {
	body := &progressReader{r: file.Content, total: file.Size, report: progress}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest.UploadURL, body)
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", file.MIME)
	req.ContentLength = file.Size

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transfer returned %d", resp.StatusCode)
	}

	metrics.UploadBytesTotal.Add(float64(file.Size))
	metrics.UploadTransferDuration.Observe(time.Since(start).Seconds())

	if progress != nil {
		progress(100)
	}
	return nil
}

// StoreAudio uploads a voice recording and returns its permanent path.
func (c *Client) StoreAudio(ctx context.Context, f domupload.File) (string, error) {
	dest, err := c.IssueDestination(ctx, "")
	if err != nil {
		return "", err
	}
	if err := c.Transfer(ctx, dest, f, nil); err != nil {
		return "", err
	}
	return dest.ObjectPath, nil
}

// progressReader reports transfer percent as the request body is consumed.
// The last percent is held at 99 so only a confirmed transfer reads 100.
type progressReader struct {
	r      io.Reader
	total  int64
	sent   int64
	report func(pct int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.sent += int64(n)
	if p.report != nil && p.total > 0 && n > 0 {
		pct := int(p.sent * 100 / p.total)
		if pct > 99 {
			pct = 99
		}
		p.report(pct)
	}
	return n, err
}
