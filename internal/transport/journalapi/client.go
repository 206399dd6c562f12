// Package journalapi talks to the journal CRUD/AI backend: media finalize,
// bulk entry fetch, semantic/conversational search, and entry create.
package journalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/keepsakehq/keepsake/internal/domain"
	"github.com/keepsakehq/keepsake/internal/domain/entry"
	"github.com/keepsakehq/keepsake/internal/domain/search/query"
	"github.com/keepsakehq/keepsake/internal/domain/search/result"
	domupload "github.com/keepsakehq/keepsake/internal/domain/upload"
	"github.com/keepsakehq/keepsake/internal/usecase/search"
)

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 30 * time.Second

// Client is the journal backend HTTP client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a journal backend client.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// entryDTO is the backend's entry wire format.
type entryDTO struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Transcript string   `json:"transcript,omitempty"`
	AudioPath  string   `json:"audioPath,omitempty"`
	MediaPaths []string `json:"mediaPaths,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	People     []string `json:"people,omitempty"`
	Privacy    string   `json:"privacy"`
	CreatedAt  int64    `json:"createdAt"`
}

func (d entryDTO) toDomain() entry.Entry {
	return entry.Reconstruct(
		d.ID, d.Title, d.Content, d.Transcript, d.AudioPath,
		d.MediaPaths, d.Tags, d.People, entry.Privacy(d.Privacy), d.CreatedAt,
	)
}

func toDTO(e entry.Entry) entryDTO {
	return entryDTO{
		ID:         e.ID(),
		Title:      e.Title(),
		Content:    e.Content(),
		Transcript: e.Transcript(),
		AudioPath:  e.AudioPath(),
		MediaPaths: e.MediaPaths(),
		Tags:       e.Tags(),
		People:     e.People(),
		Privacy:    string(e.Privacy()),
		CreatedAt:  e.CreatedAt(),
	}
}

// FinalizeMedia registers a stored object with its entry. The backend may
// normalize the metadata it echoes back.
func (c *Client) FinalizeMedia(ctx context.Context, entryID string, media domupload.StoredMedia) (domupload.StoredMedia, error) {
	payload := map[string]string{
		"photoURL":     media.Path,
		"mimeType":     media.MIME,
		"originalName": media.Name,
	}

	var resp struct {
		ObjectPath   string `json:"objectPath"`
		MimeType     string `json:"mimeType"`
		OriginalName string `json:"originalName"`
	}
	url := fmt.Sprintf("%s/entries/%s/photos", c.baseURL, entryID)
	if err := c.call(ctx, http.MethodPut, url, payload, &resp); err != nil {
		return domupload.StoredMedia{}, fmt.Errorf("finalize media: %w", err)
	}

	return domupload.StoredMedia{
		Path: resp.ObjectPath,
		MIME: resp.MimeType,
		Name: resp.OriginalName,
	}, nil
}

// BulkFetch retrieves full entries by identifier. The backend returns them
// in storage order; missing identifiers are simply absent.
func (c *Client) BulkFetch(ctx context.Context, ids []string) ([]entry.Entry, error) {
	payload := map[string][]string{"entryIds": ids}

	var dtos []entryDTO
	if err := c.call(ctx, http.MethodPost, c.baseURL+"/entries/bulk", payload, &dtos); err != nil {
		return nil, fmt.Errorf("bulk fetch: %w", err)
	}

	out := make([]entry.Entry, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// Search calls the semantic/conversational search endpoint.
func (c *Client) Search(ctx context.Context, q query.Query) (search.GatewayResponse, error) {
	payload := searchRequest(q)

	var resp struct {
		Results []struct {
			EntryID     string  `json:"entryId"`
			Similarity  float64 `json:"similarity"`
			Snippet     string  `json:"snippet"`
			Title       string  `json:"title"`
			MatchReason string  `json:"matchReason"`
		} `json:"results"`
		Answer          string   `json:"answer"`
		RelevantEntries []string `json:"relevantEntries"`
		Confidence      float64  `json:"confidence"`
		TotalResults    int      `json:"totalResults"`
		ExecutionTime   float64  `json:"executionTime"`
	}
	if err := c.call(ctx, http.MethodPost, c.baseURL+"/search", payload, &resp); err != nil {
		return search.GatewayResponse{}, fmt.Errorf("search: %w", err)
	}

	out := search.GatewayResponse{
		TotalResults:  resp.TotalResults,
		ExecutionTime: resp.ExecutionTime,
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, result.New(r.EntryID, r.Similarity, r.Snippet, r.Title, r.MatchReason))
	}
	if q.Mode() == query.Conversational && resp.Answer != "" {
		out.Answer = &result.Answer{
			Text:            resp.Answer,
			RelevantEntries: resp.RelevantEntries,
			Confidence:      resp.Confidence,
		}
	}
	return out, nil
}

// searchRequest builds the backend search payload from a typed query.
func searchRequest(q query.Query) map[string]any {
	filters := map[string]any{}
	f := q.Filters()
	if len(f.Tags) > 0 {
		filters["tags"] = f.Tags
	}
	if len(f.People) > 0 {
		filters["people"] = f.People
	}
	if !f.Dates.IsZero() {
		dr := map[string]string{}
		if !f.Dates.From.IsZero() {
			dr["from"] = f.Dates.From.Format(time.RFC3339)
		}
		if !f.Dates.To.IsZero() {
			dr["to"] = f.Dates.To.Format(time.RFC3339)
		}
		filters["dateRange"] = dr
	}
	if f.HasFeedType() {
		filters["feedType"] = string(f.FeedType)
	}

	payload := map[string]any{
		"query": q.Text(),
		"mode":  string(q.Mode()),
	}
	if q.Limit() > 0 {
		payload["limit"] = q.Limit()
	}
	if len(filters) > 0 {
		payload["filters"] = filters
	}
	return payload
}

// CreateEntry persists a new entry.
func (c *Client) CreateEntry(ctx context.Context, e entry.Entry) (entry.Entry, error) {
	var dto entryDTO
	if err := c.call(ctx, http.MethodPost, c.baseURL+"/entries", toDTO(e), &dto); err != nil {
		return entry.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	return dto.toDomain(), nil
}

// HealthCheck probes the backend health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

// call issues one JSON request and decodes the response into out.
func (c *Client) call(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ErrEntryNotFound
	case resp.StatusCode >= 400:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", domain.ErrBackendUnavailable, resp.StatusCode, bytes.TrimSpace(b))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
