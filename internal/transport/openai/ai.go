// Package openai adapts the OpenAI API for voice transcription and title
// summarization.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/keepsakehq/keepsake/internal/domain"
	"github.com/keepsakehq/keepsake/internal/metrics"
)

// Client calls the OpenAI API for transcription and summarization.
type Client struct {
	client          *openai.Client
	transcribeModel string
	summaryModel    string
	logger          *zap.Logger
}

// Config holds the AI provider settings.
type Config struct {
	APIKey          string
	BaseURL         string
	TranscribeModel string
	SummaryModel    string
	Logger          *zap.Logger
}

// NewClient creates an OpenAI-compatible AI client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:          openai.NewClientWithConfig(clientCfg),
		transcribeModel: cfg.TranscribeModel,
		summaryModel:    cfg.SummaryModel,
		logger:          cfg.Logger,
	}
}

// Transcribe converts a voice recording into text via the Whisper API.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	req := openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: filename,
		Reader:   audio,
	}

	start := time.Now()
	resp, err := c.client.CreateTranscription(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues("transcribe", c.transcribeModel, "error").Inc()
		return "", parseAPIError("transcription", err)
	}

	metrics.AIRequestsTotal.WithLabelValues("transcribe", c.transcribeModel, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues("transcribe", c.transcribeModel).Observe(duration.Seconds())

	return resp.Text, nil
}

const summaryPrompt = "Write a title of at most eight words for this journal entry. " +
	"Reply with the title only, no quotes."

// Summarize derives a short entry title from transcript text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.summaryModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   32,
		Temperature: 0.2,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues("summarize", c.summaryModel, "error").Inc()
		return "", parseAPIError("summarization", err)
	}
	if len(resp.Choices) == 0 {
		metrics.AIRequestsTotal.WithLabelValues("summarize", c.summaryModel, "error").Inc()
		return "", fmt.Errorf("empty summarization response")
	}

	metrics.AIRequestsTotal.WithLabelValues("summarize", c.summaryModel, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues("summarize", c.summaryModel).Observe(duration.Seconds())

	return strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`), nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// Transcription failures wrap domain.ErrTranscription for correct mapping.
func parseAPIError(op string, err error) error {
	wrapped := err

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		wrapped = fmt.Errorf("%s API error %d: %s", op, reqErr.HTTPStatusCode, detail)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrapped = fmt.Errorf("%s API error %d: %s", op, apiErr.HTTPStatusCode, apiErr.Message)
	}

	if op == "transcription" {
		return fmt.Errorf("%w: %w", domain.ErrTranscription, wrapped)
	}
	return wrapped
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
