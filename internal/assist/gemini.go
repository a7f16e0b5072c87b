// Package assist extracts structured event proposals from free-form text by
// calling the Gemini generateContent endpoint. The adapter is an external
// collaborator boundary: whatever comes back is untrusted and must be
// re-validated by the caller before it reaches the store.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "github.com/sambabiba/shinbis-calendar/internal/log"
	"github.com/sambabiba/shinbis-calendar/internal/model"
)

var (
	// ErrNoKey means no API key is configured; the caller should run the
	// key setup flow instead of retrying.
	ErrNoKey = errors.New("assist: no API key configured")

	// ErrAuth means the key was rejected (403/401). Callers reset the
	// stored key on this error.
	ErrAuth = errors.New("assist: API key rejected")

	// ErrEndpointNotFound means the generateContent URL answered 404.
	ErrEndpointNotFound = errors.New("assist: endpoint not found")

	// ErrBadRequest means the request body was rejected (400).
	ErrBadRequest = errors.New("assist: bad request")

	// ErrParse means the response was not the expected envelope shape.
	ErrParse = errors.New("assist: unparseable response")
)

// StatusError carries a non-2xx status outside the mapped taxonomy, with the
// response body text for the user-facing message.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("assist: request failed: %d - %s", e.Status, e.Body)
}

// Client calls the generative-language API. Safe for reuse; one HTTP client
// with a request timeout, the same way the rest of the app does outbound
// calls.
type Client struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
}

// NewClient constructs a Client. baseURL is the models endpoint prefix
// (e.g. "https://generativelanguage.googleapis.com/v1beta/models").
func NewClient(baseURL, modelName, apiKey string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   modelName,
		apiKey:  apiKey,
	}
}

// SetKey replaces the API key, e.g. after the user re-enters one through the
// setup prompt.
func (c *Client) SetKey(key string) { c.apiKey = key }

// HasKey reports whether a key is configured at all.
func (c *Client) HasKey() bool { return c.apiKey != "" }

// Propose sends userText to the model and returns the extracted proposal, or
// nil when the text does not describe an addable event. Relative date phrases
// ("tomorrow", "day after tomorrow") are resolved against referenceDate, not
// wall-clock time, so callers snapshot "now" once at submission.
func (c *Client) Propose(ctx context.Context, userText string, referenceDate time.Time) (*model.Proposal, error) {
	if c.apiKey == "" {
		return nil, ErrNoKey
	}

	reqBody := buildRequest(buildPrompt(userText, referenceDate))
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	appLog.Info("assist request start", "model", c.model, "reference_date", referenceDate.Format("2006-01-02"))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		switch resp.StatusCode {
		case http.StatusNotFound:
			return nil, ErrEndpointNotFound
		case http.StatusForbidden, http.StatusUnauthorized:
			return nil, ErrAuth
		case http.StatusBadRequest:
			return nil, ErrBadRequest
		default:
			return nil, &StatusError{Status: resp.StatusCode, Body: string(body)}
		}
	}

	var envelope generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		appLog.Error("assist response decode failed", err, "model", c.model)
		return nil, ErrParse
	}

	text := envelope.firstText()
	if text == "" {
		appLog.Error("assist response carried no candidate text", ErrParse, "model", c.model)
		return nil, ErrParse
	}

	return extractProposal(text), nil
}

// generateResponse is the subset of the generateContent envelope we read.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (r *generateResponse) firstText() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}

// extractProposal pulls a JSON object out of the model's free-text answer.
// Models wrap answers in code fences or prose despite instructions, so we cut
// from the first '{' to the last '}'. A "null" answer, or text we cannot
// parse, means no proposal.
func extractProposal(text string) *model.Proposal {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	var raw string
	switch {
	case start >= 0 && end > start:
		raw = text[start : end+1]
	case strings.Contains(strings.ToLower(text), "null"):
		return nil
	default:
		raw = text
	}

	var p model.Proposal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		appLog.Debug("assist proposal parse failed", "text_len", len(text))
		return nil
	}
	return &p
}
