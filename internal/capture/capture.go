// Package capture is a thin client for the generation endpoint that
// extraction tooling calls out to. It is explicitly out of scope for this
// module's own logic (SPEC_FULL.md §7) — memex only needs to speak the
// wire protocol, not implement generation itself.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	memerrors "github.com/rshah/memex/internal/errors"
)

// DefaultHost is the default generation service endpoint.
const DefaultHost = "http://localhost:11434"

// DefaultTimeout bounds a single generate call.
const DefaultTimeout = 60 * time.Second

// Client calls a generation endpoint's /api/generate route.
type Client struct {
	httpClient *http.Client
	host       string
	model      string
	timeout    time.Duration
}

// Config configures a Client.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// New constructs a Client. A zero-value field in cfg falls back to a
// sensible default.
func New(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		host:       cfg.Host,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Extract sends prompt to the generation endpoint and returns the raw JSON
// found in the response's "response" field, unparsed — the caller owns
// whatever schema it asked the model to produce.
func (c *Client) Extract(ctx context.Context, prompt string) (json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeInternal, err)
	}

	url := strings.TrimRight(c.host, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeEmbedUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, memerrors.New(memerrors.ErrCodeEmbedUnavailable, "generation service unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, memerrors.New(memerrors.ErrCodeEmbedBadResponse,
			fmt.Sprintf("generate request failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeEmbedBadResponse, err)
	}
	if result.Response == "" {
		return nil, memerrors.New(memerrors.ErrCodeEmbedBadResponse, "empty response field", nil)
	}

	return json.RawMessage(result.Response), nil
}
