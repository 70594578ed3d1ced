package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	memerrors "github.com/rshah/memex/internal/errors"
)

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// HTTPEmbedder is the Embedding Client described in spec.md §4.1: it POSTs
// to {host}/api/embeddings with {model, prompt} and expects {embedding}.
type HTTPEmbedder struct {
	client *http.Client
	cfg    Config

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder constructs an HTTPEmbedder. A zero-value field in cfg
// falls back to DefaultConfig's value.
func NewHTTPEmbedder(cfg Config) *HTTPEmbedder {
	def := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = def.Dimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxConcurrency,
		MaxIdleConnsPerHost: cfg.MaxConcurrency,
		MaxConnsPerHost:     cfg.MaxConcurrency * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	return &HTTPEmbedder{
		client: &http.Client{Transport: transport},
		cfg:    cfg,
	}
}

// Dimensions returns the configured embedding length.
func (e *HTTPEmbedder) Dimensions() int { return e.cfg.Dimensions }

// ModelName returns the configured model identifier.
func (e *HTTPEmbedder) ModelName() string { return e.cfg.Model }

// Close releases idle connections held by the underlying HTTP transport.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if t, ok := e.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// Embed generates an embedding for a single text. Blank input short-circuits
// to a zero vector without a network call.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.cfg.Dimensions), nil
	}

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, memerrors.New(memerrors.ErrCodeEmbedUnavailable, "embedder is closed", nil)
	}

	return e.doEmbed(ctx, text)
}

func (e *HTTPEmbedder) doEmbed(ctx context.Context, text string) ([]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Prompt: text})
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeEmbedBadResponse, err)
	}

	url := strings.TrimRight(e.cfg.Host, "/") + "/api/embeddings"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeEmbedUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, memerrors.New(memerrors.ErrCodeEmbedUnavailable, "embedding service unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, memerrors.New(memerrors.ErrCodeEmbedBadResponse,
			fmt.Sprintf("embedding request failed with status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, memerrors.Wrap(memerrors.ErrCodeEmbedBadResponse, err)
	}
	if len(result.Embedding) == 0 {
		return nil, memerrors.New(memerrors.ErrCodeEmbedBadResponse, "empty embedding returned", nil)
	}

	return result.Embedding, nil
}

// EmbedBatch generates embeddings for texts, pipelined in batches of
// cfg.BatchSize with up to cfg.MaxConcurrency requests in flight per batch.
// A text that fails to embed leaves its result slot nil rather than
// aborting the batch, per spec.md §4.1.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.MaxConcurrency)

		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				vec, err := e.Embed(gctx, texts[i])
				if err != nil {
					slog.Warn("embed_chunk_failed", slog.Int("index", i), slog.String("error", err.Error()))
					return nil
				}
				results[i] = vec
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	return results, nil
}
