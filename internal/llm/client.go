// Package llm provides the streaming completion client (C5): it builds a
// prompt from history, POSTs it to a completion endpoint, and streams
// tokens back over server-sent events.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mjolnir-labs/heisenberg-core/internal/apperr"
	"github.com/mjolnir-labs/heisenberg-core/internal/llm/prompt"
	"github.com/mjolnir-labs/heisenberg-core/internal/session"
)

// stopSequences terminate generation server-side, matching the wire
// protocol's stop list.
var stopSequences = []string{"User:", "user:", "<|im_end|>", "</s>"}

// Config holds LLM client configuration.
type Config struct {
	Endpoint      string
	Temperature   float32
	TopK          int
	TopP          float32
	RepeatPenalty float32
	MaxTokens     int
	Timeout       time.Duration
	SystemPrompt  string
	Format        prompt.Format
	MaxHistory    int
}

// completionRequest is the wire-level POST body, per the completion
// endpoint's protocol.
type completionRequest struct {
	Prompt        string   `json:"prompt"`
	Temperature   float32  `json:"temperature"`
	TopK          int      `json:"top_k"`
	TopP          float32  `json:"top_p"`
	NPredict      int      `json:"n_predict"`
	RepeatPenalty float32  `json:"repeat_penalty"`
	Stream        bool     `json:"stream"`
	Stop          []string `json:"stop"`
}

// completionChunk is one decoded `data: ` SSE line.
type completionChunk struct {
	Content string `json:"content"`
	Stop    bool   `json:"stop"`
}

// Client is a streaming completion client against a local LLM endpoint.
// The wire protocol (a raw prompt string, hand-parsed SSE, an explicit
// stop list) sits lower than any typed chat client exposes, so Client
// talks HTTP directly instead of wrapping one.
type Client struct {
	httpClient *http.Client
	endpoint   *url.URL
	cfg        Config
	builder    *prompt.Builder

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewClient creates a Client against cfg.Endpoint.
func NewClient(cfg Config) (*Client, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, apperr.NewLLMError("parse endpoint", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		cfg:        cfg,
		builder:    prompt.New(cfg.SystemPrompt, cfg.Format),
	}, nil
}

// TokenFunc is invoked once per streamed token.
type TokenFunc func(token string)

// Generate streams a completion for query given history, invoking onToken
// for every non-empty token, and returns the full concatenated response.
// An in-flight Generate can be aborted by Cancel, which closes the HTTP
// stream; Generate then returns the partial response collected so far
// along with an error wrapping context.Canceled.
func (c *Client) Generate(ctx context.Context, history []session.Turn, query string, onToken TokenFunc) (string, error) {
	if c.cfg.MaxHistory > 0 && len(history) > c.cfg.MaxHistory {
		history = history[len(history)-c.cfg.MaxHistory:]
	}
	built := c.builder.Build(history, query)

	reqBody := completionRequest{
		Prompt:        built,
		Temperature:   c.cfg.Temperature,
		TopK:          c.cfg.TopK,
		TopP:          c.cfg.TopP,
		NPredict:      c.cfg.MaxTokens,
		RepeatPenalty: c.cfg.RepeatPenalty,
		Stream:        true,
		Stop:          stopSequences,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperr.NewLLMError("marshal request", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return "", apperr.NewLLMError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.NewLLMError("send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.NewLLMError("request", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "" {
			continue
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Content != "" {
			out.WriteString(chunk.Content)
			if onToken != nil {
				onToken(chunk.Content)
			}
		}
		if chunk.Stop {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return out.String(), fmt.Errorf("llm: generation cancelled: %w", ctx.Err())
		}
		return out.String(), apperr.NewLLMError("read stream", err)
	}

	return out.String(), nil
}

// GenerateSimple is a convenience wrapper that discards per-token
// callbacks and returns only the final concatenated response.
func (c *Client) GenerateSimple(ctx context.Context, history []session.Turn, query string) (string, error) {
	return c.Generate(ctx, history, query, nil)
}

// Cancel aborts any in-flight Generate call by closing its HTTP stream.
func (c *Client) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}
