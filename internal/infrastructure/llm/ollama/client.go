// Package ollama adapts an Ollama server to the chat and embedding
// ports over its plain HTTP API.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	normalize  bool
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	ChatModel  string
	EmbedModel string
	// Normalize rescales embeddings to unit length so dot products
	// behave as cosine similarity.
	Normalize bool
	Timeout   time.Duration
	Executor  *resilience.Executor
}

func New(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		chatModel:  opts.ChatModel,
		embedModel: opts.EmbedModel,
		normalize:  opts.Normalize,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.Executor,
	}
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, classifyModelError, fn)
}

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
	Format   json.RawMessage      `json:"format,omitempty"`
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

func (c *Client) CompleteText(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	var resp chatResponse
	err := c.execute(ctx, "ollama_chat", func(ctx context.Context) error {
		resp = chatResponse{}
		return c.postJSON(ctx, "/api/chat", chatRequest{
			Model:    c.chatModel,
			Messages: messages,
			Stream:   false,
		}, &resp)
	})
	if err != nil {
		return "", wrapTemporaryIfRetryable("complete text", err)
	}
	return resp.Message.Content, nil
}

// CompleteStructured constrains the reply to schema and decodes it into
// out. A reply that is not a decodable JSON object is a validation
// error the caller's retry loop can act on.
func (c *Client) CompleteStructured(ctx context.Context, messages []domain.ChatMessage, schema json.RawMessage, out any) error {
	var resp chatResponse
	err := c.execute(ctx, "ollama_chat_structured", func(ctx context.Context) error {
		resp = chatResponse{}
		return c.postJSON(ctx, "/api/chat", chatRequest{
			Model:    c.chatModel,
			Messages: messages,
			Stream:   false,
			Format:   schema,
		}, &resp)
	})
	if err != nil {
		return wrapTemporaryIfRetryable("complete structured", err)
	}

	payload := extractJSONObject(resp.Message.Content)
	if payload == "" {
		return domain.WrapError(domain.ErrValidation, "decode structured response",
			errors.New("reply contains no JSON object"))
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return domain.WrapError(domain.ErrValidation, "decode structured response", err)
	}
	return nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embedResponse
	err := c.execute(ctx, "ollama_embed", func(ctx context.Context) error {
		resp = embedResponse{}
		return c.postJSON(ctx, "/api/embed", embedRequest{Model: c.embedModel, Input: texts}, &resp)
	})
	if err != nil {
		return nil, wrapTemporaryIfRetryable("embed texts", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, domain.WrapError(domain.ErrValidation, "embed texts",
			errors.New("embedding count does not match input count"))
	}
	if c.normalize {
		for _, v := range resp.Embeddings {
			normalizeVector(v)
		}
	}
	return resp.Embeddings, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func normalizeVector(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
