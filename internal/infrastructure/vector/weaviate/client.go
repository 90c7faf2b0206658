// Package weaviate adapts a Weaviate instance to the index port over
// its REST and GraphQL APIs. Objects are stored with externally
// supplied vectors; keyword search uses the built-in BM25 index.
package weaviate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/infrastructure/resilience"
)

const hitFields = "source_doc chunk_id element_type section_title text text_as_html summary keywords page_start page_end"

type Client struct {
	baseURL    string
	class      string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger

	mu      sync.Mutex
	ensured bool
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
	Logger   *slog.Logger
}

func New(baseURL, class string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		class:      class,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.Executor,
		logger:     logger,
	}
}

// ObjectID derives the deterministic object id for a chunk, so
// re-ingesting a document overwrites instead of duplicating.
func ObjectID(sourceDoc string, chunkID int) string {
	key := fmt.Sprintf("%s:%d", sourceDoc, chunkID)
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String()
}

func (c *Client) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if err := c.ensureClass(ctx); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := c.upsertOne(ctx, chunk); err != nil {
			return fmt.Errorf("upsert chunk %s/%d: %w", chunk.SourceDoc, chunk.ChunkID, err)
		}
	}
	return nil
}

func (c *Client) upsertOne(ctx context.Context, chunk domain.EmbeddedChunk) error {
	id := ObjectID(chunk.SourceDoc, chunk.ChunkID)
	payload := map[string]any{
		"class":      c.class,
		"id":         id,
		"properties": chunkProperties(chunk.Chunk),
		"vector":     chunk.Embedding,
	}
	return c.execute(ctx, "weaviate_upsert", func(ctx context.Context) error {
		err := c.do(ctx, http.MethodPost, "/v1/objects", payload, nil)
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnprocessableEntity {
			// Object exists, replace it in full.
			return c.do(ctx, http.MethodPut, "/v1/objects/"+c.class+"/"+id, payload, nil)
		}
		return err
	})
}

func chunkProperties(chunk domain.Chunk) map[string]any {
	props := map[string]any{
		"source_doc":   chunk.SourceDoc,
		"chunk_id":     chunk.ChunkID,
		"element_type": string(chunk.Type),
		"text":         chunk.Text,
		"page_start":   chunk.PageStart,
		"page_end":     chunk.PageEnd,
	}
	if chunk.SectionTitle != "" {
		props["section_title"] = chunk.SectionTitle
	}
	if chunk.TextAsHTML != "" {
		props["text_as_html"] = chunk.TextAsHTML
	}
	if chunk.Summary != "" {
		props["summary"] = chunk.Summary
	}
	if len(chunk.Keywords) > 0 {
		props["keywords"] = chunk.Keywords
	}
	return props
}

func (c *Client) QueryVector(ctx context.Context, vector []float32, filter domain.SearchFilter, limit int) ([]domain.Hit, error) {
	query := fmt.Sprintf(
		"{ Get { %s(nearVector: {vector: %s}, limit: %d%s) { %s _additional { distance } } } }",
		c.class, formatVector(vector), limit, whereClause(filter), hitFields)
	return c.queryHits(ctx, "weaviate_query_vector", query, scoreFromDistance)
}

func (c *Client) QueryKeyword(ctx context.Context, query string, properties []string, filter domain.SearchFilter, limit int) ([]domain.Hit, error) {
	gql := fmt.Sprintf(
		"{ Get { %s(bm25: {query: %s, properties: %s}, limit: %d%s) { %s _additional { score } } } }",
		c.class, jsonString(query), jsonStringList(properties), limit, whereClause(filter), hitFields)
	return c.queryHits(ctx, "weaviate_query_keyword", gql, scoreFromScore)
}

func (c *Client) QueryHybrid(ctx context.Context, query string, vector []float32, alpha float64, filter domain.SearchFilter, limit int) ([]domain.Hit, error) {
	gql := fmt.Sprintf(
		"{ Get { %s(hybrid: {query: %s, vector: %s, alpha: %g}, limit: %d%s) { %s _additional { score } } } }",
		c.class, jsonString(query), formatVector(vector), alpha, limit, whereClause(filter), hitFields)
	return c.queryHits(ctx, "weaviate_query_hybrid", gql, scoreFromScore)
}

func (c *Client) Count(ctx context.Context, filter domain.SearchFilter) (int, error) {
	where := ""
	if clause := whereClause(filter); clause != "" {
		where = "(" + strings.TrimPrefix(clause, ", ") + ")"
	}
	query := fmt.Sprintf("{ Aggregate { %s%s { meta { count } } } }", c.class, where)

	raw, err := c.graphql(ctx, "weaviate_count", "Aggregate", query)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("decode aggregate: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Meta.Count, nil
}

type hitObject struct {
	SourceDoc    string   `json:"source_doc"`
	ChunkID      int      `json:"chunk_id"`
	ElementType  string   `json:"element_type"`
	SectionTitle string   `json:"section_title"`
	Text         string   `json:"text"`
	TextAsHTML   string   `json:"text_as_html"`
	Summary      string   `json:"summary"`
	Keywords     []string `json:"keywords"`
	PageStart    int      `json:"page_start"`
	PageEnd      int      `json:"page_end"`
	Additional   struct {
		Distance *float64 `json:"distance"`
		Score    string   `json:"score"`
	} `json:"_additional"`
}

func scoreFromDistance(obj hitObject) float64 {
	if obj.Additional.Distance != nil {
		// Cosine distance to similarity.
		return 1 - *obj.Additional.Distance
	}
	return 0
}

func scoreFromScore(obj hitObject) float64 {
	// Weaviate returns _additional.score as a string.
	score, err := strconv.ParseFloat(obj.Additional.Score, 64)
	if err != nil {
		return 0
	}
	return score
}

func (c *Client) queryHits(ctx context.Context, operation, query string, score func(hitObject) float64) ([]domain.Hit, error) {
	raw, err := c.graphql(ctx, operation, "Get", query)
	if err != nil {
		return nil, err
	}
	var objects []hitObject
	if err := json.Unmarshal(raw, &objects); err != nil {
		return nil, fmt.Errorf("decode hits: %w", err)
	}
	hits := make([]domain.Hit, len(objects))
	for i, obj := range objects {
		hits[i] = domain.Hit{
			SourceDoc:    obj.SourceDoc,
			ChunkID:      obj.ChunkID,
			Type:         domain.ChunkType(obj.ElementType),
			SectionTitle: obj.SectionTitle,
			Text:         obj.Text,
			TextAsHTML:   obj.TextAsHTML,
			Summary:      obj.Summary,
			Keywords:     obj.Keywords,
			PageStart:    obj.PageStart,
			PageEnd:      obj.PageEnd,
			Score:        score(obj),
		}
	}
	return hits, nil
}

type graphqlResponse struct {
	Data   map[string]map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) graphql(ctx context.Context, operation, root, query string) (json.RawMessage, error) {
	if err := c.ensureClass(ctx); err != nil {
		return nil, err
	}
	var resp graphqlResponse
	err := c.execute(ctx, operation, func(ctx context.Context) error {
		resp = graphqlResponse{}
		return c.do(ctx, http.MethodPost, "/v1/graphql", map[string]string{"query": query}, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate graphql: %s", resp.Errors[0].Message)
	}
	raw, ok := resp.Data[root][c.class]
	if !ok {
		return json.RawMessage("[]"), nil
	}
	return raw, nil
}

// ensureClass creates the collection schema on first use. Guarded by a
// mutex so concurrent callers do not race the create.
func (c *Client) ensureClass(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ensured {
		return nil
	}

	err := c.do(ctx, http.MethodGet, "/v1/schema/"+c.class, nil, nil)
	if err == nil {
		c.ensured = true
		return nil
	}
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check class %s: %w", c.class, err)
	}

	schema := map[string]any{
		"class":      c.class,
		"vectorizer": "none",
		"vectorIndexConfig": map[string]any{
			"distance": "cosine",
		},
		"properties": []map[string]any{
			{"name": "source_doc", "dataType": []string{"text"}, "tokenization": "field"},
			{"name": "chunk_id", "dataType": []string{"int"}},
			{"name": "element_type", "dataType": []string{"text"}, "tokenization": "field"},
			{"name": "section_title", "dataType": []string{"text"}},
			{"name": "text", "dataType": []string{"text"}},
			{"name": "text_as_html", "dataType": []string{"text"}, "indexSearchable": false},
			{"name": "summary", "dataType": []string{"text"}},
			{"name": "keywords", "dataType": []string{"text[]"}},
			{"name": "page_start", "dataType": []string{"int"}},
			{"name": "page_end", "dataType": []string{"int"}},
		},
	}
	err = c.do(ctx, http.MethodPost, "/v1/schema", schema, nil)
	if err != nil {
		// Lost a create race with another instance.
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnprocessableEntity {
			c.ensured = true
			return nil
		}
		return fmt.Errorf("create class %s: %w", c.class, err)
	}
	c.logger.Info("created index class", "class", c.class)
	c.ensured = true
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, classifyIndexError, fn)
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("weaviate: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(data)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return &httpStatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func classifyIndexError(err error) resilience.Classification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Classification{}
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == 429 || statusErr.StatusCode >= 500 {
			return resilience.Classification{Retryable: true, RecordFailure: true}
		}
		return resilience.Classification{}
	}
	return resilience.Classification{Retryable: true, RecordFailure: true}
}

func formatVector(vector []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func whereClause(filter domain.SearchFilter) string {
	if filter.SourceDoc == "" {
		return ""
	}
	return fmt.Sprintf(`, where: {path: ["source_doc"], operator: Equal, valueText: %s}`, jsonString(filter.SourceDoc))
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func jsonStringList(items []string) string {
	data, _ := json.Marshal(items)
	return string(data)
}
