package ollama

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finraglab/finrag/internal/core/domain"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": content},
		})
	}))
}

func TestCompleteStructuredDecodesReply(t *testing.T) {
	srv := chatServer(t, `{"answer":"42","citations":[1]}`)
	defer srv.Close()
	c := New(srv.URL, Options{ChatModel: "test"})

	var out struct {
		Answer    string `json:"answer"`
		Citations []int  `json:"citations"`
	}
	err := c.CompleteStructured(context.Background(),
		[]domain.ChatMessage{{Role: domain.RoleUser, Content: "q"}},
		json.RawMessage(`{"type":"object"}`), &out)
	if err != nil {
		t.Fatalf("complete structured: %v", err)
	}
	if out.Answer != "42" || len(out.Citations) != 1 {
		t.Fatalf("unexpected decode %+v", out)
	}
}

func TestCompleteStructuredExtractsWrappedJSON(t *testing.T) {
	srv := chatServer(t, "Sure, here you go:\n```json\n{\"answer\":\"ok\",\"citations\":[]}\n```")
	defer srv.Close()
	c := New(srv.URL, Options{ChatModel: "test"})

	var out struct {
		Answer string `json:"answer"`
	}
	err := c.CompleteStructured(context.Background(), nil, nil, &out)
	if err != nil {
		t.Fatalf("expected wrapped JSON to decode, got %v", err)
	}
	if out.Answer != "ok" {
		t.Fatalf("unexpected answer %q", out.Answer)
	}
}

func TestCompleteStructuredMalformedIsValidationError(t *testing.T) {
	srv := chatServer(t, "the answer is definitely 42")
	defer srv.Close()
	c := New(srv.URL, Options{ChatModel: "test"})

	var out map[string]any
	err := c.CompleteStructured(context.Background(), nil, nil, &out)
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCompleteStructuredServerErrorIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := New(srv.URL, Options{ChatModel: "test"})

	var out map[string]any
	err := c.CompleteStructured(context.Background(), nil, nil, &out)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestEmbedNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{3, 4}},
		})
	}))
	defer srv.Close()
	c := New(srv.URL, Options{EmbedModel: "test", Normalize: true})

	vectors, err := c.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var norm float64
	for _, x := range vectors[0] {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit vector, squared norm %f", norm)
	}
}

func TestEmbedCountMismatchIsValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{}})
	}))
	defer srv.Close()
	c := New(srv.URL, Options{EmbedModel: "test"})

	_, err := c.Embed(context.Background(), []string{"a", "b"})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"prefix {\"a\":{\"b\":2}} suffix", `{"a":{"b":2}}`},
		{`{"s":"brace } in string"}`, `{"s":"brace } in string"}`},
		{"no object here", ""},
		{"{unbalanced", ""},
	}
	for _, tc := range cases {
		if got := extractJSONObject(tc.in); got != tc.want {
			t.Fatalf("extractJSONObject(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
