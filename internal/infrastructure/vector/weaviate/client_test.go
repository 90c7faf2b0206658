package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/finraglab/finrag/internal/core/domain"
)

type fakeWeaviate struct {
	classExists   bool
	schemaCreates int32
	objectPosts   int32
	objectPuts    int32
	postStatus    int
	graphqlReply  string
	lastQuery     string
}

func (f *fakeWeaviate) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/schema/"):
			if f.classExists {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPost && r.URL.Path == "/v1/schema":
			atomic.AddInt32(&f.schemaCreates, 1)
			f.classExists = true
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/objects":
			atomic.AddInt32(&f.objectPosts, 1)
			status := f.postStatus
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/v1/objects/"):
			atomic.AddInt32(&f.objectPuts, 1)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/graphql":
			var req struct {
				Query string `json:"query"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			f.lastQuery = req.Query
			fmt.Fprint(w, f.graphqlReply)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func getReply(class string, objects string) string {
	return fmt.Sprintf(`{"data": {"Get": {%q: %s}}}`, class, objects)
}

func TestQueryVectorDecodesHitsAndDistance(t *testing.T) {
	fake := &fakeWeaviate{classExists: true}
	fake.graphqlReply = getReply("FilingChunk", `[
		{"source_doc":"3M_2018_10K","chunk_id":7,"element_type":"text","section_title":"Item 7",
		 "text":"capex was $1,577M","page_start":40,"page_end":41,
		 "_additional":{"distance":0.25}}
	]`)
	srv := fake.server(t)
	defer srv.Close()

	c := New(srv.URL, "FilingChunk", Options{})
	hits, err := c.QueryVector(context.Background(), []float32{0.1, 0.2}, domain.SearchFilter{SourceDoc: "3M_2018_10K"}, 5)
	if err != nil {
		t.Fatalf("query vector: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	h := hits[0]
	if h.SourceDoc != "3M_2018_10K" || h.ChunkID != 7 || h.PageStart != 40 {
		t.Fatalf("bad hit decode %+v", h)
	}
	if h.Score != 0.75 {
		t.Fatalf("expected similarity 0.75 from distance 0.25, got %f", h.Score)
	}
	if !strings.Contains(fake.lastQuery, "nearVector") {
		t.Fatalf("expected nearVector query, got %q", fake.lastQuery)
	}
	if !strings.Contains(fake.lastQuery, `"3M_2018_10K"`) {
		t.Fatal("where filter missing from query")
	}
}

func TestQueryKeywordParsesStringScore(t *testing.T) {
	fake := &fakeWeaviate{classExists: true}
	fake.graphqlReply = getReply("FilingChunk", `[
		{"source_doc":"doc","chunk_id":1,"element_type":"text","text":"t",
		 "_additional":{"score":"2.75"}}
	]`)
	srv := fake.server(t)
	defer srv.Close()

	c := New(srv.URL, "FilingChunk", Options{})
	hits, err := c.QueryKeyword(context.Background(), "capex", []string{"text"}, domain.SearchFilter{}, 5)
	if err != nil {
		t.Fatalf("query keyword: %v", err)
	}
	if hits[0].Score != 2.75 {
		t.Fatalf("expected parsed score 2.75, got %f", hits[0].Score)
	}
	if !strings.Contains(fake.lastQuery, "bm25") {
		t.Fatalf("expected bm25 query, got %q", fake.lastQuery)
	}
}

func TestQueryHybridIncludesAlpha(t *testing.T) {
	fake := &fakeWeaviate{classExists: true}
	fake.graphqlReply = getReply("FilingChunk", `[]`)
	srv := fake.server(t)
	defer srv.Close()

	c := New(srv.URL, "FilingChunk", Options{})
	if _, err := c.QueryHybrid(context.Background(), "q", []float32{0.5}, 0.3, domain.SearchFilter{}, 5); err != nil {
		t.Fatalf("query hybrid: %v", err)
	}
	if !strings.Contains(fake.lastQuery, "alpha: 0.3") {
		t.Fatalf("alpha missing from query %q", fake.lastQuery)
	}
}

func TestUpsertReplacesExistingObject(t *testing.T) {
	fake := &fakeWeaviate{classExists: true, postStatus: http.StatusUnprocessableEntity}
	srv := fake.server(t)
	defer srv.Close()

	c := New(srv.URL, "FilingChunk", Options{})
	chunk := domain.EmbeddedChunk{
		Chunk:     domain.Chunk{SourceDoc: "doc", ChunkID: 1, Type: domain.ChunkText, Text: "t"},
		Embedding: []float32{0.1},
	}
	if err := c.Upsert(context.Background(), []domain.EmbeddedChunk{chunk}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if fake.objectPosts != 1 || fake.objectPuts != 1 {
		t.Fatalf("expected create then replace, got posts=%d puts=%d", fake.objectPosts, fake.objectPuts)
	}
}

func TestObjectIDDeterministic(t *testing.T) {
	a := ObjectID("3M_2018_10K", 7)
	b := ObjectID("3M_2018_10K", 7)
	if a != b {
		t.Fatalf("object id must be deterministic: %s != %s", a, b)
	}
	if a == ObjectID("3M_2018_10K", 8) {
		t.Fatal("different chunks must get different ids")
	}
	if a == ObjectID("other_doc", 7) {
		t.Fatal("different documents must get different ids")
	}
}

func TestEnsureClassCreatesMissingSchemaOnce(t *testing.T) {
	fake := &fakeWeaviate{classExists: false}
	fake.graphqlReply = getReply("FilingChunk", `[]`)
	srv := fake.server(t)
	defer srv.Close()

	c := New(srv.URL, "FilingChunk", Options{})
	for i := 0; i < 3; i++ {
		if _, err := c.QueryKeyword(context.Background(), "q", []string{"text"}, domain.SearchFilter{}, 1); err != nil {
			t.Fatalf("query: %v", err)
		}
	}
	if fake.schemaCreates != 1 {
		t.Fatalf("expected exactly one schema create, got %d", fake.schemaCreates)
	}
}

func TestCountReadsAggregate(t *testing.T) {
	fake := &fakeWeaviate{classExists: true}
	fake.graphqlReply = `{"data": {"Aggregate": {"FilingChunk": [{"meta": {"count": 123}}]}}}`
	srv := fake.server(t)
	defer srv.Close()

	c := New(srv.URL, "FilingChunk", Options{})
	n, err := c.Count(context.Background(), domain.SearchFilter{SourceDoc: "doc"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 123 {
		t.Fatalf("expected 123, got %d", n)
	}
}

func TestGraphQLErrorSurfaces(t *testing.T) {
	fake := &fakeWeaviate{classExists: true}
	fake.graphqlReply = `{"errors": [{"message": "no such property"}]}`
	srv := fake.server(t)
	defer srv.Close()

	c := New(srv.URL, "FilingChunk", Options{})
	_, err := c.QueryKeyword(context.Background(), "q", []string{"bogus"}, domain.SearchFilter{}, 1)
	if err == nil || !strings.Contains(err.Error(), "no such property") {
		t.Fatalf("expected graphql error surfaced, got %v", err)
	}
}
