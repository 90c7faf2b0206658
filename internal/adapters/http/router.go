// Package httpadapter exposes the ingestion and QA pipelines over
// HTTP.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finraglab/finrag/internal/core/domain"
	"github.com/finraglab/finrag/internal/core/ports"
	"github.com/finraglab/finrag/internal/observability/metrics"
)

type Router struct {
	qa       ports.QAService
	ingestor ports.FilingIngestor
	repo     ports.FilingRepository
	index    ports.Index
	metrics  *metrics.HTTPMetrics
}

func NewRouter(
	qa ports.QAService,
	ingestor ports.FilingIngestor,
	repo ports.FilingRepository,
	index ports.Index,
	httpMetrics *metrics.HTTPMetrics,
) *Router {
	return &Router{
		qa:       qa,
		ingestor: ingestor,
		repo:     repo,
		index:    index,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/filings", rt.uploadFiling)
	mux.HandleFunc("/v1/filings/", rt.getFilingByID)
	mux.HandleFunc("/v1/qa/ask", rt.ask)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	return requestIDMiddleware(accessLogMiddleware(rt.metrics, mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadFiling(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	filing, err := rt.ingestor.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, filing)
}

func (rt *Router) getFilingByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/filings/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "filing id is required")
		return
	}

	filing, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	resp := filingResponse{Filing: filing}
	if rt.index != nil && filing.Status == domain.FilingIndexed {
		count, err := rt.index.Count(r.Context(), domain.SearchFilter{SourceDoc: filing.SourceDoc})
		if err != nil {
			slog.Warn("index count failed", "source_doc", filing.SourceDoc, "error", err)
		} else {
			resp.IndexedChunks = &count
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// filingResponse adds the live index count to the registry row so the
// status endpoint reports what is actually queryable.
type filingResponse struct {
	*domain.Filing
	IndexedChunks *int `json:"indexed_chunks,omitempty"`
}

type askRequest struct {
	Question  string `json:"question"`
	TopK      int    `json:"top_k"`
	SourceDoc string `json:"source_doc"`
}

type askResponse struct {
	Question  string            `json:"question"`
	Answer    string            `json:"answer"`
	Citations []domain.Citation `json:"citations"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	state, err := rt.qa.Ask(r.Context(), req.Question, req.TopK, req.SourceDoc)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Question:  state.Question,
		Answer:    state.Answer.Text,
		Citations: state.Answer.Citations,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
