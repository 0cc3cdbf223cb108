package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/kifiya-ai/kavas/history"
	"github.com/kifiya-ai/kavas/knowledge"
	"github.com/kifiya-ai/kavas/workflow"
)

// QueryRunner answers a question through the retrieval workflow.
type QueryRunner interface {
	Run(ctx context.Context, question string) (workflow.State, error)
}

// HistoryService persists and recalls per-user conversations.
type HistoryService interface {
	Save(ctx context.Context, userID, userMessage, aiMessage string) error
	Get(ctx context.Context, userID string) (history.History, error)
}

// RelatedPageFinder enriches answer sources with pages linked from the
// same part of the site.
type RelatedPageFinder interface {
	RelatedPages(ctx context.Context, urls []string) (map[string][]knowledge.RelatedPage, error)
}

// Ops bundles the administrative operations the server exposes. Any nil
// field disables its endpoint with a 503.
type Ops struct {
	Crawl  func(ctx context.Context) (int, error)
	Ingest func(ctx context.Context, dir string) (int, error)
	Clear  func(ctx context.Context) error
}

// Server exposes the HTTP API over injected, pre-constructed
// dependencies.
type Server struct {
	runner  QueryRunner
	chats   HistoryService
	related RelatedPageFinder
	ops     Ops
	logger  *log.Logger
	handler http.Handler
}

type RelatedPage struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type countResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type queryRequest struct {
	Question string `json:"question"`
	Prompt   string `json:"prompt"`
	UserID   string `json:"user_id"`
}

type queryResponse struct {
	Generation string        `json:"generation"`
	Rewrites   int           `json:"rewrites"`
	Documents  []querySource `json:"documents"`
}

type querySource struct {
	SourceURL string        `json:"source_url"`
	Title     string        `json:"title"`
	Section   string        `json:"section,omitempty"`
	Score     float64       `json:"score"`
	Related   []RelatedPage `json:"related,omitempty"`
}

type historyResponse struct {
	UserID  string         `json:"user_id"`
	Kind    string         `json:"kind"`
	Summary string         `json:"summary,omitempty"`
	Turns   []history.Turn `json:"turns"`
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

// New constructs a Server over the given collaborators.
func New(runner QueryRunner, chats HistoryService, related RelatedPageFinder, ops Ops, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{runner: runner, chats: chats, related: related, ops: ops, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rag/query", s.handleQuery)
	mux.HandleFunc("/rag/history", s.handleHistory)
	mux.HandleFunc("/v1/crawl", s.handleCrawl)
	mux.HandleFunc("/v1/ingest", s.handleIngest)
	mux.HandleFunc("/v1/clear", s.handleClear)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = strings.TrimSpace(req.Prompt)
	}
	if question == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	ctx := r.Context()

	state, err := s.runner.Run(ctx, question)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("query failed: %w", err))
		return
	}

	if userID := strings.TrimSpace(req.UserID); userID != "" && s.chats != nil {
		if err := s.chats.Save(ctx, userID, question, state.Generation); err != nil {
			s.logger.Printf("save chat history for %s: %v", userID, err)
		}
	}

	s.writeJSON(w, http.StatusOK, s.transformState(ctx, state))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("user is required"))
		return
	}
	if s.chats == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("chat history is not configured"))
		return
	}

	hist, err := s.chats.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("no chat history for %s", userID))
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("load chat history: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, historyResponse{
		UserID:  userID,
		Kind:    string(hist.Kind),
		Summary: hist.Summary,
		Turns:   hist.Turns,
	})
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.ops.Crawl == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("crawl is not configured"))
		return
	}

	count, err := s.ops.Crawl(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("crawl failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, countResponse{Message: "crawl complete", Count: count})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.ops.Ingest == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("ingest is not configured"))
		return
	}

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	count, err := s.ops.Ingest(r.Context(), strings.TrimSpace(req.Dir))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("ingestion failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, countResponse{Message: "ingestion complete", Count: count})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	if s.ops.Clear == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("clear is not configured"))
		return
	}

	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if !req.Confirm {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("confirm must be true to clear data"))
		return
	}

	if err := s.ops.Clear(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "rag data cleared"})
}

func (s *Server) transformState(ctx context.Context, state workflow.State) queryResponse {
	resp := queryResponse{Generation: state.Generation, Rewrites: state.Rewrites}
	if len(state.Documents) == 0 {
		return resp
	}

	var related map[string][]knowledge.RelatedPage
	if s.related != nil {
		urls := make([]string, 0, len(state.Documents))
		seen := make(map[string]struct{}, len(state.Documents))
		for _, doc := range state.Documents {
			if _, ok := seen[doc.SourceURL]; ok {
				continue
			}
			seen[doc.SourceURL] = struct{}{}
			urls = append(urls, doc.SourceURL)
		}

		var err error
		related, err = s.related.RelatedPages(ctx, urls)
		if err != nil {
			s.logger.Printf("related pages lookup: %v", err)
		}
	}

	sources := make([]querySource, len(state.Documents))
	for i, doc := range state.Documents {
		sources[i] = querySource{
			SourceURL: doc.SourceURL,
			Title:     doc.Title,
			Section:   doc.Section,
			Score:     doc.Score,
			Related:   convertRelated(related[doc.SourceURL]),
		}
	}
	resp.Documents = sources
	return resp
}

func convertRelated(pages []knowledge.RelatedPage) []RelatedPage {
	if len(pages) == 0 {
		return nil
	}

	converted := make([]RelatedPage, len(pages))
	for i, page := range pages {
		converted[i] = RelatedPage{URL: page.URL, Title: page.Title}
	}
	return converted
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
