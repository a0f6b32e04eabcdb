package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"go.uber.org/zap"
)

type indexRequest struct {
	Documents []models.Document `json:"documents,omitempty"`
	Texts     []textInput       `json:"texts,omitempty"`
}

type textInput struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type queryRequest struct {
	Query               string   `json:"query"`
	TopK                int      `json:"top_k,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

type keywordRequest struct {
	queryRequest
	Fuzzy     bool    `json:"fuzzy,omitempty"`
	Fuzziness int     `json:"fuzziness,omitempty"`
	DocBoost  float64 `json:"doc_boost,omitempty"`
}

// searchOptions returns nil when the request asks for a plain match query.
func (k keywordRequest) searchOptions() *keyword.SearchOptions {
	if !k.Fuzzy && k.Fuzziness == 0 && k.DocBoost == 0 {
		return nil
	}
	return &keyword.SearchOptions{FuzzyEnabled: k.Fuzzy, Fuzziness: k.Fuzziness, DocumentBoost: k.DocBoost}
}

type queryResponse struct {
	Query   string              `json:"query"`
	Matches []models.ChunkMatch `json:"matches"`
}

type keywordResponse struct {
	Query      string                `json:"query"`
	Matches    []models.KeywordMatch `json:"matches"`
	DidYouMean string                `json:"did_you_mean,omitempty"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string][]string{"sessions": s.sessions.IDs()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, _, err := s.sessions.Create()
	if err != nil {
		s.respondFailure(w, "create session", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		s.respondFailure(w, "delete session", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.session(w, r)
	if !ok {
		return
	}
	var req indexRequest
	if !s.decode(w, r, &req) {
		return
	}
	docs := models.Documents(req.Documents)
	for _, t := range req.Texts {
		doc, err := s.ingestor.IngestText(t.ID, t.Text)
		if err != nil {
			s.respondFailure(w, "chunk text", err)
			return
		}
		docs = append(docs, doc)
	}
	s.logger.Debug("index request",
		zap.String("session", chi.URLParam(r, "id")),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", docs.ChunkCount()))
	if err := engine.BuildIndex(r.Context(), docs); err != nil {
		s.respondFailure(w, "build index", err)
		return
	}
	s.respondJSON(w, http.StatusOK, engine.Stats())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.session(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	matches, err := engine.Query(r.Context(), req.Query, models.QueryOptions{
		TopK:                req.TopK,
		SimilarityThreshold: req.SimilarityThreshold,
	})
	if err != nil {
		s.respondFailure(w, "query", err)
		return
	}
	s.respondJSON(w, http.StatusOK, queryResponse{Query: req.Query, Matches: matches})
}

func (s *Server) handleKeyword(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.session(w, r)
	if !ok {
		return
	}
	var req keywordRequest
	if !s.decode(w, r, &req) {
		return
	}
	matches, err := engine.QueryKeyword(r.Context(), req.Query, req.TopK, req.searchOptions())
	if err != nil {
		s.respondFailure(w, "keyword query", err)
		return
	}
	resp := keywordResponse{Query: req.Query, Matches: matches}
	if corrected, changed := engine.Suggest(req.Query); changed {
		resp.DidYouMean = corrected
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, engine.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*retrieval.Engine, bool) {
	engine, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "lookup session", err)
		return nil, false
	}
	return engine, true
}

// decode reads a JSON body of at most the configured size into v. It writes
// the error response itself and reports whether the handler should go on.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	limit := int64(config.DefaultMaxBodyBytes)
	if s.config != nil && s.config.MaxBodyBytes > 0 {
		limit = s.config.MaxBodyBytes
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	s.respondError(w, http.StatusBadRequest, "invalid request body")
	return false
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, retrieval.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidQuery),
		errors.Is(err, models.ErrEmptyCorpus),
		errors.Is(err, models.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrIndexNotReady):
		return http.StatusConflict
	case errors.Is(err, models.ErrEmbeddingFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, fmt.Sprintf("%s: %v", op, err))
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
