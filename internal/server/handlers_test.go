package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*httptest.Server, *retrieval.Registry) {
	t.Helper()
	return newTestServerWithConfig(t, &config.ServerConfig{Host: "localhost", Port: 0})
}

func newTestServerWithConfig(t *testing.T, cfg *config.ServerConfig) (*httptest.Server, *retrieval.Registry) {
	t.Helper()
	embedder := embedding.NewMockEmbedder(8)
	factory := func() (*retrieval.Engine, error) {
		kw, err := keyword.NewBleveIndex()
		if err != nil {
			return nil, err
		}
		return retrieval.NewEngine(embedder, retrieval.WithKeywordIndex(kw))
	}
	sessions := retrieval.NewRegistry(factory)
	srv := NewServer(sessions, nil, metrics.New(), cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = sessions.Close()
	})
	return ts, sessions
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, data := do(t, ts, http.MethodPost, "/api/v1/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", resp.StatusCode, data)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID == "" {
		t.Fatal("empty session id")
	}
	return out.ID
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, data := do(t, ts, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"ok"`) {
		t.Fatalf("health: %d %s", resp.StatusCode, data)
	}
}

func TestIndexAndQuery(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts)

	docs := map[string]any{"documents": []models.Document{
		{ID: "a.txt", Chunks: []string{"alpha beta", "gamma delta"}},
		{ID: "b.txt", Chunks: []string{"epsilon"}},
	}}
	resp, data := do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/index", docs)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index: %d %s", resp.StatusCode, data)
	}
	var stats models.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalChunks != 3 || !stats.IsBuilt || !stats.Consistent() {
		t.Fatalf("stats = %+v", stats)
	}

	resp, data = do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/query",
		map[string]any{"query": "gamma delta", "top_k": 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query: %d %s", resp.StatusCode, data)
	}
	var out queryResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Matches) != 2 {
		t.Fatalf("matches = %+v, want 2", out.Matches)
	}
	if out.Matches[0].Chunk != "gamma delta" || out.Matches[0].DocumentID != "a.txt" {
		t.Fatalf("top match = %+v", out.Matches[0])
	}
	if out.Matches[0].Similarity != 1 {
		t.Fatalf("exact match similarity = %v, want 1", out.Matches[0].Similarity)
	}
}

func TestIndexTexts(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts)
	body := map[string]any{"texts": []map[string]string{{"id": "note", "text": "one two three"}}}
	resp, data := do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/index", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index: %d %s", resp.StatusCode, data)
	}
	resp, data = do(t, ts, http.MethodGet, "/api/v1/sessions/"+id+"/stats", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"total_chunks":1`) {
		t.Fatalf("stats: %d %s", resp.StatusCode, data)
	}
}

func TestKeywordDidYouMean(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts)
	docs := map[string]any{"documents": []models.Document{
		{ID: "fox", Chunks: []string{"the quick brown fox jumps"}},
	}}
	if resp, data := do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/index", docs); resp.StatusCode != http.StatusOK {
		t.Fatalf("index: %d %s", resp.StatusCode, data)
	}
	resp, data := do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/keyword", map[string]any{"query": "quick browm"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("keyword: %d %s", resp.StatusCode, data)
	}
	var out keywordResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Matches) != 1 || out.Matches[0].DocumentID != "fox" {
		t.Fatalf("matches = %+v", out.Matches)
	}
	if out.DidYouMean != "quick brown" {
		t.Fatalf("did_you_mean = %q, want %q", out.DidYouMean, "quick brown")
	}
}

func TestKeywordSearchOptions(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts)
	docs := map[string]any{"documents": []models.Document{
		{ID: "fox", Chunks: []string{"the quick brown fox jumps"}},
		{ID: "dog", Chunks: []string{"a lazy dog sleeps"}},
	}}
	if resp, data := do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/index", docs); resp.StatusCode != http.StatusOK {
		t.Fatalf("index: %d %s", resp.StatusCode, data)
	}

	tests := []struct {
		name  string
		body  map[string]any
		want  int
		first string
	}{
		{"plain misspelling", map[string]any{"query": "quikc"}, http.StatusOK, ""},
		{"fuzzy misspelling", map[string]any{"query": "quikc", "fuzzy": true, "fuzziness": 2}, http.StatusOK, "fox"},
		{"doc boost", map[string]any{"query": "dog", "doc_boost": 3}, http.StatusOK, "dog"},
		{"fuzziness out of range", map[string]any{"query": "quick", "fuzzy": true, "fuzziness": 5}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/keyword", tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.want, data)
			}
			if tt.want != http.StatusOK {
				return
			}
			var out keywordResponse
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatal(err)
			}
			if tt.first == "" {
				if len(out.Matches) != 0 {
					t.Fatalf("matches = %+v, want none", out.Matches)
				}
				return
			}
			if len(out.Matches) == 0 || out.Matches[0].DocumentID != tt.first {
				t.Fatalf("matches = %+v, want %s first", out.Matches, tt.first)
			}
		})
	}
}

func TestRequestBodyLimit(t *testing.T) {
	ts, _ := newTestServerWithConfig(t, &config.ServerConfig{Host: "localhost", MaxBodyBytes: 64})
	id := createSession(t, ts)

	big := map[string]any{"texts": []map[string]string{{"id": "big", "text": strings.Repeat("word ", 100)}}}
	resp, data := do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/index", big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", resp.StatusCode, data)
	}
	small := map[string]any{"texts": []map[string]string{{"id": "s", "text": "tiny"}}}
	if resp, data := do(t, ts, http.MethodPost, "/api/v1/sessions/"+id+"/index", small); resp.StatusCode != http.StatusOK {
		t.Fatalf("small body: status %d: %s", resp.StatusCode, data)
	}
}

func TestErrorMapping(t *testing.T) {
	ts, _ := newTestServer(t)
	id := createSession(t, ts)
	base := "/api/v1/sessions/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown session", http.MethodPost, "/api/v1/sessions/missing/query", map[string]any{"query": "x"}, http.StatusNotFound},
		{"query before build", http.MethodPost, base + "/query", map[string]any{"query": "x"}, http.StatusConflict},
		{"keyword before build", http.MethodPost, base + "/keyword", map[string]any{"query": "x"}, http.StatusConflict},
		{"empty corpus", http.MethodPost, base + "/index", map[string]any{"documents": []models.Document{{ID: "a", Chunks: []string{" "}}}}, http.StatusBadRequest},
		{"bad body", http.MethodPost, base + "/query", "not an object", http.StatusBadRequest},
		{"delete unknown", http.MethodDelete, "/api/v1/sessions/missing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, ts, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.want, data)
			}
		})
	}

	docs := map[string]any{"documents": []models.Document{{ID: "a", Chunks: []string{"text"}}}}
	if resp, data := do(t, ts, http.MethodPost, base+"/index", docs); resp.StatusCode != http.StatusOK {
		t.Fatalf("index: %d %s", resp.StatusCode, data)
	}
	for _, body := range []map[string]any{{"query": "  "}, {"query": "x", "top_k": -1}} {
		if resp, data := do(t, ts, http.MethodPost, base+"/query", body); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %v: status %d, want 400: %s", body, resp.StatusCode, data)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	ts, sessions := newTestServer(t)
	id := createSession(t, ts)
	if resp, data := do(t, ts, http.MethodDelete, "/api/v1/sessions/"+id, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: %d %s", resp.StatusCode, data)
	}
	if len(sessions.IDs()) != 0 {
		t.Fatalf("sessions left: %v", sessions.IDs())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	do(t, ts, http.MethodGet, "/health", nil)
	resp, data := do(t, ts, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), `kotae_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Fatalf("metrics missing health request:\n%s", data)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidQuery, http.StatusBadRequest},
		{models.ErrEmptyCorpus, http.StatusBadRequest},
		{models.ErrInvalidConfiguration, http.StatusBadRequest},
		{models.ErrIndexNotReady, http.StatusConflict},
		{retrieval.ErrSessionNotFound, http.StatusNotFound},
		{models.ErrEmbeddingFailure, http.StatusBadGateway},
		{models.ErrInvalidIndex, http.StatusInternalServerError},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
