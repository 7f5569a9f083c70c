package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/maane-ai/maane/internal/config"
	"github.com/maane-ai/maane/internal/generation"
	"github.com/maane-ai/maane/internal/ingest"
	"github.com/maane-ai/maane/internal/ledger"
	"github.com/maane-ai/maane/internal/models"
	"github.com/maane-ai/maane/internal/pipeline"
	"github.com/maane-ai/maane/internal/segment"
	"github.com/maane-ai/maane/internal/vector"
)

type stubExtractor struct {
	pages []models.Page
	err   error
}

func (s *stubExtractor) Extract(_ []byte) ([]models.Page, error) {
	return s.pages, s.err
}

// queryEchoEmbedder gives the question and every chunk the same direction so
// every retrieval clears the similarity floor.
type queryEchoEmbedder struct{}

func (queryEchoEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e queryEchoEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (queryEchoEmbedder) Dimensions() int { return 3 }
func (queryEchoEmbedder) Close() error    { return nil }

func newTestServer(t *testing.T) (*Server, *generation.MockGenerator) {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "queries.db")
	cfg.Storage.IndexPath = filepath.Join(t.TempDir(), "snapshot.bin")
	cfg.Retrieval.ChunkSize = 100
	cfg.Retrieval.ChunkOverlap = 20

	ldg, err := ledger.Open(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatalf("ledger.Open failed: %v", err)
	}
	t.Cleanup(func() { ldg.Close() })

	seg, err := segment.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		t.Fatalf("segment.New failed: %v", err)
	}

	pages := []models.Page{
		{Number: 1, Text: "הפוליסה מכסה טיפולי פיזיותרפיה. העלות היא 8.22 ₪ לכל טיפול."},
		{Number: 2, Text: "מעל 20 טיפולים העלות היא 21.86 ₪ לכל טיפול נוסף."},
	}

	emb := queryEchoEmbedder{}
	gen := generation.NewMockGenerator("העלות היא 8.22 ₪")
	handle := vector.NewHandle()
	logger := zap.NewNop()

	ingestor := ingest.NewService(&stubExtractor{pages: pages}, seg, emb, handle, ldg,
		logger, cfg.Storage.IndexPath, cfg.Document.MaxUploadBytes, 5*time.Second)
	pl := pipeline.New(emb, gen, handle, logger,
		cfg.Retrieval.TopK, cfg.Retrieval.SimilarityFloor, 5*time.Second, 5*time.Second)

	return NewServer(ingestor, pl, ldg, handle, cfg, logger), gen
}

func ingestTestDocument(t *testing.T, srv *Server) models.IngestResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents?file_name=policy.pdf",
		bytes.NewReader([]byte("%PDF-1.4 test payload")))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	return resp
}

func TestIngestEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := ingestTestDocument(t, srv)
	if resp.DocumentID == "" {
		t.Error("expected document id")
	}
	if resp.FileName != "policy.pdf" {
		t.Errorf("file name = %q", resp.FileName)
	}
	if resp.Pages != 2 {
		t.Errorf("pages = %d, want 2", resp.Pages)
	}
	if resp.Chunks == 0 {
		t.Error("expected chunks")
	}
}

func TestIngestMultipartEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "policy.pdf")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	fw.Write([]byte("%PDF-1.4 test payload"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.IngestResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.FileName != "policy.pdf" {
		t.Errorf("file name = %q", resp.FileName)
	}
}

func TestIngestPayloadTooLarge(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := make([]byte, 11<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
	var errResp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Category != "payload_too_large" {
		t.Errorf("category = %q", errResp.Category)
	}
	if !strings.Contains(errResp.Detail, "limit 10485760 bytes") {
		t.Errorf("detail missing limit: %q", errResp.Detail)
	}
	if !strings.Contains(errResp.Detail, "got 11534336") {
		t.Errorf("detail missing actual size: %q", errResp.Detail)
	}
}

func TestIngestAtLimitAccepted(t *testing.T) {
	srv, _ := newTestServer(t)
	payload := make([]byte, 10<<20)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", w.Code, w.Body.String())
	}
}

func TestQuestionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ingestTestDocument(t, srv)

	body, _ := json.Marshal(models.QuestionRequest{Input: "כמה עולה הטיפול?"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var rec models.QueryRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}
	if !strings.Contains(rec.Answer, "8.22") {
		t.Errorf("answer = %q", rec.Answer)
	}
}

func TestQuestionClientSuppliedID(t *testing.T) {
	srv, _ := newTestServer(t)
	ingestTestDocument(t, srv)

	body, _ := json.Marshal(models.QuestionRequest{Input: "שאלה", ID: "my-id"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	// Same id again is a conflict.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewReader(body))
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate id status = %d, want 409", w.Code)
	}
}

func TestQuestionBeforeIngest(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(models.QuestionRequest{Input: "שאלה"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var errResp models.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &errResp)
	if errResp.Category != "not_initialized" {
		t.Errorf("category = %q", errResp.Category)
	}
}

func TestQuestionEmptyValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	ingestTestDocument(t, srv)

	body, _ := json.Marshal(models.QuestionRequest{Input: "   "})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestQuestionFailureRecordedInLedger(t *testing.T) {
	srv, gen := newTestServer(t)
	ingestTestDocument(t, srv)
	gen.Err = context.DeadlineExceeded

	body, _ := json.Marshal(models.QuestionRequest{Input: "שאלה", ID: "failed-query"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code == http.StatusOK {
		t.Fatal("expected failure response")
	}

	rec, err := srv.ledger.Get(context.Background(), "failed-query")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Status != models.StatusFailed {
		t.Errorf("ledger status = %s, want failed", rec.Status)
	}
}

func TestGetAnswerEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	ingestTestDocument(t, srv)

	body, _ := json.Marshal(models.QuestionRequest{Input: "שאלה", ID: "lookup-id"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions", bytes.NewReader(body))
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/answers/lookup-id", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var rec models.QueryRecord
	json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.ID != "lookup-id" || rec.Status != models.StatusCompleted {
		t.Errorf("record = %+v", rec)
	}
}

func TestGetAnswerNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/answers/missing", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var status map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &status)
	if status["initialized"] != false {
		t.Error("expected initialized=false before ingest")
	}
	if _, ok := status["index"]; ok {
		t.Error("expected no index block before ingest")
	}
	conf, ok := status["config"].(map[string]interface{})
	if !ok {
		t.Fatal("expected config block in status")
	}
	if conf["top_k"] != float64(4) {
		t.Errorf("top_k = %v", conf["top_k"])
	}

	ingestTestDocument(t, srv)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	json.Unmarshal(w.Body.Bytes(), &status)
	if status["initialized"] != true {
		t.Error("expected initialized=true after ingest")
	}
	index, ok := status["index"].(map[string]interface{})
	if !ok {
		t.Fatal("expected index block after ingest")
	}
	if index["chunks"] == float64(0) {
		t.Error("expected indexed chunks after ingest")
	}
}

func TestStatusNotInitializedWithoutLiveIndex(t *testing.T) {
	// A recorded document without an in-memory index (a restart after a failed
	// snapshot persist) must not report the service as ready for questions.
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	ldg, err := ledger.Open(filepath.Join(t.TempDir(), "queries.db"))
	if err != nil {
		t.Fatalf("ledger.Open failed: %v", err)
	}
	t.Cleanup(func() { ldg.Close() })

	doc := &models.Document{
		ID:       "doc-1",
		FileName: "policy.pdf",
		Pages:    []models.Page{{Number: 1, Text: "טקסט"}},
		Chunks:   []models.Chunk{{Index: 0, Page: 1, Text: "טקסט"}},
	}
	if err := ldg.SaveDocument(context.Background(), doc); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	srv := NewServer(nil, nil, ldg, vector.NewHandle(), cfg, zap.NewNop())
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	var status map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &status)
	if status["initialized"] != false {
		t.Error("expected initialized=false without a live index")
	}
	if _, ok := status["document"]; !ok {
		t.Error("expected the recorded document to still be reported")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var health map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &health)
	if health["status"] != "ok" {
		t.Errorf("health status = %v", health["status"])
	}
	if health["index_active"] != false {
		t.Error("expected index_active=false before ingest")
	}

	ingestTestDocument(t, srv)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	json.Unmarshal(w.Body.Bytes(), &health)
	if health["index_active"] != true {
		t.Error("expected index_active=true after ingest")
	}
}
