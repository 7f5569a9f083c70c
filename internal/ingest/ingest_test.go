package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/embedding"
	"github.com/maane-ai/maane/internal/ledger"
	"github.com/maane-ai/maane/internal/models"
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

type failingEmbedder struct {
	embedding.Embedder
}

func (f *failingEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, apperr.New(apperr.CategoryProvider, "embedding request failed")
}

func newTestService(t *testing.T, ext *stubExtractor, emb embedding.Embedder) (*Service, *vector.Handle, *ledger.Ledger) {
	t.Helper()
	seg, err := segment.New(100, 20)
	if err != nil {
		t.Fatalf("segment.New failed: %v", err)
	}
	ldg, err := ledger.Open(filepath.Join(t.TempDir(), "queries.db"))
	if err != nil {
		t.Fatalf("ledger.Open failed: %v", err)
	}
	t.Cleanup(func() { ldg.Close() })
	handle := vector.NewHandle()
	snapshotPath := filepath.Join(t.TempDir(), "snapshot.bin")
	svc := NewService(ext, seg, emb, handle, ldg, zap.NewNop(), snapshotPath, 1024, 5*time.Second)
	return svc, handle, ldg
}

func hebrewPages() []models.Page {
	return []models.Page{
		{Number: 1, Text: "הפוליסה מכסה טיפולי פיזיותרפיה. העלות היא 8.22 ₪ לכל טיפול עד עשרים טיפולים בשנה."},
		{Number: 2, Text: "מעל 20 טיפולים העלות היא 21.86 ₪ לכל טיפול נוסף, בכפוף לאישור רופא."},
	}
}

func TestIngestSwapsIndex(t *testing.T) {
	svc, handle, ldg := newTestService(t, &stubExtractor{pages: hebrewPages()}, embedding.NewMockEmbedder(32))

	doc, err := svc.Ingest(context.Background(), "policy.pdf", []byte("payload"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if doc.FileName != "policy.pdf" {
		t.Errorf("file name = %q", doc.FileName)
	}
	if len(doc.Chunks) == 0 {
		t.Fatal("expected chunks")
	}

	snap, ok := handle.Snapshot()
	if !ok {
		t.Fatal("expected active snapshot after ingest")
	}
	if snap.DocumentID != doc.ID {
		t.Errorf("snapshot document = %q, want %q", snap.DocumentID, doc.ID)
	}

	meta, err := ldg.ActiveDocument(context.Background())
	if err != nil {
		t.Fatalf("ActiveDocument failed: %v", err)
	}
	if meta == nil || meta.ID != doc.ID {
		t.Errorf("ledger active document = %+v", meta)
	}
}

func TestIngestPersistsSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{pages: hebrewPages()}, embedding.NewMockEmbedder(32))
	doc, err := svc.Ingest(context.Background(), "policy.pdf", []byte("payload"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	loaded, err := vector.LoadSnapshot(svc.snapshotPath, 32)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded.DocumentID != doc.ID {
		t.Errorf("persisted snapshot document = %q, want %q", loaded.DocumentID, doc.ID)
	}
}

func TestIngestPayloadTooLarge(t *testing.T) {
	svc, handle, _ := newTestService(t, &stubExtractor{pages: hebrewPages()}, embedding.NewMockEmbedder(32))
	payload := make([]byte, 2048)
	_, err := svc.Ingest(context.Background(), "big.pdf", payload)
	if apperr.CategoryOf(err) != apperr.CategoryPayloadTooLarge {
		t.Fatalf("expected payload_too_large, got %v", err)
	}
	if _, ok := handle.Snapshot(); ok {
		t.Error("index should stay empty after rejected payload")
	}
}

func TestIngestExtractionFailureKeepsOldIndex(t *testing.T) {
	svc, handle, _ := newTestService(t, &stubExtractor{pages: hebrewPages()}, embedding.NewMockEmbedder(32))
	first, err := svc.Ingest(context.Background(), "policy.pdf", []byte("payload"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	svc.extractor = &stubExtractor{err: apperr.New(apperr.CategoryExtraction, "unsupported or corrupt document")}
	_, err = svc.Ingest(context.Background(), "broken.pdf", []byte("payload"))
	if apperr.CategoryOf(err) != apperr.CategoryExtraction {
		t.Fatalf("expected extraction error, got %v", err)
	}

	snap, ok := handle.Snapshot()
	if !ok || snap.DocumentID != first.ID {
		t.Error("failed ingest must not disturb the active index")
	}
}

func TestIngestEmptyPagesRejected(t *testing.T) {
	svc, _, _ := newTestService(t, &stubExtractor{pages: []models.Page{{Number: 1, Text: "   "}}}, embedding.NewMockEmbedder(32))
	_, err := svc.Ingest(context.Background(), "empty.pdf", []byte("payload"))
	if apperr.CategoryOf(err) != apperr.CategoryExtraction {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestIngestEmbedderFailureKeepsOldIndex(t *testing.T) {
	svc, handle, _ := newTestService(t, &stubExtractor{pages: hebrewPages()}, &failingEmbedder{})
	_, err := svc.Ingest(context.Background(), "policy.pdf", []byte("payload"))
	if apperr.CategoryOf(err) != apperr.CategoryProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
	if _, ok := handle.Snapshot(); ok {
		t.Error("index should stay empty after embedder failure")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Error("expected apperr.Error")
	}
}
