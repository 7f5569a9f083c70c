// Package ingest turns a source document into the active searchable index.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/embedding"
	"github.com/maane-ai/maane/internal/extract"
	"github.com/maane-ai/maane/internal/ledger"
	"github.com/maane-ai/maane/internal/models"
	"github.com/maane-ai/maane/internal/segment"
	"github.com/maane-ai/maane/internal/vector"
)

// Service runs the ingest pipeline: extract, segment, embed, index, swap.
type Service struct {
	extractor      extract.Extractor
	segmenter      *segment.Segmenter
	embedder       embedding.Embedder
	handle         *vector.Handle
	ledger         *ledger.Ledger
	logger         *zap.Logger
	snapshotPath   string
	maxUploadBytes int64
	embedTimeout   time.Duration
}

// NewService wires the ingest pipeline.
func NewService(
	extractor extract.Extractor,
	segmenter *segment.Segmenter,
	embedder embedding.Embedder,
	handle *vector.Handle,
	ldg *ledger.Ledger,
	logger *zap.Logger,
	snapshotPath string,
	maxUploadBytes int64,
	embedTimeout time.Duration,
) *Service {
	return &Service{
		extractor:      extractor,
		segmenter:      segmenter,
		embedder:       embedder,
		handle:         handle,
		ledger:         ldg,
		logger:         logger,
		snapshotPath:   snapshotPath,
		maxUploadBytes: maxUploadBytes,
		embedTimeout:   embedTimeout,
	}
}

// Ingest processes a document payload and swaps in the resulting index.
// On any failure the previously active index stays in place.
func (s *Service) Ingest(ctx context.Context, fileName string, payload []byte) (*models.Document, error) {
	if s.maxUploadBytes > 0 && int64(len(payload)) > s.maxUploadBytes {
		return nil, apperr.Newf(apperr.CategoryPayloadTooLarge, "document exceeds size limit",
			"limit %d bytes, got %d", s.maxUploadBytes, len(payload))
	}

	pages, err := s.extractor.Extract(payload)
	if err != nil {
		return nil, err
	}

	chunks := s.segmenter.Segment(pages)
	if len(chunks) == 0 {
		return nil, apperr.New(apperr.CategoryExtraction,
			"no text could be extracted from the document; it might be a scanned image")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embedCtx := ctx
	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}
	vectors, err := s.embedder.EmbedBatch(embedCtx, texts)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:        uuid.New().String(),
		FileName:  fileName,
		Pages:     pages,
		Chunks:    chunks,
		CreatedAt: time.Now().UTC(),
	}

	snapshot, err := vector.BuildSnapshot(doc.ID, s.embedder.Dimensions(), chunks, vectors)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	s.handle.Swap(snapshot)

	if err := snapshot.Save(s.snapshotPath); err != nil {
		s.logger.Warn("failed to persist index snapshot", zap.Error(err))
	}

	s.logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.String("file_name", fileName),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))

	return doc, nil
}
