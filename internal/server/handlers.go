package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/models"
	"github.com/maane-ai/maane/pkg/utils"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	fileName, payload, err := s.readDocument(r)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.logger.Debug("ingest request", zap.String("file_name", fileName), zap.Int("bytes", len(payload)))

	doc, err := s.ingestor.Ingest(r.Context(), fileName, payload)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, models.IngestResponse{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		Pages:      len(doc.Pages),
		Chunks:     len(doc.Chunks),
	})
}

// readDocument accepts either a multipart upload under the "file" field or a
// raw request body. Reads are capped slightly above the configured limit so
// oversize payloads get the size error rather than a truncated ingest.
func (s *Server) readDocument(r *http.Request) (string, []byte, error) {
	limit := s.config.Document.MaxUploadBytes
	r.Body = http.MaxBytesReader(nil, r.Body, limit+1)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(limit + 1); err != nil {
			if isBodyTooLarge(err) {
				return "", nil, tooLargeError(limit, r.ContentLength)
			}
			return "", nil, apperr.Wrap(apperr.CategoryValidation, "invalid multipart body", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, apperr.Wrap(apperr.CategoryValidation, "missing file field", err)
		}
		defer file.Close()
		payload, err := readAll(file, limit)
		if err != nil {
			return "", nil, err
		}
		return header.Filename, payload, nil
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		if isBodyTooLarge(err) {
			return "", nil, tooLargeError(limit, r.ContentLength)
		}
		return "", nil, apperr.Wrap(apperr.CategoryValidation, "failed to read request body", err)
	}
	fileName := r.URL.Query().Get("file_name")
	if fileName == "" {
		fileName = "document.pdf"
	}
	return fileName, payload, nil
}

func readAll(f multipart.File, limit int64) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.CategoryValidation, "failed to read uploaded file", err)
	}
	return payload, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// tooLargeError reports both the limit and the size the client declared.
// ContentLength is -1 for chunked uploads, where the true size is unknown.
func tooLargeError(limit, contentLength int64) error {
	if contentLength < 0 {
		return apperr.Newf(apperr.CategoryPayloadTooLarge, "document exceeds size limit",
			"limit %d bytes", limit)
	}
	return apperr.Newf(apperr.CategoryPayloadTooLarge, "document exceeds size limit",
		"limit %d bytes, got %d", limit, contentLength)
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req models.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondAppError(w, apperr.Wrap(apperr.CategoryValidation, "invalid request body", err))
		return
	}
	s.logger.Debug("question request",
		zap.String("id", req.ID),
		zap.String("question", utils.Truncate(req.Input, 50)))

	rec, err := s.ledger.Create(r.Context(), req.ID, req.Input)
	if err != nil {
		s.respondAppError(w, err)
		return
	}

	// The ledger always records an outcome, even when the client goes away
	// mid-generation.
	runCtx := context.WithoutCancel(r.Context())
	outcome, err := s.pipeline.Answer(runCtx, req.Input)
	if err != nil {
		s.logger.Error("question failed",
			zap.String("id", rec.ID),
			zap.String("step", string(outcome.Step)),
			zap.Error(err))
		detail := apperr.As(err).Detail
		if detail == "" {
			detail = err.Error()
		}
		if ferr := s.ledger.Fail(runCtx, rec.ID, detail); ferr != nil {
			s.logger.Error("failed to record failure", zap.String("id", rec.ID), zap.Error(ferr))
		}
		s.respondAppError(w, err)
		return
	}

	if err := s.ledger.Complete(runCtx, rec.ID, outcome.Answer); err != nil {
		s.logger.Error("failed to record answer", zap.String("id", rec.ID), zap.Error(err))
		s.respondAppError(w, err)
		return
	}

	rec.Answer = outcome.Answer
	rec.Status = models.StatusCompleted
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := s.ledger.Count(ctx)
	if err != nil {
		s.logger.Error("status: count queries failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	doc, err := s.ledger.ActiveDocument(ctx)
	if err != nil {
		s.logger.Error("status: active document failed", zap.Error(err))
		s.respondAppError(w, err)
		return
	}
	// Questions are answered from the in-memory index, so initialized follows
	// the handle, not the documents table. The two can diverge when a snapshot
	// failed to persist before a restart.
	snap, active := s.handle.Snapshot()
	status := map[string]interface{}{
		"initialized": active,
		"queries":     count,
		"config": map[string]interface{}{
			"chunk_size":       s.config.Retrieval.ChunkSize,
			"chunk_overlap":    s.config.Retrieval.ChunkOverlap,
			"top_k":            s.config.Retrieval.TopK,
			"similarity_floor": s.config.Retrieval.SimilarityFloor,
			"embedding": map[string]interface{}{
				"provider":   s.config.Embedding.Provider,
				"model":      s.config.Embedding.Model,
				"dimensions": s.config.Embedding.Dimensions,
			},
		},
	}
	if active {
		status["index"] = map[string]interface{}{
			"document_id": snap.DocumentID,
			"chunks":      len(snap.Entries),
			"dimensions":  snap.Dimensions,
		}
	}
	if doc != nil {
		status["document"] = map[string]interface{}{
			"id":        doc.ID,
			"file_name": doc.FileName,
			"pages":     doc.Pages,
			"chunks":    doc.Chunks,
		}
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active := s.handle.Snapshot()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"index_active": active,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondAppError maps an error's category to an HTTP status and writes the
// structured error payload.
func (s *Server) respondAppError(w http.ResponseWriter, err error) {
	appErr := apperr.As(err)
	s.respondJSON(w, statusFor(appErr.Category), models.ErrorResponse{
		Category: string(appErr.Category),
		Message:  appErr.Message,
		Detail:   appErr.Detail,
	})
}

func statusFor(cat apperr.Category) int {
	switch cat {
	case apperr.CategoryValidation, apperr.CategoryExtraction:
		return http.StatusUnprocessableEntity
	case apperr.CategoryNotInitialized:
		return http.StatusBadRequest
	case apperr.CategoryConflict:
		return http.StatusConflict
	case apperr.CategoryNotFound:
		return http.StatusNotFound
	case apperr.CategoryPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.CategoryProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
