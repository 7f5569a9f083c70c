package config

import "github.com/maane-ai/maane/internal/apperr"

// Validate rejects invalid settings eagerly, before any document is processed.
// Violations are configuration errors: fatal, never retried.
func (cfg *Config) Validate() error {
	if cfg.Retrieval.ChunkSize <= 0 {
		return apperr.Newf(apperr.CategoryConfiguration, "invalid segmentation settings",
			"chunk_size must be positive, got %d", cfg.Retrieval.ChunkSize)
	}
	if cfg.Retrieval.ChunkOverlap < 0 || cfg.Retrieval.ChunkOverlap >= cfg.Retrieval.ChunkSize {
		return apperr.Newf(apperr.CategoryConfiguration, "invalid segmentation settings",
			"chunk_overlap must be in [0, chunk_size), got overlap=%d chunk_size=%d",
			cfg.Retrieval.ChunkOverlap, cfg.Retrieval.ChunkSize)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return apperr.Newf(apperr.CategoryConfiguration, "invalid embedding settings",
			"dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.TopK <= 0 {
		return apperr.Newf(apperr.CategoryConfiguration, "invalid retrieval settings",
			"top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.SimilarityFloor < 0 || cfg.Retrieval.SimilarityFloor > 1 {
		return apperr.Newf(apperr.CategoryConfiguration, "invalid retrieval settings",
			"similarity_floor must be in [0, 1], got %g", cfg.Retrieval.SimilarityFloor)
	}
	if cfg.Document.MaxUploadBytes <= 0 {
		return apperr.Newf(apperr.CategoryConfiguration, "invalid document settings",
			"max_upload_bytes must be positive, got %d", cfg.Document.MaxUploadBytes)
	}
	return nil
}
