package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maane-ai/maane/internal/apperr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "debug: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not parsed")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Retrieval.ChunkSize != 600 || cfg.Retrieval.ChunkOverlap != 120 {
		t.Errorf("retrieval defaults = %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("top_k = %d, want 4", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.SimilarityFloor != 0.7 {
		t.Errorf("similarity_floor = %f, want 0.7", cfg.Retrieval.SimilarityFloor)
	}
	if cfg.Document.MaxUploadBytes != 10<<20 {
		t.Errorf("max_upload_bytes = %d, want 10MiB", cfg.Document.MaxUploadBytes)
	}
	if cfg.Embedding.Provider != "openai" || cfg.Embedding.Dimensions != 1536 {
		t.Errorf("embedding defaults = %+v", cfg.Embedding)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9090
retrieval:
  chunk_size: 400
  chunk_overlap: 80
  top_k: 6
  similarity_floor: 0.5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Retrieval.ChunkSize != 400 || cfg.Retrieval.SimilarityFloor != 0.5 {
		t.Errorf("retrieval = %+v", cfg.Retrieval)
	}
}

func TestLoadKeepsExplicitZeroSimilarityFloor(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  similarity_floor: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Retrieval.SimilarityFloor != 0 {
		t.Errorf("similarity_floor = %f, want 0 (disabled)", cfg.Retrieval.SimilarityFloor)
	}
}

func TestLoadRejectsInvalidOverlap(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  chunk_size: 100
  chunk_overlap: 100
`)
	_, err := Load(path)
	if apperr.CategoryOf(err) != apperr.CategoryConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLoadRejectsBadSimilarityFloor(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  similarity_floor: 1.5
`)
	_, err := Load(path)
	if apperr.CategoryOf(err) != apperr.CategoryConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExpandPathRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: ./data/queries.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := filepath.Join(filepath.Dir(path), "data/queries.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
}
