// Package main is the Maane CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/maane-ai/maane/internal/config"
	"github.com/maane-ai/maane/internal/embedding"
	"github.com/maane-ai/maane/internal/extract"
	"github.com/maane-ai/maane/internal/generation"
	"github.com/maane-ai/maane/internal/ingest"
	"github.com/maane-ai/maane/internal/ledger"
	"github.com/maane-ai/maane/internal/models"
	"github.com/maane-ai/maane/internal/pipeline"
	"github.com/maane-ai/maane/internal/segment"
	"github.com/maane-ai/maane/internal/server"
	"github.com/maane-ai/maane/internal/vector"
	"github.com/maane-ai/maane/internal/watcher"
	"github.com/maane-ai/maane/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/maane/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "answer":
		runAnswer()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("maane version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Document.Watch && cfg.Document.Path != "" {
		ingestor := components.Ingestor
		watchSvc = watcher.New(cfg.Document.Path, func(path string) {
			payload, readErr := os.ReadFile(path)
			if readErr != nil {
				logger.Warn("watch read file failed", zap.String("path", path), zap.Error(readErr))
				return
			}
			if _, ingErr := ingestor.Ingest(context.Background(), filepath.Base(path), payload); ingErr != nil {
				logger.Warn("watch re-ingest failed", zap.String("path", path), zap.Error(ingErr))
			}
		}, logger)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Warn("Failed to start document watcher", zap.Error(err))
			watchSvc = nil
		}
	}

	if cfg.Document.Path != "" {
		if _, ok := components.Handle.Snapshot(); !ok {
			if payload, readErr := os.ReadFile(cfg.Document.Path); readErr == nil {
				if _, ingErr := components.Ingestor.Ingest(context.Background(), filepath.Base(cfg.Document.Path), payload); ingErr != nil {
					logger.Warn("initial ingest failed", zap.String("path", cfg.Document.Path), zap.Error(ingErr))
				}
			}
		}
	}

	srv := server.NewServer(components.Ingestor, components.Pipeline, components.Ledger, components.Handle, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", `server URL (empty = ingest directly without a running server)`)
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: maane ingest [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	payload, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read file: %v\n", err)
		os.Exit(1)
	}
	fileName := filepath.Base(path)

	if *serverURL != "" {
		resp, err := http.Post(
			*serverURL+"/api/v1/documents?file_name="+url.QueryEscape(fileName),
			"application/pdf", bytes.NewReader(payload))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Ingest failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out models.IngestResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Document ingested: %s (%d pages, %d chunks)\n", out.DocumentID, out.Pages, out.Chunks)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	doc, err := components.Ingestor.Ingest(context.Background(), fileName, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document ingested: %s (%d pages, %d chunks)\n", doc.ID, len(doc.Pages), len(doc.Chunks))
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	id := fs.String("id", "", "client-supplied query id")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: maane ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	body, _ := json.Marshal(models.QuestionRequest{Input: question, ID: *id})

	resp, err := http.Post(*serverURL+"/api/v1/questions", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Question failed (%d): %s\n", resp.StatusCode, string(payload))
		os.Exit(1)
	}
	var rec models.QueryRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("id: %s\n\n%s\n", rec.ID, rec.Answer)
}

func runAnswer() {
	fs := flag.NewFlagSet("answer", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: maane answer [flags] <query-id>")
		os.Exit(1)
	}
	resp, err := http.Get(*serverURL + "/api/v1/answers/" + url.PathEscape(fs.Arg(0)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Lookup failed (%d): %s\n", resp.StatusCode, string(payload))
		os.Exit(1)
	}
	var rec models.QueryRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("id:       %s\n", rec.ID)
	fmt.Printf("status:   %s\n", rec.Status)
	fmt.Printf("question: %s\n", rec.Question)
	if rec.Answer != "" {
		fmt.Printf("\n%s\n", rec.Answer)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
}

// Components holds initialized services.
type Components struct {
	Ledger    *ledger.Ledger
	Embedder  embedding.Embedder
	Generator generation.Generator
	Handle    *vector.Handle
	Ingestor  *ingest.Service
	Pipeline  *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	ldg, err := ledger.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		_ = ldg.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	generator, err := generation.New(cfg.Generation)
	if err != nil {
		_ = ldg.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	handle := vector.NewHandle()
	if cfg.Storage.IndexPath != "" {
		snapshot, loadErr := vector.LoadSnapshot(cfg.Storage.IndexPath, embedder.Dimensions())
		switch {
		case loadErr == nil:
			handle.Swap(snapshot)
			logger.Info("index snapshot loaded",
				zap.String("path", cfg.Storage.IndexPath),
				zap.String("document_id", snapshot.DocumentID),
				zap.Int("chunks", len(snapshot.Entries)))
		case errors.Is(loadErr, vector.ErrDimensionMismatch):
			_ = ldg.Close()
			_ = embedder.Close()
			_ = generator.Close()
			return nil, fmt.Errorf("index snapshot incompatible with configured dimensions: %w", loadErr)
		case !errors.Is(loadErr, vector.ErrNoSnapshot):
			logger.Warn("index snapshot load skipped", zap.String("path", cfg.Storage.IndexPath), zap.Error(loadErr))
		}
	}

	segmenter, err := segment.New(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		_ = ldg.Close()
		_ = embedder.Close()
		_ = generator.Close()
		return nil, fmt.Errorf("failed to initialize segmenter: %w", err)
	}

	ingestor := ingest.NewService(
		extract.NewPDFExtractor(),
		segmenter,
		embedder,
		handle,
		ldg,
		logger,
		cfg.Storage.IndexPath,
		cfg.Document.MaxUploadBytes,
		cfg.Embedding.Timeout(),
	)
	pl := pipeline.New(
		embedder,
		generator,
		handle,
		logger,
		cfg.Retrieval.TopK,
		cfg.Retrieval.SimilarityFloor,
		cfg.Embedding.Timeout(),
		cfg.Generation.Timeout(),
	)

	return &Components{
		Ledger:    ldg,
		Embedder:  embedder,
		Generator: generator,
		Handle:    handle,
		Ingestor:  ingestor,
		Pipeline:  pl,
	}, nil
}

func printUsage() {
	fmt.Println(`maane - Hebrew document question answering

Usage:
  maane server [flags]            Start the HTTP server
  maane ingest [flags] <file>     Ingest a PDF document
  maane ask [flags] <question>    Ask a question
  maane answer [flags] <id>       Look up a recorded answer
  maane status [flags]            Show service status
  maane version                   Show version
  maane help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/maane/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to ingest without a running server.

Ask/Answer/Status Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  maane server
  maane ingest policy.pdf
  maane ask "כמה עולה טיפול פיזיותרפיה?"
  maane ask --id my-query "מה תקופת האכשרה?"
  maane answer my-query
  maane status`)
}
