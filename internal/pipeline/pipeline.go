// Package pipeline answers questions against the active document index.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/embedding"
	"github.com/maane-ai/maane/internal/generation"
	"github.com/maane-ai/maane/internal/vector"
	"github.com/maane-ai/maane/pkg/utils"
)

// Step names the stage the pipeline reached. On failure it tells which
// stage gave up.
type Step string

const (
	StepReceived   Step = "RECEIVED"
	StepEmbedding  Step = "EMBEDDING_QUERY"
	StepRetrieving Step = "RETRIEVING"
	StepAssembling Step = "ASSEMBLING_CONTEXT"
	StepGenerating Step = "GENERATING"
	StepDone       Step = "DONE"
)

// NoAnswerText is returned when no passage clears the similarity floor.
const NoAnswerText = "לא נמצא מידע רלוונטי במסמך לשאלה זו."

// Outcome is the result of a pipeline run.
type Outcome struct {
	Answer  string
	Results []vector.Result
	Step    Step
}

// Pipeline embeds a question, retrieves passages, and generates an answer.
type Pipeline struct {
	embedder        embedding.Embedder
	generator       generation.Generator
	handle          *vector.Handle
	logger          *zap.Logger
	topK            int
	similarityFloor float64
	embedTimeout    time.Duration
	generateTimeout time.Duration
}

// New wires the question-answering pipeline.
func New(
	embedder embedding.Embedder,
	generator generation.Generator,
	handle *vector.Handle,
	logger *zap.Logger,
	topK int,
	similarityFloor float64,
	embedTimeout, generateTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		embedder:        embedder,
		generator:       generator,
		handle:          handle,
		logger:          logger,
		topK:            topK,
		similarityFloor: similarityFloor,
		embedTimeout:    embedTimeout,
		generateTimeout: generateTimeout,
	}
}

// Answer runs the pipeline for one question. The returned Outcome carries
// the step reached; on error the Outcome reports the failing step.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return &Outcome{Step: StepReceived}, apperr.New(apperr.CategoryValidation, "question cannot be empty")
	}

	snapshot, ok := p.handle.Snapshot()
	if !ok {
		return &Outcome{Step: StepReceived}, apperr.New(apperr.CategoryNotInitialized,
			"no document has been ingested yet")
	}

	p.logger.Debug("answering question", zap.String("question", utils.Truncate(question, 50)))

	embedCtx := ctx
	if p.embedTimeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, p.embedTimeout)
		defer cancel()
	}
	query, err := p.embedder.Embed(embedCtx, question)
	if err != nil {
		return &Outcome{Step: StepEmbedding}, err
	}

	results, err := snapshot.Search(query, p.topK)
	if err != nil {
		return &Outcome{Step: StepRetrieving}, err
	}

	// A non-positive floor disables filtering entirely, negative scores included.
	relevant := results
	if p.similarityFloor > 0 {
		relevant = results[:0:0]
		for _, r := range results {
			if float64(r.Score) >= p.similarityFloor {
				relevant = append(relevant, r)
			}
		}
	}
	if len(relevant) == 0 {
		p.logger.Info("no relevant passages found",
			zap.Int("retrieved", len(results)),
			zap.Float64("floor", p.similarityFloor))
		return &Outcome{Answer: NoAnswerText, Results: []vector.Result{}, Step: StepDone}, nil
	}

	contextText := BuildContext(relevant)
	prompt := generation.BuildPrompt(question, contextText)

	genCtx := ctx
	if p.generateTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, p.generateTimeout)
		defer cancel()
	}
	answer, err := p.generator.Generate(genCtx, generation.SystemPrompt, prompt)
	if err != nil {
		return &Outcome{Results: relevant, Step: StepGenerating}, err
	}

	p.logger.Info("answer generated",
		zap.Int("passages", len(relevant)),
		zap.Float32("top_score", relevant[0].Score))

	return &Outcome{Answer: answer, Results: relevant, Step: StepDone}, nil
}

// BuildContext formats retrieved passages for the prompt, best match first.
func BuildContext(results []vector.Result) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("קטע %d (עמוד %d):\n%s\n", i+1, r.Chunk.Page, r.Chunk.Text))
	}
	return strings.Join(parts, "\n")
}
