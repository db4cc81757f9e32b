package notes

import (
	"context"
	"log/slog"

	"github.com/fastdesk/fastdesk/internal/llm"
)

// Chain runs the notes generation pipeline: three strictly sequential
// stages with no branching or backtracking. Each stage maps its failure
// to one error code; the caller always receives a typed Result rather
// than an error.
type Chain struct {
	client      llm.Completer
	repo        Repository
	model       string
	extractText func(path string) (string, error)
}

// NewChain creates a Chain using the given completion client,
// repositories, and model name.
func NewChain(client llm.Completer, repo Repository, model string) *Chain {
	return &Chain{
		client:      client,
		repo:        repo,
		model:       model,
		extractText: defaultExtractText,
	}
}

// Run executes classify, gather, and generate for the worker's
// instruction about the given user. The returned Result carries either
// validated notes/tags content or a stage error; generated content that
// fails validation is discarded entirely.
func (c *Chain) Run(ctx context.Context, instruction, userID, orgID string) Result {
	intent, err := c.classify(ctx, instruction)
	if err != nil {
		slog.Error("notes chain: classification failed", "error", err)
		return failure(CodeParsingError, "could not understand the instruction", err)
	}

	gc, err := c.gather(ctx, userID, orgID)
	if err != nil {
		slog.Error("notes chain: context gathering failed", "user_id", userID, "error", err)
		return failure(CodeContextError, "could not load the customer's context", err)
	}

	result, err := c.generate(ctx, intent, gc)
	if err != nil {
		slog.Error("notes chain: generation failed", "error", err)
		return failure(CodeGenerationError, "could not generate notes", err)
	}

	if err := validateResult(result); err != nil {
		slog.Warn("notes chain: generated content rejected", "reason", err)
		return failure(CodeGenerationError, err.Error(), nil)
	}

	return Result{Success: true, Data: &result}
}
