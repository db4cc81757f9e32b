// Package generate implements the reply drafting and editing services:
// prompt assembly, one completion call, conversion of the result into
// the rich-text document model.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fastdesk/fastdesk/internal/llm"
	"github.com/fastdesk/fastdesk/internal/prompt"
	"github.com/fastdesk/fastdesk/internal/richtext"
)

const defaultTemperature = 0.7

// Service runs drafting and editing operations against a completion
// provider. Provider errors are logged with full detail and surfaced to
// callers as a single generic failure per operation.
type Service struct {
	client llm.Completer
	model  string
}

// NewService creates a Service using the given completion client and
// model name.
func NewService(client llm.Completer, model string) *Service {
	return &Service{client: client, model: model}
}

// Draft generates the next reply to the requester's latest message,
// using the full conversation history.
func (s *Service) Draft(ctx context.Context, gctx prompt.GenerationContext) (richtext.Document, error) {
	messages := []llm.Message{
		prompt.SystemFraming(gctx.OriginalRequesterName, gctx.TicketTitle),
		prompt.DraftInstruction(gctx),
	}
	return s.complete(ctx, messages, "generate response")
}

// DraftSteered generates a reply steered by the worker's free-text
// prompt. Conversation history is not included; only the original
// request and the steering prompt shape the draft.
func (s *Service) DraftSteered(ctx context.Context, gctx prompt.GenerationContext, freeText string) (richtext.Document, error) {
	trimmed := gctx
	trimmed.History = nil
	messages := []llm.Message{
		prompt.SystemFraming(gctx.OriginalRequesterName, gctx.TicketTitle),
		prompt.SteeredInstruction(trimmed, freeText),
	}
	return s.complete(ctx, messages, "generate response")
}

// DraftWithMessageContext is DraftSteered with the conversation history
// included.
func (s *Service) DraftWithMessageContext(ctx context.Context, gctx prompt.GenerationContext, freeText string) (richtext.Document, error) {
	messages := []llm.Message{
		prompt.SystemFraming(gctx.OriginalRequesterName, gctx.TicketTitle),
		prompt.SteeredInstruction(gctx, freeText),
	}
	return s.complete(ctx, messages, "generate response")
}

// Freeform generates a response from a bare prompt with no ticket
// context or persona framing.
func (s *Service) Freeform(ctx context.Context, freeText string) (richtext.Document, error) {
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: freeText},
	}
	return s.complete(ctx, messages, "generate response")
}

// Edit rewrites an existing draft per the worker's prompt. The draft
// may be a richtext.Document or a plain string.
func (s *Service) Edit(ctx context.Context, currentDraft any, freeText string) (richtext.Document, error) {
	messages := []llm.Message{
		prompt.EditInstruction(richtext.ToPlainText(currentDraft), freeText),
	}
	return s.complete(ctx, messages, "edit response")
}

// EditWithContext rewrites an existing draft with the full ticket
// context available alongside the worker's prompt.
func (s *Service) EditWithContext(ctx context.Context, gctx prompt.GenerationContext, currentDraft any, freeText string) (richtext.Document, error) {
	messages := []llm.Message{
		prompt.SystemFraming(gctx.OriginalRequesterName, gctx.TicketTitle),
		prompt.EditWithContextInstruction(gctx, richtext.ToPlainText(currentDraft), freeText),
	}
	return s.complete(ctx, messages, "edit response")
}

// Summarize produces a short plain-language summary of the ticket.
func (s *Service) Summarize(ctx context.Context, gctx prompt.GenerationContext) (richtext.Document, error) {
	messages := []llm.Message{
		prompt.SystemFraming(gctx.OriginalRequesterName, gctx.TicketTitle),
		prompt.SummarizeInstruction(gctx),
	}
	return s.complete(ctx, messages, "summarize ticket")
}

// complete issues the completion call and converts the result. The
// provider-specific cause is logged here and never shown to callers;
// missing credentials pass through unchanged so the HTTP layer can map
// them to a configuration error.
func (s *Service) complete(ctx context.Context, messages []llm.Message, operation string) (richtext.Document, error) {
	text, err := s.client.Complete(ctx, llm.Request{
		Model:       s.model,
		Messages:    messages,
		Temperature: defaultTemperature,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNoAPIKey) {
			return richtext.Document{}, err
		}
		slog.Error("completion call failed", "operation", operation, "error", err)
		return richtext.Document{}, fmt.Errorf("failed to %s", operation)
	}
	return richtext.FromPlainText(text), nil
}
