package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fastdesk/fastdesk/internal/llm"
	"github.com/fastdesk/fastdesk/internal/prompt"
	"github.com/fastdesk/fastdesk/internal/richtext"
)

// mockCompleter implements llm.Completer for testing.
type mockCompleter struct {
	response string
	err      error
	lastReq  llm.Request
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.lastReq = req
	return m.response, m.err
}

func testContext() prompt.GenerationContext {
	return prompt.GenerationContext{
		TicketTitle:           "Printer on fire",
		OriginalRequesterName: "Dana",
		CurrentResponderName:  "Sam",
		TicketBody:            "the printer caught fire",
		History: []prompt.ConversationMessage{
			{Role: prompt.RoleWorker, SenderDisplayName: "Sam", Content: "have you tried water"},
		},
	}
}

func TestDraft_ConvertsToDocument(t *testing.T) {
	mock := &mockCompleter{response: "We are sorry about the fire.\nA replacement is on its way."}
	s := NewService(mock, "gpt-4o-mini")

	doc, err := s.Draft(context.Background(), testContext())
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if got := richtext.PlainText(doc); got != mock.response {
		t.Errorf("document text = %q", got)
	}
	if len(mock.lastReq.Messages) != 2 || mock.lastReq.Messages[0].Role != llm.RoleSystem {
		t.Errorf("messages = %+v, want system framing first", mock.lastReq.Messages)
	}
	if mock.lastReq.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", mock.lastReq.Temperature)
	}
}

func TestDraftSteered_ExcludesHistory(t *testing.T) {
	mock := &mockCompleter{response: "ok"}
	s := NewService(mock, "m")

	if _, err := s.DraftSteered(context.Background(), testContext(), "be brief"); err != nil {
		t.Fatal(err)
	}
	for _, m := range mock.lastReq.Messages {
		if strings.Contains(m.Content, "have you tried water") {
			t.Error("steered draft should not include conversation history")
		}
	}
}

func TestDraftWithMessageContext_IncludesHistory(t *testing.T) {
	mock := &mockCompleter{response: "ok"}
	s := NewService(mock, "m")

	if _, err := s.DraftWithMessageContext(context.Background(), testContext(), "be brief"); err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, m := range mock.lastReq.Messages {
		if strings.Contains(m.Content, "have you tried water") {
			found = true
		}
	}
	if !found {
		t.Error("history missing from message-context draft")
	}
}

func TestEdit_EmbedsDraftText(t *testing.T) {
	mock := &mockCompleter{response: "rewritten"}
	s := NewService(mock, "m")

	draft := richtext.FromPlainText("original draft body")
	if _, err := s.Edit(context.Background(), draft, "shorter"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(mock.lastReq.Messages[0].Content, "original draft body") {
		t.Error("draft text not embedded in edit prompt")
	}
}

func TestComplete_GenericErrorHidesProviderDetail(t *testing.T) {
	mock := &mockCompleter{err: errors.New("upstream exploded: token abc123")}
	s := NewService(mock, "m")

	_, err := s.Draft(context.Background(), testContext())
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "failed to generate response" {
		t.Errorf("error = %q, want generic message", err)
	}
	if strings.Contains(err.Error(), "abc123") {
		t.Error("provider detail leaked to caller")
	}
}

func TestComplete_MissingKeyPassesThrough(t *testing.T) {
	mock := &mockCompleter{err: llm.ErrNoAPIKey}
	s := NewService(mock, "m")

	_, err := s.Freeform(context.Background(), "hi")
	if !errors.Is(err, llm.ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey passthrough", err)
	}
}

func TestEditWithContext_GenericEditError(t *testing.T) {
	mock := &mockCompleter{err: errors.New("boom")}
	s := NewService(mock, "m")

	_, err := s.EditWithContext(context.Background(), testContext(), "draft", "prompt")
	if err == nil || err.Error() != "failed to edit response" {
		t.Errorf("error = %v, want failed to edit response", err)
	}
}
