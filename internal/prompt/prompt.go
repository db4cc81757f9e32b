// Package prompt builds the role-tagged chat messages for reply
// drafting and editing. Every function is pure: records in, one
// message (or phrase) out.
package prompt

import (
	"fmt"
	"strings"

	"github.com/fastdesk/fastdesk/internal/llm"
	"github.com/fastdesk/fastdesk/internal/richtext"
)

// Sender roles in a ticket conversation.
const (
	RoleCustomer = "customer"
	RoleWorker   = "worker"
)

// ConversationMessage is one entry of a ticket's chronological message
// history. Content is either a richtext.Document or a legacy plain
// string; it is used only as ephemeral generation input.
type ConversationMessage struct {
	Content           any
	Role              string
	SenderDisplayName string
}

// GenerationContext carries everything a drafting call needs about the
// ticket. Built fresh per generation call, never cached.
type GenerationContext struct {
	TicketTitle           string
	OriginalRequesterName string
	CurrentResponderName  string
	TicketBody            any
	History               []ConversationMessage
}

const transcriptDelimiter = "\n###\n"

const noSalutation = "Do not include an opening or closing salutation."

const systemFramingTemplate = `You are assisting a customer support worker with a ticket from %s titled "%s".
Write on behalf of the support worker in a professional, helpful tone.
Never reveal internal notes or internal reasoning to the customer.`

// SystemFraming returns the fixed persona message, parameterized by the
// requester name and ticket title.
func SystemFraming(requesterName, ticketTitle string) llm.Message {
	return llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(systemFramingTemplate, requesterName, ticketTitle),
	}
}

// Transcript renders the conversation history as plain text: one block
// per message, sender name followed by the extracted text, blocks
// separated by a ### delimiter line. Order is preserved as given.
func Transcript(history []ConversationMessage) string {
	blocks := make([]string, len(history))
	for i, m := range history {
		blocks[i] = m.SenderDisplayName + ":\n" + richtext.ToPlainText(m.Content)
	}
	return strings.Join(blocks, transcriptDelimiter)
}

// ResponderContext decides how the draft should frame the responder.
// If currentResponderName has a prior worker entry in history (exact,
// case-sensitive match), the reply continues as the same responder;
// otherwise it is written as a new responder joining the ticket. An
// empty or never-seen name always gets the new-responder framing.
func ResponderContext(history []ConversationMessage, currentResponderName string) string {
	if currentResponderName != "" {
		for _, m := range history {
			if m.Role == RoleWorker && m.SenderDisplayName == currentResponderName {
				return fmt.Sprintf("You are %s, continuing as the same responder who replied earlier in this conversation.", currentResponderName)
			}
		}
	}
	return "You are a new responder joining this conversation for the first time."
}

// DraftInstruction asks for the next reply to the requester's latest
// message.
func DraftInstruction(gctx GenerationContext) llm.Message {
	var sb strings.Builder
	writeContext(&sb, gctx)
	fmt.Fprintf(&sb, "\n\nDraft the next reply to %s, addressing their most recent message. %s", gctx.OriginalRequesterName, noSalutation)
	return llm.Message{Role: llm.RoleUser, Content: sb.String()}
}

// SteeredInstruction is DraftInstruction steered by a free-text prompt
// from the worker.
func SteeredInstruction(gctx GenerationContext, freeText string) llm.Message {
	var sb strings.Builder
	writeContext(&sb, gctx)
	fmt.Fprintf(&sb, "\n\nDraft the next reply to %s, addressing their most recent message.", gctx.OriginalRequesterName)
	fmt.Fprintf(&sb, "\nFollow these instructions from the worker: %s", freeText)
	sb.WriteString("\n" + noSalutation)
	return llm.Message{Role: llm.RoleUser, Content: sb.String()}
}

// EditInstruction rewrites an existing draft per the worker's free-text
// prompt, without conversation context.
func EditInstruction(draftText, freeText string) llm.Message {
	var sb strings.Builder
	sb.WriteString("Here is the current draft reply:\n")
	sb.WriteString(transcriptDelimiter)
	sb.WriteString(draftText)
	sb.WriteString(transcriptDelimiter)
	fmt.Fprintf(&sb, "\nRewrite the draft following these instructions: %s", freeText)
	sb.WriteString("\n" + noSalutation)
	return llm.Message{Role: llm.RoleUser, Content: sb.String()}
}

// EditWithContextInstruction rewrites an existing draft with both the
// worker's prompt and the full conversation context available.
func EditWithContextInstruction(gctx GenerationContext, draftText, freeText string) llm.Message {
	var sb strings.Builder
	writeContext(&sb, gctx)
	sb.WriteString("\n\nHere is the current draft reply:\n")
	sb.WriteString(transcriptDelimiter)
	sb.WriteString(draftText)
	sb.WriteString(transcriptDelimiter)
	fmt.Fprintf(&sb, "\nRewrite the draft following these instructions: %s", freeText)
	sb.WriteString("\n" + noSalutation)
	return llm.Message{Role: llm.RoleUser, Content: sb.String()}
}

// SummarizeInstruction asks for a short summary of the ticket so far.
func SummarizeInstruction(gctx GenerationContext) llm.Message {
	var sb strings.Builder
	writeContext(&sb, gctx)
	sb.WriteString("\n\nSummarize this ticket in a few sentences: the customer's problem, what has been tried, and the current state.")
	return llm.Message{Role: llm.RoleUser, Content: sb.String()}
}

// writeContext renders the shared ticket context block: responder
// framing, original request body, and the conversation transcript.
func writeContext(sb *strings.Builder, gctx GenerationContext) {
	sb.WriteString(ResponderContext(gctx.History, gctx.CurrentResponderName))
	fmt.Fprintf(sb, "\n\nThe original request from %s:\n%s", gctx.OriginalRequesterName, richtext.ToPlainText(gctx.TicketBody))
	if len(gctx.History) > 0 {
		sb.WriteString("\n\nConversation so far:\n")
		sb.WriteString(Transcript(gctx.History))
	}
}
