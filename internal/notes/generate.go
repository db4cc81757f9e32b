package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fastdesk/fastdesk/internal/llm"
	"github.com/fastdesk/fastdesk/internal/store"
)

const generateTemperature = 0.7

const tagsOnlySchema = `Your output must be ONLY a single valid JSON object with exactly these fields:
  "tags": an array of short tag strings (letters, digits, hyphens, underscores only)
  "explanation": why you chose these tags`

const notesOnlySchema = `Your output must be ONLY a single valid JSON object with exactly these fields:
  "notes": the full text of the customer notes
  "explanation": why you wrote the notes this way`

const bothSchema = `Your output must be ONLY a single valid JSON object with exactly these fields:
  "notes": the full text of the customer notes
  "tags": an array of short tag strings (letters, digits, hyphens, underscores only)
  "explanation": why you made these changes`

// generate runs stage three: build the template for the classified
// target, call the completion model, and parse the structured result.
func (c *Chain) generate(ctx context.Context, intent ParsedIntent, gc gatheredContext) (GeneratedNotesResult, error) {
	var schema, task string
	switch intent.TargetType {
	case TargetTags:
		schema = tagsOnlySchema
		task = "Produce the customer's tags."
	case TargetNotes:
		schema = notesOnlySchema
		task = "Produce the customer's notes."
	default:
		schema = bothSchema
		task = "Produce the customer's notes and tags."
	}

	raw, err := c.client.Complete(ctx, llm.Request{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: generateSystemPrompt(schema)},
			{Role: llm.RoleUser, Content: generateUserPrompt(task, intent, gc)},
		},
		Temperature: generateTemperature,
	})
	if err != nil {
		return GeneratedNotesResult{}, fmt.Errorf("generation call: %w", err)
	}

	var result GeneratedNotesResult
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		return GeneratedNotesResult{}, fmt.Errorf("unmarshaling notes result from %q: %w", raw, err)
	}
	return result, nil
}

func generateSystemPrompt(schema string) string {
	return "You maintain internal notes and tags that support workers keep about customers.\n" +
		"Notes are concise, factual, and useful to the next worker who opens a ticket from this customer.\n" +
		schema + "\nDo not include any other text, prose, or markdown."
}

func generateUserPrompt(task string, intent ParsedIntent, gc gatheredContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Customer: %s", profileLine(gc.Profile))

	if intent.Action == ActionUpdate {
		sb.WriteString("\n\nAmend the existing content; keep what is still accurate.")
	} else {
		sb.WriteString("\n\nRebuild the content from scratch; existing content is shown only for reference.")
	}

	if gc.ExistingNotes != "" {
		fmt.Fprintf(&sb, "\n\nExisting notes:\n%s", gc.ExistingNotes)
	}
	if len(gc.ExistingTags) > 0 {
		fmt.Fprintf(&sb, "\n\nExisting tags: %s", strings.Join(gc.ExistingTags, ", "))
	}
	if gc.TicketMessages != "" {
		fmt.Fprintf(&sb, "\n\nThe customer's ticket history:\n%s", gc.TicketMessages)
	}

	fmt.Fprintf(&sb, "\n\n%s The worker's instruction: %s", task, intent.SourceText)
	return sb.String()
}

func profileLine(p store.Profile) string {
	parts := []string{p.DisplayName}
	if p.Email != "" {
		parts = append(parts, p.Email)
	}
	if p.Company != "" {
		parts = append(parts, p.Company)
	}
	return strings.Join(parts, ", ")
}
