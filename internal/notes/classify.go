package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fastdesk/fastdesk/internal/llm"
)

const classifySystemPrompt = `You classify instructions given by a support worker about a customer's notes and tags.
Your output must be ONLY a single valid JSON object with exactly these fields:
  "target_type": one of "tags", "notes", "both" — what the instruction wants changed
  "action": one of "update", "recreate" — whether to amend existing content or rebuild it from scratch
  "reasoning": a short explanation of your classification
Do not include any other text, prose, or markdown.`

func classifyRequest(model, instruction string) llm.Request {
	return llm.Request{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: classifySystemPrompt},
			{Role: llm.RoleUser, Content: instruction},
		},
		Temperature: 0,
	}
}

// classify sends the worker's instruction through the completion model
// at temperature 0 and parses the structured intent.
func (c *Chain) classify(ctx context.Context, instruction string) (ParsedIntent, error) {
	raw, err := c.client.Complete(ctx, classifyRequest(c.model, instruction))
	if err != nil {
		return ParsedIntent{}, fmt.Errorf("classification call: %w", err)
	}

	var intent ParsedIntent
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &intent); err != nil {
		return ParsedIntent{}, fmt.Errorf("unmarshaling intent from %q: %w", raw, err)
	}

	switch intent.TargetType {
	case TargetTags, TargetNotes, TargetBoth:
	default:
		return ParsedIntent{}, fmt.Errorf("unknown target type %q", intent.TargetType)
	}
	switch intent.Action {
	case ActionUpdate, ActionRecreate:
	default:
		return ParsedIntent{}, fmt.Errorf("unknown action %q", intent.Action)
	}

	intent.SourceText = instruction
	return intent, nil
}

// stripCodeFence removes a surrounding markdown code fence if the model
// wrapped its JSON in one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
