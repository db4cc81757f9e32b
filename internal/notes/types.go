// Package notes implements the three-stage user-notes generation
// chain: classify the worker's instruction, gather the user's context
// from the data store, and generate validated notes and tags.
package notes

// Intent target types produced by the classify stage.
const (
	TargetTags  = "tags"
	TargetNotes = "notes"
	TargetBoth  = "both"
)

// Intent actions produced by the classify stage.
const (
	ActionUpdate   = "update"
	ActionRecreate = "recreate"
)

// Stage error codes surfaced to the caller.
const (
	CodeParsingError    = "PARSING_ERROR"
	CodeContextError    = "CONTEXT_ERROR"
	CodeGenerationError = "GENERATION_ERROR"
)

// ParsedIntent is the structured classification of the worker's
// free-text instruction. Consumed immediately by the generate stage,
// never persisted.
type ParsedIntent struct {
	TargetType string `json:"target_type"`
	Action     string `json:"action"`
	Reasoning  string `json:"reasoning"`
	SourceText string `json:"-"`
}

// GeneratedNotesResult is the generate stage's output after parsing.
type GeneratedNotesResult struct {
	Notes       *string  `json:"notes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Explanation string   `json:"explanation"`
}

// StageError identifies which stage failed and why. Details carries the
// underlying cause for diagnostics; Message is safe to show a user.
type StageError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Result is the typed outcome of a chain run. Either Success is true
// and Data is set, or Error describes the failure. Generated content is
// never partially applied: a validation failure discards everything.
type Result struct {
	Success bool                  `json:"success"`
	Data    *GeneratedNotesResult `json:"data,omitempty"`
	Error   *StageError           `json:"error,omitempty"`
}

func failure(code, message string, cause error) Result {
	se := &StageError{Code: code, Message: message}
	if cause != nil {
		se.Details = cause.Error()
	}
	return Result{Error: se}
}
