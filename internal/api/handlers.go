// Package api implements the HTTP surface: the public AI endpoints
// consumed by the web client (/ai/chat, /ai/parse) and the
// token-protected service endpoints that run the drafting and notes
// pipelines.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastdesk/fastdesk/internal/generate"
	"github.com/fastdesk/fastdesk/internal/llm"
	"github.com/fastdesk/fastdesk/internal/notes"
	"github.com/fastdesk/fastdesk/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Error codes returned in the {error, code} body.
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeOpenAIConfigError = "OPENAI_CONFIG_ERROR"
	CodeOpenAIResponse    = "OPENAI_RESPONSE_ERROR"
	CodeVersionConflict   = "VERSION_CONFLICT"
	CodeInternalServer    = "INTERNAL_SERVER_ERROR"
)

// Defaults for /ai/chat when the caller does not override them.
const (
	defaultChatTemperature = 0.7
	defaultChatMaxTokens   = 500
)

// Deps holds everything the HTTP layer needs.
type Deps struct {
	Client     llm.Completer
	Generator  *generate.Service
	Notes      *notes.Chain
	Store      *store.Store
	Model      string
	CORSOrigin string
	Token      string // empty disables bearer auth on service routes
}

// NewHandler builds the top-level router: public AI endpoints with
// single-origin CORS, and service endpoints behind bearer auth.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(corsSingleOrigin(deps.CORSOrigin))
		r.Post("/ai/chat", handleChat(deps))
		r.Post("/ai/parse", handleParse(deps))
		r.Options("/ai/chat", handlePreflight)
		r.Options("/ai/parse", handlePreflight)
	})

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/ai/draft", handleDraft(deps))
		r.Post("/ai/edit", handleEdit(deps))
		r.Post("/ai/summarize", handleSummarize(deps))
		r.Post("/ai/notes", handleNotes(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// corsSingleOrigin allows exactly one configured origin on the public
// AI endpoints.
func corsSingleOrigin(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			next.ServeHTTP(w, r)
		})
	}
}

// --- /ai/chat ---

type chatRequest struct {
	Messages    []llm.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"maxTokens,omitempty"`
}

type chatResponse struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, CodeValidationError, "invalid request body: %v", err)
			return
		}
		if err := validateMessages(req.Messages); err != nil {
			httpError(w, http.StatusBadRequest, CodeValidationError, "%v", err)
			return
		}

		temperature := defaultChatTemperature
		if req.Temperature != nil {
			temperature = *req.Temperature
		}
		maxTokens := defaultChatMaxTokens
		if req.MaxTokens != nil {
			maxTokens = *req.MaxTokens
		}

		content, err := deps.Client.Complete(r.Context(), llm.Request{
			Model:       deps.Model,
			Messages:    req.Messages,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			writeCompletionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{Content: content, Role: llm.RoleAssistant})
	}
}

func validateMessages(msgs []llm.Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("messages is required and must not be empty")
	}
	for i, m := range msgs {
		switch m.Role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
		default:
			return fmt.Errorf("messages[%d].role %q is not one of system, user, assistant", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("messages[%d].content must not be empty", i)
		}
	}
	return nil
}

// --- /ai/parse ---

type parseRequest struct {
	Content string `json:"content"`
	Schema  string `json:"schema,omitempty"`
}

func handleParse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req parseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, CodeValidationError, "invalid request body: %v", err)
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, CodeValidationError, "content is required")
			return
		}

		system := "Extract structured data from the user's content. Respond with ONLY a single valid JSON value and no other text."
		if req.Schema != "" {
			system += "\nThe output must match this schema description:\n" + req.Schema
		}

		raw, err := deps.Client.Complete(r.Context(), llm.Request{
			Model: deps.Model,
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: system},
				{Role: llm.RoleUser, Content: req.Content},
			},
			Temperature: 0,
		})
		if err != nil {
			writeCompletionError(w, err)
			return
		}

		// Malformed model output is not an error: fall back to the raw
		// string so the caller always gets a parsed value.
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			parsed = raw
		}
		writeJSON(w, http.StatusOK, map[string]any{"parsed": parsed})
	}
}

// --- service endpoints ---

type draftRequest struct {
	TicketID      string `json:"ticketId"`
	ResponderName string `json:"responderName,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
	UseHistory    bool   `json:"useHistory,omitempty"`
}

func handleDraft(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req draftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, CodeValidationError, "invalid request body: %v", err)
			return
		}

		// No ticket means freeform generation from the bare prompt.
		if req.TicketID == "" {
			if req.Prompt == "" {
				httpError(w, http.StatusBadRequest, CodeValidationError, "one of ticketId or prompt is required")
				return
			}
			doc, err := deps.Generator.Freeform(r.Context(), req.Prompt)
			if err != nil {
				writeCompletionError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"content": doc})
			return
		}

		gctx, err := generate.ContextForTicket(deps.Store, req.TicketID, req.ResponderName)
		if err != nil {
			writeContextError(w, req.TicketID, err)
			return
		}

		var doc any
		switch {
		case req.Prompt == "":
			doc, err = deps.Generator.Draft(r.Context(), gctx)
		case req.UseHistory:
			doc, err = deps.Generator.DraftWithMessageContext(r.Context(), gctx, req.Prompt)
		default:
			doc, err = deps.Generator.DraftSteered(r.Context(), gctx, req.Prompt)
		}
		if err != nil {
			writeCompletionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"content": doc})
	}
}

type editRequest struct {
	TicketID      string          `json:"ticketId,omitempty"`
	ResponderName string          `json:"responderName,omitempty"`
	Draft         json.RawMessage `json:"draft"`
	Prompt        string          `json:"prompt"`
}

func handleEdit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req editRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, CodeValidationError, "invalid request body: %v", err)
			return
		}
		if len(req.Draft) == 0 || req.Prompt == "" {
			httpError(w, http.StatusBadRequest, CodeValidationError, "draft and prompt are required")
			return
		}

		var doc any
		var err error
		if req.TicketID != "" {
			genCtx, ctxErr := generate.ContextForTicket(deps.Store, req.TicketID, req.ResponderName)
			if ctxErr != nil {
				writeContextError(w, req.TicketID, ctxErr)
				return
			}
			doc, err = deps.Generator.EditWithContext(r.Context(), genCtx, req.Draft, req.Prompt)
		} else {
			doc, err = deps.Generator.Edit(r.Context(), req.Draft, req.Prompt)
		}
		if err != nil {
			writeCompletionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"content": doc})
	}
}

type summarizeRequest struct {
	TicketID      string `json:"ticketId"`
	ResponderName string `json:"responderName,omitempty"`
}

func handleSummarize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req summarizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, CodeValidationError, "invalid request body: %v", err)
			return
		}
		if req.TicketID == "" {
			httpError(w, http.StatusBadRequest, CodeValidationError, "ticketId is required")
			return
		}

		gctx, err := generate.ContextForTicket(deps.Store, req.TicketID, req.ResponderName)
		if err != nil {
			writeContextError(w, req.TicketID, err)
			return
		}

		doc, err := deps.Generator.Summarize(r.Context(), gctx)
		if err != nil {
			writeCompletionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"content": doc})
	}
}

type notesRequest struct {
	Instruction string `json:"instruction"`
	UserID      string `json:"userId"`
	OrgID       string `json:"orgId"`
	Persist     bool   `json:"persist,omitempty"`
}

func handleNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req notesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, CodeValidationError, "invalid request body: %v", err)
			return
		}
		if req.Instruction == "" || req.UserID == "" || req.OrgID == "" {
			httpError(w, http.StatusBadRequest, CodeValidationError, "instruction, userId, and orgId are required")
			return
		}

		// Read the current version before running the chain so the
		// write-back below detects concurrent edits.
		existing, err := deps.Store.NotesByUser(req.UserID, req.OrgID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusInternalServerError, CodeInternalServer, "loading notes: %v", err)
			return
		}

		result := deps.Notes.Run(r.Context(), req.Instruction, req.UserID, req.OrgID)
		if !result.Success {
			writeJSON(w, http.StatusUnprocessableEntity, result)
			return
		}

		if req.Persist {
			updated := existing
			updated.UserID = req.UserID
			updated.OrgID = req.OrgID
			if result.Data.Notes != nil {
				updated.Notes = *result.Data.Notes
			}
			if result.Data.Tags != nil {
				updated.Tags = store.EncodeTags(result.Data.Tags)
			}
			if err := deps.Store.UpsertNotes(updated); err != nil {
				if errors.Is(err, store.ErrVersionConflict) {
					httpError(w, http.StatusConflict, CodeVersionConflict, "notes were modified by someone else; please retry")
					return
				}
				httpError(w, http.StatusInternalServerError, CodeInternalServer, "saving notes: %v", err)
				return
			}
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// --- helpers ---

func writeCompletionError(w http.ResponseWriter, err error) {
	if errors.Is(err, llm.ErrNoAPIKey) {
		httpError(w, http.StatusInternalServerError, CodeOpenAIConfigError, "completion provider is not configured")
		return
	}
	slog.Error("completion request failed", "error", err)
	httpError(w, http.StatusBadGateway, CodeOpenAIResponse, "%v", err)
}

func writeContextError(w http.ResponseWriter, ticketID string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, CodeValidationError, "ticket %s not found", ticketID)
		return
	}
	httpError(w, http.StatusInternalServerError, CodeInternalServer, "loading ticket context: %v", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func httpError(w http.ResponseWriter, status int, code string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": fmt.Sprintf(format, args...),
		"code":  code,
	})
}
