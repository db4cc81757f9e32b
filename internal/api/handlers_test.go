package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fastdesk/fastdesk/internal/generate"
	"github.com/fastdesk/fastdesk/internal/llm"
	"github.com/fastdesk/fastdesk/internal/notes"
	"github.com/fastdesk/fastdesk/internal/store"
)

// queueCompleter returns queued responses in order; requests are
// recorded for assertions.
type queueCompleter struct {
	responses []string
	errs      []error
	requests  []llm.Request
}

func (q *queueCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	q.requests = append(q.requests, req)
	i := len(q.requests) - 1
	var err error
	if i < len(q.errs) {
		err = q.errs[i]
	}
	var resp string
	if i < len(q.responses) {
		resp = q.responses[i]
	}
	return resp, err
}

func newTestDeps(t *testing.T, completer llm.Completer) Deps {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	return Deps{
		Client:     completer,
		Generator:  generate.NewService(completer, "test-model"),
		Notes:      notes.NewChain(completer, s, "test-model"),
		Store:      s,
		Model:      "test-model",
		CORSOrigin: "https://app.example.com",
	}
}

func seedTicket(t *testing.T, s *store.Store) string {
	t.Helper()
	ticketID := uuid.NewString()
	err := s.SaveTicket(store.Ticket{
		ID: ticketID, OrgID: "org-1", RequesterID: "u1",
		RequesterName: "Dana", Title: "Login broken",
		Body:      "cannot log in",
		CreatedAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = s.SaveTicketMessage(store.TicketMessage{
		ID: uuid.NewString(), TicketID: ticketID,
		SenderID: "u1", SenderName: "Dana", Role: "customer",
		Body:      "still cannot log in",
		CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	return ticketID
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// --- /ai/chat ---

func TestChat_ForwardsDefaults(t *testing.T) {
	mock := &queueCompleter{responses: []string{"Hello there"}}
	h := NewHandler(newTestDeps(t, mock))

	rr := doJSON(t, h, http.MethodPost, "/ai/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp chatResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Content != "Hello there" || resp.Role != "assistant" {
		t.Errorf("resp = %+v", resp)
	}

	req := mock.requests[0]
	if req.Temperature != 0.7 || req.MaxTokens != 500 {
		t.Errorf("defaults not applied: temp=%v max=%d", req.Temperature, req.MaxTokens)
	}
}

func TestChat_CallerOverrides(t *testing.T) {
	mock := &queueCompleter{responses: []string{"ok"}}
	h := NewHandler(newTestDeps(t, mock))

	doJSON(t, h, http.MethodPost, "/ai/chat", `{"messages":[{"role":"user","content":"hi"}],"temperature":0,"maxTokens":50}`)

	req := mock.requests[0]
	if req.Temperature != 0 || req.MaxTokens != 50 {
		t.Errorf("overrides not applied: temp=%v max=%d", req.Temperature, req.MaxTokens)
	}
}

func TestChat_Validation(t *testing.T) {
	h := NewHandler(newTestDeps(t, &queueCompleter{}))

	tests := []struct {
		name string
		body string
	}{
		{"empty array", `{"messages":[]}`},
		{"missing messages", `{}`},
		{"bad role", `{"messages":[{"role":"admin","content":"x"}]}`},
		{"empty content", `{"messages":[{"role":"user","content":""}]}`},
		{"not json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, h, http.MethodPost, "/ai/chat", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			var body map[string]string
			json.NewDecoder(rr.Body).Decode(&body)
			if body["code"] != CodeValidationError {
				t.Errorf("code = %q", body["code"])
			}
		})
	}
}

func TestChat_MissingAPIKey(t *testing.T) {
	deps := newTestDeps(t, &queueCompleter{errs: []error{llm.ErrNoAPIKey}})
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodPost, "/ai/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["code"] != CodeOpenAIConfigError {
		t.Errorf("code = %q, want OPENAI_CONFIG_ERROR", body["code"])
	}
}

func TestChat_CORSAndMethods(t *testing.T) {
	h := NewHandler(newTestDeps(t, &queueCompleter{responses: []string{"ok"}}))

	rr := doJSON(t, h, http.MethodOptions, "/ai/chat", "")
	if rr.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	rr = doJSON(t, h, http.MethodGet, "/ai/chat", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rr.Code)
	}
}

// --- /ai/parse ---

func TestParse_ValidJSONOutput(t *testing.T) {
	mock := &queueCompleter{responses: []string{`{"name":"Dana","plan":"enterprise"}`}}
	h := NewHandler(newTestDeps(t, mock))

	rr := doJSON(t, h, http.MethodPost, "/ai/parse", `{"content":"Dana is on the enterprise plan","schema":"{name, plan}"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp struct {
		Parsed map[string]string `json:"parsed"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Parsed["name"] != "Dana" {
		t.Errorf("parsed = %v", resp.Parsed)
	}

	if mock.requests[0].Temperature != 0 {
		t.Errorf("parse temperature = %v, want 0", mock.requests[0].Temperature)
	}
	if !strings.Contains(mock.requests[0].Messages[0].Content, "{name, plan}") {
		t.Error("schema description not forwarded")
	}
}

func TestParse_FallsBackToRawString(t *testing.T) {
	mock := &queueCompleter{responses: []string{"hello world"}}
	h := NewHandler(newTestDeps(t, mock))

	rr := doJSON(t, h, http.MethodPost, "/ai/parse", `{"content":"whatever"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp struct {
		Parsed any `json:"parsed"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Parsed != "hello world" {
		t.Errorf("parsed = %v, want raw string fallback", resp.Parsed)
	}
}

func TestParse_RequiresContent(t *testing.T) {
	h := NewHandler(newTestDeps(t, &queueCompleter{}))
	rr := doJSON(t, h, http.MethodPost, "/ai/parse", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- /ai/draft ---

func TestDraft_FromTicket(t *testing.T) {
	mock := &queueCompleter{responses: []string{"Sorry about that.\nPlease reset your password."}}
	deps := newTestDeps(t, mock)
	ticketID := seedTicket(t, deps.Store)
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodPost, "/ai/draft", `{"ticketId":"`+ticketID+`","responderName":"Sam"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp struct {
		Content struct {
			Type   string `json:"type"`
			Blocks []any  `json:"content"`
		} `json:"content"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Content.Type != "doc" || len(resp.Content.Blocks) != 2 {
		t.Errorf("content = %+v", resp.Content)
	}

	// Ticket context must reach the prompt.
	sent := mock.requests[0].Messages
	if !strings.Contains(sent[1].Content, "still cannot log in") {
		t.Error("history missing from draft prompt")
	}
}

func TestDraft_UnknownTicket(t *testing.T) {
	h := NewHandler(newTestDeps(t, &queueCompleter{}))
	rr := doJSON(t, h, http.MethodPost, "/ai/draft", `{"ticketId":"missing"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestDraft_Freeform(t *testing.T) {
	mock := &queueCompleter{responses: []string{"freeform text"}}
	h := NewHandler(newTestDeps(t, mock))

	rr := doJSON(t, h, http.MethodPost, "/ai/draft", `{"prompt":"write a short apology"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(mock.requests[0].Messages) != 1 {
		t.Errorf("freeform should send a single user message, got %d", len(mock.requests[0].Messages))
	}
}

// --- /ai/edit ---

func TestEdit_RequiresDraftAndPrompt(t *testing.T) {
	h := NewHandler(newTestDeps(t, &queueCompleter{}))
	rr := doJSON(t, h, http.MethodPost, "/ai/edit", `{"draft":{"type":"doc","content":[]}}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestEdit_EmbedsDraft(t *testing.T) {
	mock := &queueCompleter{responses: []string{"rewritten"}}
	h := NewHandler(newTestDeps(t, mock))

	body := `{"draft":{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"old text"}]}]},"prompt":"shorter"}`
	rr := doJSON(t, h, http.MethodPost, "/ai/edit", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if !strings.Contains(mock.requests[0].Messages[0].Content, "old text") {
		t.Error("draft text missing from edit prompt")
	}
}

// --- /ai/notes ---

const classifyBoth = `{"target_type":"both","action":"recreate","reasoning":"rebuild"}`

func seedUser(t *testing.T, s *store.Store) {
	t.Helper()
	if err := s.SaveProfile(store.Profile{ID: "u1", DisplayName: "Dana", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
}

func TestNotes_SuccessWithPersist(t *testing.T) {
	mock := &queueCompleter{responses: []string{
		classifyBoth,
		`{"notes":"VIP customer, pending billing fix","tags":["vip"],"explanation":"from ticket history"}`,
	}}
	deps := newTestDeps(t, mock)
	seedUser(t, deps.Store)
	seedTicket(t, deps.Store)
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodPost, "/ai/notes", `{"instruction":"rebuild notes and tags","userId":"u1","orgId":"org-1","persist":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var result notes.Result
	json.NewDecoder(rr.Body).Decode(&result)
	if !result.Success || result.Data == nil {
		t.Fatalf("result = %+v", result)
	}

	saved, err := deps.Store.NotesByUser("u1", "org-1")
	if err != nil {
		t.Fatalf("notes not persisted: %v", err)
	}
	if saved.Notes != "VIP customer, pending billing fix" || saved.Version != 1 {
		t.Errorf("saved = %+v", saved)
	}
}

func TestNotes_StageFailureIs422(t *testing.T) {
	mock := &queueCompleter{responses: []string{"garbage"}}
	deps := newTestDeps(t, mock)
	seedUser(t, deps.Store)
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodPost, "/ai/notes", `{"instruction":"x","userId":"u1","orgId":"org-1"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	var result notes.Result
	json.NewDecoder(rr.Body).Decode(&result)
	if result.Success || result.Error == nil || result.Error.Code != notes.CodeParsingError {
		t.Errorf("result = %+v", result)
	}
}

func TestNotes_RequiredFields(t *testing.T) {
	h := NewHandler(newTestDeps(t, &queueCompleter{}))
	rr := doJSON(t, h, http.MethodPost, "/ai/notes", `{"instruction":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// --- bearer auth ---

func TestBearerAuth_GuardsServiceRoutes(t *testing.T) {
	deps := newTestDeps(t, &queueCompleter{responses: []string{"ok"}})
	deps.Token = "secret-token"
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodPost, "/ai/draft", `{"prompt":"hi"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/ai/draft", strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with token = %d, want 200", rec.Code)
	}
}

func TestBearerAuth_DoesNotGuardPublicRoutes(t *testing.T) {
	deps := newTestDeps(t, &queueCompleter{responses: []string{"ok"}})
	deps.Token = "secret-token"
	h := NewHandler(deps)

	rr := doJSON(t, h, http.MethodPost, "/ai/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	if rr.Code != http.StatusOK {
		t.Errorf("public chat status = %d, want 200", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(newTestDeps(t, &queueCompleter{}))
	rr := doJSON(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}
