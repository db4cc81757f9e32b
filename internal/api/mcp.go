package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fastdesk/fastdesk/internal/generate"
	"github.com/fastdesk/fastdesk/internal/notes"
	"github.com/fastdesk/fastdesk/internal/richtext"
	"github.com/fastdesk/fastdesk/internal/store"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *store.Store
	Generator *generate.Service
	Notes     *notes.Chain
}

// NewMCPServer creates an MCP server exposing the AI assist operations
// as tools, so agent integrations can draft replies and maintain
// customer notes over the same pipeline the web client uses.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"fastdesk",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("FastDesk AI assist — draft ticket replies, summarize tickets, and maintain customer notes."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("draft_reply",
			mcp.WithDescription("Draft the next reply for a support ticket, optionally steered by an instruction."),
			mcp.WithString("ticket_id", mcp.Description("Ticket to draft a reply for"), mcp.Required()),
			mcp.WithString("responder_name", mcp.Description("Display name of the worker who will send the reply")),
			mcp.WithString("prompt", mcp.Description("Optional steering instruction for the draft")),
		),
		mcpDraftReply(deps),
	)

	s.AddTool(
		mcp.NewTool("summarize_ticket",
			mcp.WithDescription("Summarize a ticket's problem, progress, and current state."),
			mcp.WithString("ticket_id", mcp.Description("Ticket to summarize"), mcp.Required()),
		),
		mcpSummarizeTicket(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_notes",
			mcp.WithDescription("Generate or update internal notes and tags for a customer from their ticket history."),
			mcp.WithString("instruction", mcp.Description("What to do with the customer's notes/tags"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("Customer user ID"), mcp.Required()),
			mcp.WithString("org_id", mcp.Description("Organization ID"), mcp.Required()),
		),
		mcpGenerateNotes(deps),
	)

	return s
}

func mcpDraftReply(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticketID, err := req.RequireString("ticket_id")
		if err != nil {
			return mcpError("ticket_id is required"), nil
		}
		responder := req.GetString("responder_name", "")
		prompt := req.GetString("prompt", "")

		gctx, err := generate.ContextForTicket(deps.Store, ticketID, responder)
		if err != nil {
			return mcpError(fmt.Sprintf("loading ticket context: %v", err)), nil
		}

		var doc richtext.Document
		if prompt == "" {
			doc, err = deps.Generator.Draft(ctx, gctx)
		} else {
			doc, err = deps.Generator.DraftWithMessageContext(ctx, gctx, prompt)
		}
		if err != nil {
			return mcpError(err.Error()), nil
		}

		return mcpText(richtext.PlainText(doc)), nil
	}
}

func mcpSummarizeTicket(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticketID, err := req.RequireString("ticket_id")
		if err != nil {
			return mcpError("ticket_id is required"), nil
		}

		gctx, err := generate.ContextForTicket(deps.Store, ticketID, "")
		if err != nil {
			return mcpError(fmt.Sprintf("loading ticket context: %v", err)), nil
		}

		doc, err := deps.Generator.Summarize(ctx, gctx)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		return mcpText(richtext.PlainText(doc)), nil
	}
}

func mcpGenerateNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		instruction, err := req.RequireString("instruction")
		if err != nil {
			return mcpError("instruction is required"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		orgID, err := req.RequireString("org_id")
		if err != nil {
			return mcpError("org_id is required"), nil
		}

		result := deps.Notes.Run(ctx, instruction, userID, orgID)
		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		if !result.Success {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
