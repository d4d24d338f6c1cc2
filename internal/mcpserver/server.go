// Package mcpserver implements the protocol adapter (C12): it advertises
// mnemo's registered tools over the MCP stdio transport and translates
// each tools/call request into an internal/toolkit.Registry.Execute call.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mnemo/internal/apperr"
	"github.com/starford/mnemo/internal/toolkit"
)

// sessionSeededTools names the tools whose session_id starts a session on
// first use; an agent that omits session_id gets a fresh one generated here
// rather than being forced to invent an identifier itself.
var sessionSeededTools = map[string]bool{
	"associative_search": true,
	"session_context":    true,
}

// Server wraps the MCP server, translating protocol calls into registry
// executions. It owns no domain logic of its own.
type Server struct {
	mcp      *server.MCPServer
	registry *toolkit.Registry
}

// New builds a Server advertising every tool in registry.
func New(registry *toolkit.Registry) *Server {
	s := &Server{
		mcp:      server.NewMCPServer("mnemo", "1.0.0", server.WithToolCapabilities(false), server.WithResourceCapabilities(false, false)),
		registry: registry,
	}

	for _, t := range registry.List() {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			continue
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(t.Name, t.Description, schema), s.callHandler(t.Name))
	}

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical note format contract. Call this before creating or updating notes."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource("mnemo://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical Markdown note format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout, blocking until the
// stream closes or the context returned by mcp-go signals shutdown.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// callHandler builds a thin translation from a tools/call request into a
// toolkit.Registry.Execute call for the named tool.
func (s *Server) callHandler(name string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if sessionSeededTools[name] {
			args = withGeneratedSessionID(args)
		}

		rawInput, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		value, err := s.registry.Execute(ctx, name, rawInput, toolkit.CallContext{}, nil)
		if err != nil {
			return mcp.NewToolResultError(errorText(err)), nil
		}

		out, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

// withGeneratedSessionID fills in a fresh session_id when the caller left
// it empty or omitted it, so an agent can start associating context
// without first minting its own identifier.
func withGeneratedSessionID(args map[string]any) map[string]any {
	sid, _ := args["session_id"].(string)
	if sid != "" {
		return args
	}
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out["session_id"] = uuid.NewString()
	return out
}

// errorText renders a tool-call failure for the agent: kind plus message,
// without a Go stack trace or internal wrapping detail.
func errorText(err error) string {
	kind := apperr.KindOf(err)
	return string(kind) + ": " + err.Error()
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "mnemo://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
