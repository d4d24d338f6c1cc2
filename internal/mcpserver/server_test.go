package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mnemo/internal/backlink"
	"github.com/starford/mnemo/internal/para"
	"github.com/starford/mnemo/internal/search"
	"github.com/starford/mnemo/internal/session"
	"github.com/starford/mnemo/internal/testutil"
	"github.com/starford/mnemo/internal/toolkit"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	v := testutil.TestVault(t)
	db := testutil.TestDB(t)

	engine := search.New(db, v)
	deps := toolkit.Deps{
		Vault:     v,
		Organizer: para.New(v, para.Options{}),
		Engine:    engine,
		Sync:      backlink.New(v, backlink.Options{}),
		Sessions:  session.New(engine),
	}

	registry := toolkit.NewRegistry(nil)
	for _, tool := range toolkit.DefaultTools(deps) {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("Register(%s): %v", tool.Name, err)
		}
	}

	return New(registry)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := srv.callHandler(name)(context.Background(), req)
	if err != nil {
		t.Fatalf("tool %s transport error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateThenSearchMemoryOverProtocol(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_note", map[string]interface{}{
		"title":    "Meeting notes",
		"content":  "Discussed the new indexing pipeline.",
		"category": "Resources",
	})
	if r.IsError {
		t.Fatalf("create_note errored: %s", resultText(r))
	}
	var created map[string]any
	if err := json.Unmarshal([]byte(resultText(r)), &created); err != nil {
		t.Fatalf("unmarshal create_note result: %v", err)
	}
	uid, _ := created["uid"].(string)
	if uid == "" {
		t.Fatalf("create_note result missing uid: %s", resultText(r))
	}

	r = callTool(t, srv, "search_memory", map[string]interface{}{"query": "indexing"})
	if r.IsError {
		t.Fatalf("search_memory errored: %s", resultText(r))
	}
	var searched map[string]any
	if err := json.Unmarshal([]byte(resultText(r)), &searched); err != nil {
		t.Fatalf("unmarshal search_memory result: %v", err)
	}
	results, _ := searched["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("search_memory results = %v, want 1 hit", searched["results"])
	}
}

func TestDeleteUnknownUIDIsNoOpSuccess(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "delete_note", map[string]interface{}{"uid": "never-created"})
	if r.IsError {
		t.Fatalf("delete_note on unknown uid should be a no-op success, got error: %s", resultText(r))
	}
}

func TestInvalidInputReportsSchemaError(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_memory", map[string]interface{}{})
	if !r.IsError {
		t.Fatal("search_memory with no query should report a protocol error")
	}
}

func TestGetNoteContractReturnsFormatContract(t *testing.T) {
	srv := testServer(t)
	r, err := srv.getNoteContract(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("getNoteContract: %v", err)
	}
	if resultText(r) != NoteFormatContract {
		t.Fatal("get_note_contract did not return NoteFormatContract verbatim")
	}
}
