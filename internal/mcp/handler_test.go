package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"medagent-go/internal/jsonrpc"
	"medagent-go/internal/store"
	"medagent-go/internal/tools"
	"medagent-go/internal/tools/medical"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	logger := zerolog.Nop()

	s := store.NewMemoryStore(logger)
	t.Cleanup(func() { s.Close() })
	if err := store.Seed(context.Background(), s, logger); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	registry := tools.NewRegistry()
	medical.Register(registry, s, logger)
	invoker := tools.NewInvoker(registry, logger)

	return NewHandler(registry, invoker, ServerInfo{Name: "medagent", Version: "test"}, logger)
}

func postMessage(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, *jsonrpc.Response) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.Len() == 0 {
		return rec, nil
	}
	var resp jsonrpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v (%s)", err, rec.Body.String())
	}
	return rec, &resp
}

func TestInitialize(t *testing.T) {
	h := newTestHandler(t)

	_, resp := postMessage(t, h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result := resp.Result.(map[string]any)
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("Unexpected protocol version: %v", result["protocolVersion"])
	}
	info := result["serverInfo"].(map[string]any)
	if info["name"] != "medagent" {
		t.Errorf("Unexpected server name: %v", info["name"])
	}
	if _, ok := result["capabilities"].(map[string]any)["tools"]; !ok {
		t.Error("Expected tools capability")
	}
}

func TestPing(t *testing.T) {
	h := newTestHandler(t)

	_, resp := postMessage(t, h, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
}

func TestToolsList(t *testing.T) {
	h := newTestHandler(t)

	_, resp := postMessage(t, h, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result := resp.Result.(map[string]any)
	toolList := result["tools"].([]any)
	if len(toolList) != 5 {
		t.Fatalf("Expected 5 tools, got %d", len(toolList))
	}

	first := toolList[0].(map[string]any)
	if first["name"] == "" {
		t.Error("Expected tool name")
	}
	if _, ok := first["inputSchema"]; !ok {
		t.Error("Expected inputSchema on tool definition")
	}
}

func TestToolsCall(t *testing.T) {
	h := newTestHandler(t)

	_, resp := postMessage(t, h,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"get_patient_info","arguments":{"name":"John Doe"}}}`)
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result := resp.Result.(map[string]any)
	if result["isError"] != false {
		t.Errorf("Expected isError false, got %v", result["isError"])
	}
	content := result["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("Expected 1 content item, got %d", len(content))
	}
	text := content[0].(map[string]any)["text"].(string)
	if !strings.Contains(text, "John Doe") || !strings.Contains(text, "1980-05-15") {
		t.Errorf("Unexpected tool result text: %s", text)
	}
}

func TestToolsCallFailure(t *testing.T) {
	h := newTestHandler(t)

	_, resp := postMessage(t, h,
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"get_patient_info","arguments":{}}}`)
	if resp.Error != nil {
		t.Fatalf("Tool failure must not be a protocol error: %v", resp.Error)
	}

	result := resp.Result.(map[string]any)
	if result["isError"] != true {
		t.Errorf("Expected isError true, got %v", result["isError"])
	}
	content := result["content"].([]any)
	text := content[0].(map[string]any)["text"].(string)
	if !strings.Contains(text, string(tools.KindInvalidArguments)) {
		t.Errorf("Expected invalid_arguments in text, got %s", text)
	}
}

func TestToolsCallMissingName(t *testing.T) {
	h := newTestHandler(t)

	_, resp := postMessage(t, h,
		`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"arguments":{}}}`)
	if resp.Error == nil {
		t.Fatal("Expected protocol error for missing tool name")
	}
	if resp.Error.Code != jsonrpc.InvalidParams {
		t.Errorf("Expected code %d, got %d", jsonrpc.InvalidParams, resp.Error.Code)
	}
}

func TestMethodNotFound(t *testing.T) {
	h := newTestHandler(t)

	_, resp := postMessage(t, h, `{"jsonrpc":"2.0","id":7,"method":"resources/list"}`)
	if resp.Error == nil {
		t.Fatal("Expected protocol error for unknown method")
	}
	if resp.Error.Code != jsonrpc.MethodNotFound {
		t.Errorf("Expected code %d, got %d", jsonrpc.MethodNotFound, resp.Error.Code)
	}
}

func TestNotificationAccepted(t *testing.T) {
	h := newTestHandler(t)

	rec, _ := postMessage(t, h, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("Expected status 202 for notification, got %d", rec.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	h := newTestHandler(t)

	_, resp := postMessage(t, h, `{not json`)
	if resp.Error == nil {
		t.Fatal("Expected parse error")
	}
	if resp.Error.Code != jsonrpc.ParseError {
		t.Errorf("Expected code %d, got %d", jsonrpc.ParseError, resp.Error.Code)
	}
}
