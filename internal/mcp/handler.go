// Package mcp exposes the tool catalog over the Model Context Protocol:
// a JSON-RPC 2.0 endpoint serving initialize, ping, tools/list, and
// tools/call.
package mcp

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"medagent-go/internal/jsonrpc"
	"medagent-go/internal/tools"
)

const protocolVersion = "2024-11-05"

// ServerInfo identifies this server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Handler serves MCP requests over HTTP POST.
type Handler struct {
	registry *tools.Registry
	invoker  *tools.Invoker
	info     ServerInfo
	logger   zerolog.Logger
}

// NewHandler creates a new MCP handler.
func NewHandler(registry *tools.Registry, invoker *tools.Invoker, info ServerInfo, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		invoker:  invoker,
		info:     info,
		logger:   logger.With().Str("component", "mcp_handler").Logger(),
	}
}

// callParams are the parameters of a tools/call request.
type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ServeHTTP handles one JSON-RPC message per POST request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.renderResponse(w, r, jsonrpc.NewErrorResponse(nil,
			jsonrpc.NewError(jsonrpc.ParseError, "Could not read request body", nil)))
		return
	}
	defer r.Body.Close()

	msg, perr := jsonrpc.ParseMessage(body)
	if perr != nil {
		rpcErr, ok := perr.(*jsonrpc.Error)
		if !ok {
			rpcErr = jsonrpc.NewError(jsonrpc.InternalError, perr.Error(), nil)
		}
		h.renderResponse(w, r, jsonrpc.NewErrorResponse(nil, rpcErr))
		return
	}

	switch m := msg.(type) {
	case *jsonrpc.Notification:
		h.logger.Debug().
			Str("method", m.Method).
			Msg("Notification received")
		w.WriteHeader(http.StatusAccepted)

	case *jsonrpc.Request:
		h.renderResponse(w, r, h.dispatch(r, m))

	default:
		h.renderResponse(w, r, jsonrpc.NewErrorResponse(nil,
			jsonrpc.NewError(jsonrpc.InvalidRequest, "Unsupported message type", nil)))
	}
}

// dispatch routes one request to its method handler.
func (h *Handler) dispatch(r *http.Request, req *jsonrpc.Request) *jsonrpc.Response {
	h.logger.Debug().
		Str("method", req.Method).
		Interface("id", req.ID).
		Msg("Dispatching MCP request")

	switch req.Method {
	case "initialize":
		return jsonrpc.NewResponse(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      h.info,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
		})

	case "ping":
		return jsonrpc.NewResponse(req.ID, map[string]any{})

	case "tools/list":
		return jsonrpc.NewResponse(req.ID, map[string]any{
			"tools": h.registry.MCPDefinitions(),
		})

	case "tools/call":
		return h.callTool(r, req)

	default:
		return jsonrpc.NewErrorResponse(req.ID,
			jsonrpc.NewError(jsonrpc.MethodNotFound, "Method not found", req.Method))
	}
}

// callTool invokes one tool. Tool-level failures become isError results
// rather than protocol errors, so the caller can read the failure.
func (h *Handler) callTool(r *http.Request, req *jsonrpc.Request) *jsonrpc.Response {
	var params callParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(req.ID,
			jsonrpc.NewError(jsonrpc.InvalidParams, "Invalid tools/call parameters", nil))
	}
	if params.Name == "" {
		return jsonrpc.NewErrorResponse(req.ID,
			jsonrpc.NewError(jsonrpc.InvalidParams, "Tool name is required", nil))
	}

	result := h.invoker.Invoke(r.Context(), tools.InvocationRequest{
		Tool:      params.Name,
		Arguments: params.Arguments,
	})

	var text string
	if result.Success {
		payload, err := json.Marshal(result.Payload)
		if err != nil {
			return jsonrpc.NewErrorResponse(req.ID,
				jsonrpc.NewError(jsonrpc.InternalError, "Could not serialize tool result", nil))
		}
		text = string(payload)
	} else {
		payload, err := json.Marshal(result.Error)
		if err != nil {
			return jsonrpc.NewErrorResponse(req.ID,
				jsonrpc.NewError(jsonrpc.InternalError, "Could not serialize tool error", nil))
		}
		text = string(payload)
	}

	return jsonrpc.NewResponse(req.ID, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"isError": !result.Success,
	})
}

func (h *Handler) renderResponse(w http.ResponseWriter, r *http.Request, resp *jsonrpc.Response) {
	render.JSON(w, r, resp)
}
