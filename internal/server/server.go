// Package server wires the HTTP surface: the natural-language query
// endpoints, the MCP endpoint, conversation management, health, and
// metrics.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"medagent-go/internal/conversation"
	"medagent-go/internal/llm"
	"medagent-go/internal/mcp"
	"medagent-go/internal/orchestrator"
	"medagent-go/internal/telemetry"
	"medagent-go/internal/tools"
)

// QueryRunner answers one free-text query against the record store.
type QueryRunner interface {
	Query(ctx context.Context, query string, history []llm.Message) (string, error)
}

// Dependencies are the wired components the HTTP surface exposes.
type Dependencies struct {
	Registry      *tools.Registry
	Invoker       *tools.Invoker
	Orchestrator  QueryRunner
	Conversations conversation.Manager
	Metrics       *telemetry.Metrics
}

var serverInfo = mcp.ServerInfo{Name: "medagent", Version: "1.0.0"}

// New creates the HTTP handler.
func New(deps Dependencies, logger zerolog.Logger) http.Handler {
	s := &server{
		deps:   deps,
		logger: logger.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(telemetry.HTTPMetricsMiddleware(deps.Metrics))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Conversation-Id"},
		ExposedHeaders:   []string{"Conversation-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/patient", s.handlePatientQuery)
	r.Post("/query", s.handleQuery)

	mcpHandler := mcp.NewHandler(deps.Registry, deps.Invoker, serverInfo, logger)
	r.Post("/mcp", mcpHandler.ServeHTTP)

	convHandler := conversation.NewHandler(deps.Conversations, logger)
	r.Mount("/conversations", convHandler.Routes())

	return r
}

type server struct {
	deps   Dependencies
	logger zerolog.Logger
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// handlePatientQuery handles GET /patient?q=... with a one-shot query
// and a plain-text answer.
func (s *server) handlePatientQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.renderBadRequest(w, r, "query parameter q is required")
		return
	}

	answer, err := s.deps.Orchestrator.Query(r.Context(), q, nil)
	if err != nil {
		s.renderQueryError(w, r, err)
		return
	}

	render.PlainText(w, r, answer)
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// QueryResponse is the body of a successful POST /query.
type QueryResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// handleQuery handles POST /query, optionally threading conversation
// history identified by the body field or the Conversation-Id header.
func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.renderBadRequest(w, r, "request body is not valid JSON")
		return
	}
	if req.Query == "" {
		s.renderBadRequest(w, r, "query is required")
		return
	}

	convID := req.ConversationID
	if convID == "" {
		convID = r.Header.Get("Conversation-Id")
	}

	var history []llm.Message
	if convID != "" {
		conv, err := s.deps.Conversations.Get(r.Context(), convID)
		if err != nil {
			s.renderConversationError(w, r, err)
			return
		}
		history = conv.History
	}

	answer, err := s.deps.Orchestrator.Query(r.Context(), req.Query, history)
	if err != nil {
		s.renderQueryError(w, r, err)
		return
	}

	if convID != "" {
		appendErr := s.deps.Conversations.AppendTurn(r.Context(), convID,
			llm.Message{Role: llm.RoleUser, Content: req.Query},
			llm.Message{Role: llm.RoleAssistant, Content: answer},
		)
		if appendErr != nil {
			// The answer is already composed; losing the turn is
			// recoverable, so log and return the answer anyway.
			s.logger.Warn().
				Err(appendErr).
				Str("conversation_id", convID).
				Msg("Failed to append conversation turn")
		}
		w.Header().Set("Conversation-Id", convID)
	}

	render.JSON(w, r, QueryResponse{
		Answer:         answer,
		ConversationID: convID,
	})
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (s *server) renderBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, errorEnvelope{Error: errorBody{
		Kind:    "invalid_request",
		Message: message,
	}})
}

// renderQueryError maps an orchestration failure to an HTTP status.
func (s *server) renderQueryError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	var qerr *orchestrator.QueryError
	if errors.As(err, &qerr) {
		kind = string(qerr.Kind)
		switch qerr.Kind {
		case orchestrator.ErrTimeout:
			status = http.StatusGatewayTimeout
		case orchestrator.ErrUpstream:
			status = http.StatusBadGateway
		case orchestrator.ErrRoundLimit:
			status = http.StatusInternalServerError
		}
	}

	s.logger.Error().
		Err(err).
		Str("kind", kind).
		Msg("Query failed")

	render.Status(r, status)
	render.JSON(w, r, errorEnvelope{Error: errorBody{
		Kind:    kind,
		Message: err.Error(),
	}})
}

func (s *server) renderConversationError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	var cerr *conversation.Error
	if errors.As(err, &cerr) {
		kind = cerr.Code
		switch cerr.Code {
		case conversation.ErrConversationInvalid:
			status = http.StatusBadRequest
		case conversation.ErrConversationNotFound, conversation.ErrConversationExpired:
			status = http.StatusNotFound
		}
	}

	render.Status(r, status)
	render.JSON(w, r, errorEnvelope{Error: errorBody{
		Kind:    kind,
		Message: err.Error(),
	}})
}
