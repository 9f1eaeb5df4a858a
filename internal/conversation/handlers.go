package conversation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
)

// Handler exposes HTTP endpoints for conversation management.
type Handler struct {
	manager Manager
	logger  zerolog.Logger
}

// NewHandler creates a new conversation handler.
func NewHandler(manager Manager, logger zerolog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Routes mounts the conversation endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	return r
}

// Info is the wire representation of a conversation.
type Info struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
	ExpiresAt  time.Time `json:"expires_at"`
	Turns      int       `json:"turns"`
}

func toInfo(conv *Conversation) Info {
	return Info{
		ID:         conv.ID,
		CreatedAt:  conv.CreatedAt,
		LastAccess: conv.LastAccess,
		ExpiresAt:  conv.ExpiresAt,
		Turns:      len(conv.History),
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Create handles POST /conversations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	conv, err := h.manager.Create(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create conversation")
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Conversation-Id", conv.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toInfo(conv))

	h.logger.Info().
		Str("conversation_id", conv.ID).
		Time("expires_at", conv.ExpiresAt).
		Msg("Conversation created via API")
}

// Get handles GET /conversations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conv, err := h.manager.Get(r.Context(), id)
	if err != nil {
		h.logger.Debug().
			Err(err).
			Str("conversation_id", id).
			Msg("Conversation lookup failed")
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, toInfo(conv))
}

// Delete handles DELETE /conversations/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.logger.Debug().
			Err(err).
			Str("conversation_id", id).
			Msg("Conversation deletion failed")
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"success":         true,
		"conversation_id": id,
	})
}

// renderError maps a conversation error to an HTTP status.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := ErrConversationStorage

	if cerr, ok := err.(*Error); ok {
		code = cerr.Code
		switch cerr.Code {
		case ErrConversationInvalid:
			status = http.StatusBadRequest
		case ErrConversationNotFound, ErrConversationExpired:
			status = http.StatusNotFound
		}
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{
		Success: false,
		Code:    code,
		Message: err.Error(),
	})
}
