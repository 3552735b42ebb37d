package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/moodchat/backend/internal/service/chat"
	"github.com/zhouzirui/moodchat/backend/pkg/utils"
)

// Handler manages streaming AI responses via Server-Sent Events
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
	Trend     string `json:"trend,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes 注册流式对话路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := strings.TrimSpace(r.URL.Query().Get("message"))

	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
		slog.Warn("Stream request failed", "session_id", sessionID, "error", err)
	}
}

// HandleStreamRequest runs one turn and reports it as Server-Sent Events.
// Once headers are sent, failures are reported in-band as "error" events.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	send := func(resp StreamResponse) error {
		return utils.SendSSEChunk(w, flusher, resp)
	}

	if err := send(StreamResponse{Event: "start", SessionID: sessionID}); err != nil {
		return err
	}

	var (
		result chatService.TurnResult
		err    error
	)
	if h.chatSvc.SupportsStreaming() {
		result, err = h.chatSvc.StreamTurn(ctx, sessionID, userMessage, func(delta string) error {
			return send(StreamResponse{Event: "delta", SessionID: sessionID, Content: delta})
		})
	} else {
		result, err = h.chatSvc.Turn(ctx, sessionID, userMessage)
	}
	if err != nil {
		_ = send(StreamResponse{Event: "error", SessionID: sessionID, Error: publicError(err)})
		return err
	}

	events := []StreamResponse{
		{Event: "message", SessionID: sessionID, Content: result.Reply},
		{
			Event:     "emotion",
			SessionID: sessionID,
			Sentiment: string(result.Sentiment.Label),
			Trend:     string(result.Trend),
			Strategy:  string(result.Strategy),
		},
		{Event: "end", SessionID: sessionID, Finished: true},
	}
	for _, ev := range events {
		if err := send(ev); err != nil {
			return err
		}
	}

	slog.Debug("Stream completed", "session_id", sessionID, "strategy", result.Strategy)
	return nil
}

func publicError(err error) string {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound), errors.Is(err, chatService.ErrEmptyInput):
		return err.Error()
	default:
		return "turn failed: " + err.Error()
	}
}
