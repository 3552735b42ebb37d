package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatService "github.com/zhouzirui/moodchat/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	turnTimeout  = 45 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket对话处理器
type Handler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader

	readTimeout time.Duration
	// turnTimeout bounds one turn; it stays below readTimeout.
	turnTimeout time.Duration
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readTimeout: readTimeout,
		turnTimeout: turnTimeout,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("Websocket connected", "session_id", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go h.pingLoop(ctx, conn)

	h.sendInfo(conn, sessionID, map[string]any{
		"type":      "connected",
		"streaming": h.chatSvc.SupportsStreaming(),
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Websocket read failed", "session_id", sessionID, "error", err)
			}
			return
		}

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, "session mismatch")
		} else {
			h.handleMessage(ctx, conn, sessionID, &msg)
		}

		// 模型调用可能耗时较长，处理完成后再续期读超时
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, sessionID string, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, conn, sessionID, msg.Data)
	case "ping":
		h.sendInfo(conn, sessionID, map[string]any{"type": "pong"})
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) handleTextMessage(ctx context.Context, conn *websocket.Conn, sessionID string, raw json.RawMessage) {
	var text TextMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, "invalid text payload")
		return
	}
	input := strings.TrimSpace(text.Text)
	if input == "" {
		return
	}

	h.sendInfo(conn, sessionID, map[string]any{
		"type": "user",
		"text": input,
	})

	if h.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.turnTimeout)
		defer cancel()
	}

	var (
		result chatService.TurnResult
		err    error
	)
	if h.chatSvc.SupportsStreaming() {
		result, err = h.chatSvc.StreamTurn(ctx, sessionID, input, func(delta string) error {
			return h.write(conn, outgoingMessage{
				Type:      "result",
				SessionID: sessionID,
				Data:      map[string]any{"type": "ai_delta", "text": delta},
				Timestamp: time.Now().Unix(),
			})
		})
	} else {
		result, err = h.chatSvc.Turn(ctx, sessionID, input)
	}
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	h.sendInfo(conn, sessionID, map[string]any{
		"type":       "analysis",
		"sentiment":  result.Sentiment.Label,
		"confidence": result.Sentiment.Confidence,
		"trend":      result.Trend,
		"strategy":   result.Strategy,
	})
	h.sendInfo(conn, sessionID, map[string]any{
		"type":    "ai",
		"text":    result.Reply,
		"isFinal": true,
	})
}

func (h *Handler) sendInfo(conn *websocket.Conn, sessionID string, data map[string]any) {
	msg := outgoingMessage{
		Type:      "result",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := h.write(conn, msg); err != nil {
		slog.Warn("Websocket write failed", "session_id", sessionID, "error", err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := h.write(conn, msg); err != nil {
		slog.Warn("Websocket write failed", "error", err)
	}
}

// write is only called from the read loop goroutine; pings go through WriteControl.
func (h *Handler) write(conn *websocket.Conn, msg outgoingMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
