package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vocab-quest-service/internal/app"
	"vocab-quest-service/internal/domain"
)

// WSHandler runs one quest session per websocket connection.
type WSHandler struct {
	service  *app.QuestService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuestService, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	WordID  string `json:"wordId"`
	Correct bool   `json:"correct"`
}

type joinedPayload struct {
	ConnectionID string              `json:"connectionId"`
	Session      domain.QuestSession `json:"session"`
	Balance      domain.XPBalance    `json:"balance"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorFrame(logger *zap.Logger, op string, err error) outboundMessage[any] {
	status, message := publicError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("ws "+op+" failed", zap.Error(err))
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}

// ServeWS upgrades the request and drives answers and completion requests for one session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	number, err := strconv.Atoi(r.URL.Query().Get("sessionNumber"))
	if userID == "" || err != nil || number < 1 {
		http.Error(w, "missing sessionNumber or userId", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	session, err := h.service.SessionByNumber(ctx, number)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	logger := h.logger.With(zap.String("conn_id", connID), zap.String("user_id", userID), zap.String("session_id", session.ID))

	balance, err := h.service.Balance(ctx, userID)
	if err != nil {
		_ = conn.WriteJSON(errorFrame(logger, "balance", err))
		return
	}

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Single writer; gorilla connections allow one concurrent writer.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write failed", zap.Error(err))
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{ConnectionID: connID, Session: session, Balance: balance}}
	logger.Info("quest session joined")

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			result, err := h.service.SubmitQuestAnswer(ctx, userID, session.ID, payload.WordID, payload.Correct, time.Time{})
			if err != nil {
				send <- errorFrame(logger, "answer", err)
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		case "complete":
			result, err := h.service.RequestSessionCompletion(ctx, userID, session.ID)
			if err != nil {
				send <- errorFrame(logger, "completion", err)
				continue
			}
			logger.Info("completion requested", zap.String("status", string(result.Status)))
			send <- outboundMessage[any]{Type: "completion", Payload: result}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}
