package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
)

// WSHandler serves the taker's attempt socket: answers, anti-cheat events and
// submission go in; acknowledgements, live tallies and the result come out.
type WSHandler struct {
	service  *app.AttemptService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     logger,
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

type answerLogged struct {
	QuestionID string `json:"questionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades HTTP requests to websockets bound to one attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	attemptID := r.URL.Query().Get("attemptId")
	if attemptID == "" {
		http.Error(w, "missing attemptId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, cancel, err := h.service.Watch(ctx, attemptID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.String("attemptId", attemptID), zap.Error(err))
				// Unblocks the read loop below.
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case counts, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "tally", Payload: tallyResponse{AttemptID: attemptID, Counts: counts}}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// push gives up once the writer has stopped so the read loop never blocks.
	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(errorMessage("invalid answer payload"))
				continue
			}
			if err := h.service.LogAnswer(ctx, attemptID, payload.QuestionID, payload.Value); err != nil {
				_, body := errorResponse(err)
				push(errorMessage(body.Error))
				continue
			}
			push(outboundMessage[any]{Type: "answerLogged", Payload: answerLogged{QuestionID: payload.QuestionID}})
		case "event":
			var payload eventRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.log.Warn("dropping undecodable anti-cheat event", zap.String("attemptId", attemptID), zap.Error(err))
				continue
			}
			// The tally update reaches the client through the watch channel.
			h.service.RecordEvent(ctx, payload.toEvent(attemptID))
		case "submit":
			result, err := h.service.SubmitAttempt(ctx, attemptID)
			if err != nil {
				_, body := errorResponse(err)
				push(errorMessage(body.Error))
				continue
			}
			push(outboundMessage[any]{Type: "result", Payload: result})
		default:
			push(errorMessage("unsupported message type"))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
