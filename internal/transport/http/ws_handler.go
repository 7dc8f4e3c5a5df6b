package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(service *app.GameService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
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
	Value string `json:"value"`
}

type limitPayload struct {
	Limit int `json:"limit"`
}

type answerResult struct {
	Correct bool   `json:"correct"`
	Score   int    `json:"score"`
	Problem string `json:"problem,omitempty"`
}

// stateView is the session as clients see it; the active problem is shown without its answer.
type stateView struct {
	SessionID     string        `json:"sessionId,omitempty"`
	Score         int           `json:"score"`
	RemainingTime int           `json:"remainingTime"`
	ActiveProblem *problemShown `json:"activeProblem,omitempty"`
	Phase         domain.Phase  `json:"phase"`
}

type problemShown struct {
	Text string             `json:"text"`
	Kind domain.ProblemKind `json:"kind"`
}

func newStateView(s domain.SessionState) stateView {
	v := stateView{SessionID: s.SessionID, Score: s.Score, RemainingTime: s.RemainingTime, Phase: s.Phase}
	if s.ActiveProblem != nil {
		v.ActiveProblem = &problemShown{Text: s.ActiveProblem.Text, Kind: s.ActiveProblem.Kind}
	}
	return v
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	joined, err := h.service.Join(ctx, userID, displayName)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// the writer is the only goroutine touching conn for writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.String("user_id", userID), zap.Error(err))
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: ev.Type, Payload: ev.Payload}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	push(outboundMessage[any]{Type: "joined", Payload: newStateView(joined)})
	h.log.Info("player connected", zap.String("user_id", userID))

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, userID, inbound, push); err != nil {
			push(errorMessage(err))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone

	cancel()
	h.service.Leave(context.Background(), userID)
	h.log.Info("player disconnected", zap.String("user_id", userID))
}

func (h *WSHandler) dispatch(ctx context.Context, userID string, in inboundMessage, push func(outboundMessage[any])) error {
	switch in.Type {
	case "start":
		_, err := h.service.Start(ctx, userID)
		return err
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			return errors.New("invalid answer payload")
		}
		correct, state, err := h.service.Submit(ctx, userID, payload.Value)
		if err != nil {
			return err
		}
		res := answerResult{Correct: correct, Score: state.Score}
		if state.ActiveProblem != nil {
			res.Problem = state.ActiveProblem.Text
		}
		push(outboundMessage[any]{Type: "answerResult", Payload: res})
		return nil
	case "stop":
		_, err := h.service.Stop(ctx, userID)
		return err
	case "reset":
		state, err := h.service.Reset(ctx, userID)
		if err != nil {
			return err
		}
		push(outboundMessage[any]{Type: "state", Payload: newStateView(state)})
		return nil
	case "summary":
		return h.service.PushSummary(ctx, userID)
	case "history":
		payload, err := decodeLimit(in.Payload)
		if err != nil {
			return err
		}
		return h.service.PushHistory(ctx, userID, payload.Limit)
	case "leaderboard":
		payload, err := decodeLimit(in.Payload)
		if err != nil {
			return err
		}
		return h.service.PushLeaderboard(ctx, userID, payload.Limit)
	default:
		return errors.New("unsupported message type")
	}
}

func decodeLimit(raw json.RawMessage) (limitPayload, error) {
	var payload limitPayload
	if len(raw) == 0 || string(raw) == "null" {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, domain.ErrInvalidLimit
	}
	return payload, nil
}

// errorMessage reports store failures as warnings and everything else as errors.
func errorMessage(err error) outboundMessage[any] {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		return outboundMessage[any]{Type: app.EventWarning, Payload: errorPayload{Message: err.Error()}}
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
