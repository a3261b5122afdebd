package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"llmfit/internal/events"
	"llmfit/internal/state"
)

const (
	watchWSWriteWait = 10 * time.Second
	watchWSPongWait  = 60 * time.Second
	watchWSPingEvery = (watchWSPongWait * 9) / 10
)

var watchWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchInbound struct {
	Type       string `json:"type"`
	RunID      string `json:"runId,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	Answer     string `json:"answer,omitempty"`
}

type watchOutbound struct {
	Type     string          `json:"type"`
	RunID    string          `json:"runId,omitempty"`
	Event    json.RawMessage `json:"event,omitempty"`
	Accepted bool            `json:"accepted,omitempty"`
	Code     string          `json:"code,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// handleWatch serves the interactive websocket: run events flow out, and
// answers or a cancel can flow back in on the same connection.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request, runID string) {
	ch, unsubscribe, subErr := s.registry.Subscribe(runID)

	conn, err := watchWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		if subErr == nil {
			unsubscribe()
		}
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(watchWSPongWait)); err != nil {
		log.Printf("watch ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchWSPongWait))
	})

	writeCh := make(chan watchOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(watchWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	if subErr != nil {
		pushWatchWS(writeCh, watchOutbound{
			Type:    "error",
			Code:    "not_found",
			Message: subErr.Error(),
		})
		cancel()
		<-writerDone
		return
	}
	defer unsubscribe()

	pushWatchWS(writeCh, watchOutbound{Type: "subscribed", RunID: runID})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					pushWatchWS(writeCh, watchOutbound{Type: "done", RunID: runID})
					return
				}
				raw, err := events.Marshal(ev)
				if err != nil {
					log.Printf("watch ws encode %s failed: %v", ev.EventType(), err)
					continue
				}
				pushWatchWS(writeCh, watchOutbound{Type: "event", RunID: runID, Event: raw})
			}
		}
	}()

	for {
		var in watchInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		msgType := strings.ToLower(strings.TrimSpace(in.Type))
		if msgType == "" {
			pushWatchWS(writeCh, watchOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "type is required",
			})
			continue
		}
		if v := strings.TrimSpace(in.RunID); v != "" && v != runID {
			pushWatchWS(writeCh, watchOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "runId mismatch",
			})
			continue
		}

		switch msgType {
		case "ping":
			pushWatchWS(writeCh, watchOutbound{Type: "pong"})
		case "answer":
			err := s.registry.SubmitAnswers(ctx, runID, []state.Answer{{
				QuestionID: strings.TrimSpace(in.QuestionID),
				AnswerText: strings.TrimSpace(in.Answer),
			}})
			if err != nil {
				pushWatchWS(writeCh, watchOutbound{
					Type:    "error",
					Code:    "failed_precondition",
					Message: err.Error(),
				})
				continue
			}
			pushWatchWS(writeCh, watchOutbound{Type: "answer_ack", RunID: runID, Accepted: true})
		case "cancel":
			changed := s.registry.CancelRun(runID)
			pushWatchWS(writeCh, watchOutbound{Type: "cancel_ack", RunID: runID, Accepted: changed})
		default:
			pushWatchWS(writeCh, watchOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "unsupported type: " + msgType,
			})
		}
	}
}

// pushWatchWS never blocks the caller: when the write buffer is full the
// oldest queued message is dropped to make room.
func pushWatchWS(writeCh chan watchOutbound, out watchOutbound) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
