package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/domain"
	"mathsprint-service/internal/infra/memory"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	records := app.NewRecords(memory.NewStore())
	service := app.NewGameService(memory.NewPlayerStore(), records,
		app.GameConfig{Duration: 600, Tick: 50 * time.Millisecond},
		app.WithLeaderboard(memory.NewLeaderboardCache(records, time.Minute)),
	)
	server := httptest.NewServer(NewRouter(NewAPI(service, nil), NewWSHandler(service, nil)))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	return dialURL(t, server.URL, query)
}

func dialURL(t *testing.T, serverURL, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + serverURL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil skips messages until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
		if msg.Type == "error" {
			t.Fatalf("unexpected error while waiting for %s: %s", want, msg.Payload)
		}
	}
}

func solve(t *testing.T, text string) int {
	t.Helper()
	var a, b int
	var op string
	if _, err := fmt.Sscanf(text, "%d %s %d =", &a, &op, &b); err != nil {
		t.Fatalf("parse problem %q: %v", text, err)
	}
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "×":
		return a * b
	case "÷":
		return a / b
	}
	t.Fatalf("unknown operator %q", op)
	return 0
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func TestWebSocketGameFlow(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "userId=u1&name=Ada")

	var joined domain.SessionState
	if err := json.Unmarshal(readUntil(t, conn, "joined"), &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	if joined.Phase != domain.PhaseIdle {
		t.Fatalf("expected idle engine, got %s", joined.Phase)
	}

	send(t, conn, "start", nil)
	var problem struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(readUntil(t, conn, "problem"), &problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}

	send(t, conn, "answer", map[string]string{"value": "not a number"})
	var result answerResult
	if err := json.Unmarshal(readUntil(t, conn, "answerResult"), &result); err != nil {
		t.Fatalf("decode answer result: %v", err)
	}
	if result.Correct || result.Score != 0 {
		t.Fatalf("expected ignored input, got %+v", result)
	}

	send(t, conn, "answer", map[string]string{"value": fmt.Sprint(solve(t, problem.Text))})
	if err := json.Unmarshal(readUntil(t, conn, "answerResult"), &result); err != nil {
		t.Fatalf("decode answer result: %v", err)
	}
	if !result.Correct || result.Score != 1 || result.Problem == "" {
		t.Fatalf("expected correct answer with a next problem, got %+v", result)
	}

	send(t, conn, "stop", nil)
	var ended domain.SessionResult
	if err := json.Unmarshal(readUntil(t, conn, "ended"), &ended); err != nil {
		t.Fatalf("decode ended: %v", err)
	}
	if ended.Score != 1 {
		t.Fatalf("expected final score 1, got %d", ended.Score)
	}

	var history domain.History
	if err := json.Unmarshal(readUntil(t, conn, "history"), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Results) != 1 || history.Results[0].Score != 1 {
		t.Fatalf("unexpected game-over history %+v", history)
	}

	var lb domain.Leaderboard
	if err := json.Unmarshal(readUntil(t, conn, "leaderboard"), &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].DisplayName != "Ada" || lb.Entries[0].Rank != 1 {
		t.Fatalf("unexpected game-over leaderboard %+v", lb)
	}

	send(t, conn, "stop", nil)
	readUntil(t, conn, "error")
}

func TestWebSocketSecondConnectionSeesNoAnswer(t *testing.T) {
	server := newTestServer(t)
	first := dial(t, server, "userId=u3&name=Cy")
	readUntil(t, first, "joined")
	send(t, first, "start", nil)
	readUntil(t, first, "problem")

	second := dial(t, server, "userId=u3")
	raw := readUntil(t, second, "joined")
	var joined map[string]json.RawMessage
	if err := json.Unmarshal(raw, &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	var phase domain.Phase
	if err := json.Unmarshal(joined["phase"], &phase); err != nil || phase != domain.PhaseRunning {
		t.Fatalf("expected the running session, got %s (%v)", joined["phase"], err)
	}
	var problem map[string]json.RawMessage
	if err := json.Unmarshal(joined["activeProblem"], &problem); err != nil {
		t.Fatalf("decode active problem: %v", err)
	}
	if _, ok := problem["text"]; !ok {
		t.Fatalf("expected problem text, got %s", joined["activeProblem"])
	}
	for _, field := range []string{"answer", "Answer"} {
		if _, ok := problem[field]; ok {
			t.Fatalf("joined payload leaks the answer: %s", raw)
		}
	}

	send(t, first, "stop", nil)
	readUntil(t, first, "ended")
	send(t, first, "reset", nil)
	raw = readUntil(t, first, "state")
	if strings.Contains(string(raw), "answer") {
		t.Fatalf("state payload leaks the answer: %s", raw)
	}
}

func TestWebSocketSummaryRequest(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "userId=u2&name=Bob")
	readUntil(t, conn, "joined")

	send(t, conn, "summary", nil)
	var summary domain.Summary
	if err := json.Unmarshal(readUntil(t, conn, "summary"), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !summary.NoData || summary.GamesPlayed != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}

	send(t, conn, "history", map[string]int{"limit": -1})
	readUntil(t, conn, "error")

	send(t, conn, "dance", nil)
	readUntil(t, conn, "error")
}

func TestWebSocketRequiresUser(t *testing.T) {
	server := newTestServer(t)
	u := "ws" + server.URL[len("http"):] + "/ws?name=Nobody"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}
