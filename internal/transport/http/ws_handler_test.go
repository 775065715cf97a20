package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"vocab-quest-service/internal/app"
	"vocab-quest-service/internal/domain"
	"vocab-quest-service/internal/infra/memory"
	"vocab-quest-service/internal/testutil"
)

func newTestService(t *testing.T) *app.QuestService {
	t.Helper()
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(sampleSessions()), time.Minute)
	return app.NewQuestService(app.Stores{
		Catalog:     catalog,
		Words:       memory.NewWordStateStore(),
		Ledger:      memory.NewLedger(),
		Completions: memory.NewCompletionStore(),
		Attempts:    memory.NewAttemptStore(),
		Activity:    memory.NewActivityLog(),
	}, app.WithLogger(zaptest.NewLogger(t)))
}

func TestWebSocketQuestFlow(t *testing.T) {
	wsHandler := NewWSHandler(newTestService(t), zaptest.NewLogger(t))

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?sessionNumber=1&userId=u1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "joined")
	if payload["connectionId"] == "" {
		t.Fatalf("expected a connection id, got %v", payload)
	}

	sendAnswer(t, conn, "w2", false)
	_, payload = readNext(conn, t, "answerResult")
	if xp := payload["xpAwarded"].(float64); xp != 2 {
		t.Fatalf("expected 2 xp for a wrong answer, got %v", xp)
	}

	if err := conn.WriteJSON(map[string]any{"type": "complete"}); err != nil {
		t.Fatalf("write complete: %v", err)
	}
	_, payload = readNext(conn, t, "completion")
	if payload["status"] != string(domain.CompletionBlocked) {
		t.Fatalf("expected blocked completion, got %v", payload)
	}

	sendAnswer(t, conn, "w2", true)
	readNext(conn, t, "answerResult")

	if err := conn.WriteJSON(map[string]any{"type": "complete"}); err != nil {
		t.Fatalf("write complete: %v", err)
	}
	_, payload = readNext(conn, t, "completion")
	if payload["status"] != string(domain.CompletionCompleted) {
		t.Fatalf("expected completed, got %v", payload)
	}
	balance := payload["balance"].(map[string]any)
	if total := balance["xpTotal"].(float64); total != 62 {
		t.Fatalf("expected 62 xp after bonus, got %v", total)
	}
}

func TestWebSocketRejectsUnknownMessages(t *testing.T) {
	wsHandler := NewWSHandler(newTestService(t), zaptest.NewLogger(t))
	server := httptest.NewServer(http.HandlerFunc(wsHandler.ServeWS))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"?sessionNumber=1&userId=u1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(conn, t, "joined")

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readNext(conn, t, "error")

	sendAnswer(t, conn, "w6", true)
	_, payload := readNext(conn, t, "error")
	if payload["message"] == "" {
		t.Fatalf("expected an error message for a word outside the session")
	}
}

func TestWebSocketHidesStoreFailureDetail(t *testing.T) {
	words := &testutil.MockWordStateStore{}
	words.On("Upsert", mock.Anything, "u1", "w1", mock.Anything).
		Return(nil, domain.NewStoreError("upsert word state", errors.New("dial tcp 10.0.0.7:5432: connection refused")))
	catalog := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(sampleSessions()), time.Minute)
	service := app.NewQuestService(app.Stores{
		Catalog:     catalog,
		Words:       words,
		Ledger:      memory.NewLedger(),
		Completions: memory.NewCompletionStore(),
		Attempts:    memory.NewAttemptStore(),
		Activity:    memory.NewActivityLog(),
	}, app.WithLogger(zaptest.NewLogger(t)))

	wsHandler := NewWSHandler(service, zaptest.NewLogger(t))
	server := httptest.NewServer(http.HandlerFunc(wsHandler.ServeWS))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"?sessionNumber=1&userId=u1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(conn, t, "joined")

	sendAnswer(t, conn, "w1", true)
	_, payload := readNext(conn, t, "error")
	message, _ := payload["message"].(string)
	if message != http.StatusText(http.StatusServiceUnavailable) {
		t.Fatalf("expected generic unavailable message, got %q", message)
	}
	if strings.Contains(message, "10.0.0.7") {
		t.Fatalf("driver detail leaked to client: %q", message)
	}

	sendAnswer(t, conn, "w6", true)
	_, payload = readNext(conn, t, "error")
	if message, _ := payload["message"].(string); !strings.Contains(message, "w6") {
		t.Fatalf("expected client error to keep its detail, got %q", message)
	}
}

func TestWebSocketHandshakeValidation(t *testing.T) {
	wsHandler := NewWSHandler(newTestService(t), zaptest.NewLogger(t))
	server := httptest.NewServer(http.HandlerFunc(wsHandler.ServeWS))
	defer server.Close()

	base := "ws" + server.URL[len("http"):]
	cases := map[string]int{
		"?userId=u1":                 http.StatusBadRequest,
		"?sessionNumber=x&userId=u1": http.StatusBadRequest,
		"?sessionNumber=9&userId=u1": http.StatusNotFound,
		"?sessionNumber=1&userId=":   http.StatusBadRequest,
	}
	for query, want := range cases {
		_, resp, err := websocket.DefaultDialer.Dial(base+query, nil)
		if err == nil {
			t.Fatalf("%s: expected handshake failure", query)
		}
		if resp == nil || resp.StatusCode != want {
			t.Fatalf("%s: expected status %d, got %v", query, want, resp)
		}
	}
}

func sendAnswer(t *testing.T, conn *websocket.Conn, wordID string, correct bool) {
	t.Helper()
	answer := map[string]any{
		"type": "answer",
		"payload": map[string]any{
			"wordId":  wordID,
			"correct": correct,
		},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

func sampleSessions() []domain.QuestSession {
	return []domain.QuestSession{
		{
			ID:     "s-1",
			Number: 1,
			Title:  "Fruit",
			Words: []domain.WordRef{
				{ID: "w1", Term: "apple"},
				{ID: "w2", Term: "pear"},
			},
		},
		{
			ID:     "s-2",
			Number: 2,
			Title:  "Kitchen",
			Words:  []domain.WordRef{{ID: "w6", Term: "spoon"}},
		},
	}
}
