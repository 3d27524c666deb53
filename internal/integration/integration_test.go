package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tktogether/motleycrowd/internal/domain"
	"github.com/tktogether/motleycrowd/internal/game"
	"github.com/tktogether/motleycrowd/internal/infra/memory"
	"github.com/tktogether/motleycrowd/internal/transport/ws"
)

// TestFullGameOverWebsocket drives the real client, dispatcher and session
// against a scripted game server: join, one question, answer progress, then
// settlement.
func TestFullGameOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Errorf("read join: %v", err)
			return
		}
		if frame["command"] != "game.join" {
			t.Errorf("unexpected command %v", frame["command"])
			return
		}
		_ = conn.WriteJSON(map[string]any{
			"seq":     frame["seq"],
			"success": true,
			"data": domain.RoomInfo{
				Users: []domain.User{
					{ID: "me", Username: "Me"},
					{ID: "u2", Username: "Bob"},
				},
				Limit: 2,
			},
		})

		// The client confirms it applied the join ack before the game is
		// scripted, so event handling cannot overtake the join mutation.
		if err := conn.ReadJSON(&frame); err != nil {
			t.Errorf("read sync: %v", err)
			return
		}
		_ = conn.WriteJSON(map[string]any{"seq": frame["seq"], "success": true})

		_ = conn.WriteJSON(map[string]any{"event": "game.ready"})
		_ = conn.WriteJSON(map[string]any{
			"event":   "game.question",
			"payload": domain.QuestionEvent{Index: 0, QuestionID: "q1", Picked: []string{"A"}},
		})
		_ = conn.WriteJSON(map[string]any{
			"event":   "game.answer",
			"payload": domain.AnswerEvent{Index: 0, Count: 2},
		})
		// Stale progress for a question that is long gone.
		_ = conn.WriteJSON(map[string]any{
			"event":   "game.answer",
			"payload": domain.AnswerEvent{Index: 9, Count: 7},
		})
		_ = conn.WriteJSON(map[string]any{
			"event": "game.settlement",
			"payload": domain.SettlementPayload{
				Questions: []domain.SettlementQuestion{{ID: "q1", Picked: []string{"A"}}},
				Scores: map[string]domain.ScoreEntry{
					"me": {Total: 10, Submissions: []domain.Submission{{Value: []byte("1"), Answer: "A"}}},
					"u2": {Total: 5, Submissions: []domain.Submission{{Value: []byte("0")}}},
				},
			},
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx := context.Background()
	client, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http")+"/ws", zerolog.Nop())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	catalog := memory.NewQuestionCatalog(memory.NewStaticQuestionLoader(map[string]domain.QuestionContent{
		"q1": {ID: "q1", Prompt: "Pick one", Options: []string{"A", "B"}},
	}), time.Minute)

	session := game.NewSession("me", client, catalog)
	game.Bind(ctx, client, session, zerolog.Nop())
	notifications, cancel := session.Subscribe()
	defer cancel()

	go func() { _ = client.Run() }()

	joinCtx, joinCancel := context.WithTimeout(ctx, 5*time.Second)
	defer joinCancel()
	if !session.Join(joinCtx, "ROOM1") {
		t.Fatalf("join rejected")
	}
	if _, err := client.Send(joinCtx, "sync", nil); err != nil {
		t.Fatalf("sync: %v", err)
	}

	want := []game.Kind{
		game.KindReady,
		game.KindGameStarted,
		game.KindNewQuestion,
		game.KindAnswerProgress,
		game.KindSettlement,
	}
	var settlement *game.Settlement
	for _, kind := range want {
		notification := nextNotification(t, notifications)
		if notification.Kind != kind {
			t.Fatalf("expected %s, got %s", kind, notification.Kind)
		}
		if kind == game.KindSettlement {
			settlement = notification.Settlement
		}
	}

	if session.InRoom() || session.Started() || session.QuestionIndex() != -1 {
		t.Fatalf("session must be cleared after settlement")
	}
	if settlement == nil || session.LastSettlement() != settlement {
		t.Fatalf("settlement must be retained on the session")
	}
	if rank := settlement.RankOf("me"); rank != 1 {
		t.Fatalf("RankOf(me) = %d, want 1", rank)
	}
	if rank := settlement.RankOf("u2"); rank != 2 {
		t.Fatalf("RankOf(u2) = %d, want 2", rank)
	}
	result := settlement.At(0)
	if result == nil || result.TotalParticipants != 2 || result.Breakdown.Answers["me"] != "A" {
		t.Fatalf("unexpected settlement result: %+v", result)
	}
	if user, ok := settlement.UserOf("u2"); !ok || user.Username != "Bob" {
		t.Fatalf("settlement lost pre-clear membership: %+v ok=%v", user, ok)
	}
}

func nextNotification(t *testing.T, notifications <-chan game.Notification) game.Notification {
	t.Helper()
	select {
	case n := <-notifications:
		return n
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for notification")
		return game.Notification{}
	}
}
