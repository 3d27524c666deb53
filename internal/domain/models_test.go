package domain

import (
	"encoding/json"
	"testing"
)

func TestUserEventDecode(t *testing.T) {
	raw := `[[["u1", false, "Ann"], ["#g1", true, "#g1"]], ["u9"]]`
	var ev UserEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(ev.Joined) != 2 || len(ev.Left) != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Joined[1].ID != "#g1" || !ev.Joined[1].Guest {
		t.Fatalf("guest entry decoded wrong: %+v", ev.Joined[1])
	}
	if ev.Left[0] != "u9" {
		t.Fatalf("left decoded wrong: %v", ev.Left)
	}
}

func TestQuestionAndAnswerEventDecode(t *testing.T) {
	var q QuestionEvent
	if err := json.Unmarshal([]byte(`[2, "q3", ["A", "B"]]`), &q); err != nil {
		t.Fatalf("question: %v", err)
	}
	if q.Index != 2 || q.QuestionID != "q3" || len(q.Picked) != 2 {
		t.Fatalf("unexpected question event: %+v", q)
	}

	var a AnswerEvent
	if err := json.Unmarshal([]byte(`[2, 5]`), &a); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if a.Index != 2 || a.Count != 5 {
		t.Fatalf("unexpected answer event: %+v", a)
	}
}

func TestTupleLengthMismatchRejected(t *testing.T) {
	var a AnswerEvent
	if err := json.Unmarshal([]byte(`[2]`), &a); err == nil {
		t.Fatalf("expected error for short tuple")
	}
}

func TestSubmissionForms(t *testing.T) {
	var bare Submission
	if err := json.Unmarshal([]byte(`3`), &bare); err != nil {
		t.Fatalf("bare: %v", err)
	}
	if bare.Answered() || string(bare.Value) != "3" {
		t.Fatalf("unexpected bare submission: %+v", bare)
	}

	var pair Submission
	if err := json.Unmarshal([]byte(`[3, "B"]`), &pair); err != nil {
		t.Fatalf("pair: %v", err)
	}
	if !pair.Answered() || pair.Answer != "B" || string(pair.Value) != "3" {
		t.Fatalf("unexpected pair submission: %+v", pair)
	}
}

func TestSettlementPayloadDecode(t *testing.T) {
	raw := `{
		"questions": [["q1", ["A", "B"]], ["q2", []]],
		"scores": {
			"u1": [12.5, [[1, "A"], 0]],
			"u2": [0, [0, 0]]
		}
	}`
	var payload SettlementPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Questions) != 2 || payload.Questions[0].ID != "q1" || len(payload.Questions[0].Picked) != 2 {
		t.Fatalf("unexpected questions: %+v", payload.Questions)
	}
	entry := payload.Scores["u1"]
	if entry.Total != 12.5 || len(entry.Submissions) != 2 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if !entry.Submissions[0].Answered() || entry.Submissions[1].Answered() {
		t.Fatalf("submission answers decoded wrong: %+v", entry.Submissions)
	}
}

func TestUserEventRoundTrip(t *testing.T) {
	ev := UserEvent{
		Joined: []User{{ID: "u1", Guest: false, Username: "Ann"}},
		Left:   []string{"u2"},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded UserEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Joined) != 1 || decoded.Joined[0] != ev.Joined[0] || decoded.Left[0] != "u2" {
		t.Fatalf("round trip diverged: %+v", decoded)
	}
}
