package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// User represents one room participant as reported by the server.
// Wire form is the positional array [id, guest, username].
type User struct {
	ID       string
	Guest    bool
	Username string
}

func (u *User) UnmarshalJSON(data []byte) error {
	return unmarshalTuple(data, &u.ID, &u.Guest, &u.Username)
}

func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{u.ID, u.Guest, u.Username})
}

// UserEvent carries membership deltas: wire form [joined, left].
type UserEvent struct {
	Joined []User
	Left   []string
}

func (e *UserEvent) UnmarshalJSON(data []byte) error {
	return unmarshalTuple(data, &e.Joined, &e.Left)
}

func (e UserEvent) MarshalJSON() ([]byte, error) {
	joined := e.Joined
	if joined == nil {
		joined = []User{}
	}
	left := e.Left
	if left == nil {
		left = []string{}
	}
	return json.Marshal([]any{joined, left})
}

// QuestionEvent announces a new question: wire form [index, questionId, picked].
type QuestionEvent struct {
	Index      int
	QuestionID string
	Picked     []string
}

func (e *QuestionEvent) UnmarshalJSON(data []byte) error {
	return unmarshalTuple(data, &e.Index, &e.QuestionID, &e.Picked)
}

func (e QuestionEvent) MarshalJSON() ([]byte, error) {
	picked := e.Picked
	if picked == nil {
		picked = []string{}
	}
	return json.Marshal([]any{e.Index, e.QuestionID, picked})
}

// AnswerEvent reports how many users have answered: wire form [index, count].
type AnswerEvent struct {
	Index int
	Count int
}

func (e *AnswerEvent) UnmarshalJSON(data []byte) error {
	return unmarshalTuple(data, &e.Index, &e.Count)
}

func (e AnswerEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Index, e.Count})
}

// QuestionContent is the static content of a question as stored in the
// catalog backing store.
type QuestionContent struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// Question is a fully materialized question for one round: catalog content
// plus the per-round picked options, the options still open (resume only)
// and the local user's recorded answer, if any.
type Question struct {
	ID        string
	Prompt    string
	Options   []string
	Picked    []string
	Remaining []string
	Answer    string
}

// RoomInfo is the membership block returned by pair/join acks and carried
// inside create acks and resume payloads.
type RoomInfo struct {
	Users []User `json:"users"`
	Limit int    `json:"limit"`
}

// CreatedRoom is the ack payload of a create command.
type CreatedRoom struct {
	Room string   `json:"room"`
	Info RoomInfo `json:"info"`
}

// SettlementQuestion identifies one settled question: wire form [id, picked].
type SettlementQuestion struct {
	ID     string
	Picked []string
}

func (q *SettlementQuestion) UnmarshalJSON(data []byte) error {
	return unmarshalTuple(data, &q.ID, &q.Picked)
}

func (q SettlementQuestion) MarshalJSON() ([]byte, error) {
	picked := q.Picked
	if picked == nil {
		picked = []string{}
	}
	return json.Marshal([]any{q.ID, picked})
}

// Submission is one user's recorded entry for one question position.
// Wire form is either a bare value or the pair [value, answer]; a missing
// answer means the user never answered that question.
type Submission struct {
	Value  json.RawMessage
	Answer string
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return unmarshalTuple(data, &s.Value, &s.Answer)
	}
	s.Value = append(s.Value[:0], trimmed...)
	return nil
}

func (s Submission) MarshalJSON() ([]byte, error) {
	value := s.Value
	if value == nil {
		value = json.RawMessage("null")
	}
	if s.Answer == "" {
		return value, nil
	}
	return json.Marshal([]any{value, s.Answer})
}

// Answered reports whether an answer was recorded for this submission.
func (s Submission) Answered() bool { return s.Answer != "" }

// ScoreEntry is one user's settlement record: wire form [total, submissions].
type ScoreEntry struct {
	Total       float64
	Submissions []Submission
}

func (e *ScoreEntry) UnmarshalJSON(data []byte) error {
	return unmarshalTuple(data, &e.Total, &e.Submissions)
}

func (e ScoreEntry) MarshalJSON() ([]byte, error) {
	subs := e.Submissions
	if subs == nil {
		subs = []Submission{}
	}
	return json.Marshal([]any{e.Total, subs})
}

// SettlementPayload is the end-of-game summary pushed by the server.
// Replay payloads additionally carry a raw user id list in Users.
type SettlementPayload struct {
	Questions []SettlementQuestion  `json:"questions"`
	Scores    map[string]ScoreEntry `json:"scores"`
	Users     []string              `json:"users,omitempty"`
}

// ResumeQuestion is the in-progress question block of a resume payload.
type ResumeQuestion struct {
	Index       int      `json:"idx"`
	ID          string   `json:"id"`
	Picked      []string `json:"picked"`
	Remaining   []string `json:"left"`
	AnswerCount int      `json:"size"`
	Answer      string   `json:"answer,omitempty"`
}

// ResumePayload reconstructs a session after reconnect.
type ResumePayload struct {
	Info     RoomInfo        `json:"info"`
	Start    bool            `json:"start"`
	Question *ResumeQuestion `json:"question,omitempty"`
}

// unmarshalTuple decodes a fixed-length positional JSON array into fields.
func unmarshalTuple(data []byte, fields ...any) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != len(fields) {
		return fmt.Errorf("positional array: want %d elements, got %d", len(fields), len(raw))
	}
	for i, field := range fields {
		if err := json.Unmarshal(raw[i], field); err != nil {
			return fmt.Errorf("positional array element %d: %w", i, err)
		}
	}
	return nil
}
