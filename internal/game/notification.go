package game

import "github.com/tktogether/motleycrowd/internal/domain"

// Kind identifies the state change a Notification reports.
type Kind string

const (
	KindUsersChanged    Kind = "users-changed"
	KindReady           Kind = "ready"
	KindPending         Kind = "pending"
	KindGameStarted     Kind = "game-started"
	KindNewQuestion     Kind = "new-question"
	KindAnswerProgress  Kind = "answer-progress"
	KindSettlement      Kind = "settlement"
	KindResumedRoom     Kind = "resumed-into-room"
	KindResumedQuestion Kind = "resumed-into-question"
)

// Notification is one state-change message pushed to subscribers. Only the
// fields relevant to the Kind are populated.
type Notification struct {
	Kind        Kind
	Users       []domain.User    // KindUsersChanged: membership snapshot
	Question    *domain.Question // KindNewQuestion, KindResumedQuestion
	AnswerCount int              // KindAnswerProgress
	Answer      string           // KindResumedQuestion: previously-submitted answer
	Settlement  *Settlement      // KindSettlement
}
