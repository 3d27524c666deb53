package game

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tktogether/motleycrowd/internal/domain"
)

// Origin records which constructor produced a Settlement.
type Origin string

const (
	OriginLive      Origin = "live"
	OriginSynthetic Origin = "synthetic"
)

// Settlement is the immutable end-of-game view: every question of the game in
// play order, each participant's score record, and a tie-aware leaderboard.
// It owns its membership map and never touches the live session again.
type Settlement struct {
	origin    Origin
	localUser string
	questions []domain.Question
	users     map[string]domain.User
	scores    map[string]*UserScore

	rankOnce   sync.Once
	rankGroups [][]string
}

// QuestionResult is the per-question aggregate returned by At.
type QuestionResult struct {
	Question          domain.Question
	TotalParticipants int
	Breakdown         Breakdown
}

// Breakdown pairs the options picked for a question with every non-empty
// answer submitted for it, keyed by user id, for comparison by the caller.
type Breakdown struct {
	Picked  []string
	Answers map[string]string
}

// UserScore is one participant's settlement record: the total score and one
// submission per question position.
type UserScore struct {
	userID      string
	total       float64
	submissions []domain.Submission
}

// UserID returns the record's owner.
func (u *UserScore) UserID() string { return u.userID }

// Total returns the user's final score.
func (u *UserScore) Total() float64 { return u.total }

// At returns the submission at a question position.
func (u *UserScore) At(index int) (domain.Submission, bool) {
	if index < 0 || index >= len(u.submissions) {
		return domain.Submission{}, false
	}
	return u.submissions[index], true
}

// NewSettlement builds the engine from a live settlement payload. The users
// map is the pre-clear membership snapshot; the engine takes ownership of it.
func NewSettlement(ctx context.Context, localUserID string, resolver QuestionResolver, payload domain.SettlementPayload, users map[string]domain.User) (*Settlement, error) {
	return build(ctx, OriginLive, localUserID, resolver, payload, users)
}

// NewSyntheticSettlement builds a structurally identical engine from a replay
// payload that carries raw user ids instead of resolved membership. Guest
// accounts are recognized by the '#' id prefix; the id doubles as username.
// The perspective user is the local user when present, else the first id.
func NewSyntheticSettlement(ctx context.Context, localUserID string, resolver QuestionResolver, payload domain.SettlementPayload) (*Settlement, error) {
	perspective := localUserID
	if len(payload.Users) > 0 {
		perspective = payload.Users[0]
		for _, id := range payload.Users {
			if id == localUserID {
				perspective = id
				break
			}
		}
	}
	users := make(map[string]domain.User, len(payload.Users))
	for _, id := range payload.Users {
		users[id] = domain.User{ID: id, Guest: strings.HasPrefix(id, "#"), Username: id}
	}
	return build(ctx, OriginSynthetic, perspective, resolver, payload, users)
}

func build(ctx context.Context, origin Origin, localUserID string, resolver QuestionResolver, payload domain.SettlementPayload, users map[string]domain.User) (*Settlement, error) {
	s := &Settlement{
		origin:    origin,
		localUser: localUserID,
		users:     users,
		scores:    make(map[string]*UserScore, len(payload.Scores)),
	}
	if users == nil {
		s.users = make(map[string]domain.User)
	}

	if len(payload.Questions) > 0 {
		s.questions = make([]domain.Question, 0, len(payload.Questions))
		for _, sq := range payload.Questions {
			question, err := resolver.Resolve(ctx, sq.ID, sq.Picked, nil, "")
			if err != nil {
				return nil, err
			}
			s.questions = append(s.questions, question)
		}
	}

	for id, entry := range payload.Scores {
		subs := make([]domain.Submission, len(s.questions))
		copy(subs, entry.Submissions)
		s.scores[id] = &UserScore{
			userID:      id,
			total:       entry.Total,
			submissions: subs,
		}
	}
	return s, nil
}

// Origin reports which constructor produced this settlement.
func (s *Settlement) Origin() Origin { return s.origin }

// PerspectiveUserID returns the user this settlement is viewed as.
func (s *Settlement) PerspectiveUserID() string { return s.localUser }

// Size returns the number of questions, or -1 when the engine was built from
// an empty payload; callers must check before using At.
func (s *Settlement) Size() int {
	if s.questions == nil {
		return -1
	}
	return len(s.questions)
}

// Indexes returns the question index space [0, Size) in play order.
func (s *Settlement) Indexes() []int {
	if s.questions == nil {
		return nil
	}
	indexes := make([]int, len(s.questions))
	for i := range indexes {
		indexes[i] = i
	}
	return indexes
}

// At returns the aggregate result for one question position, nil for an
// out-of-range index or an uninitialized engine.
func (s *Settlement) At(index int) *QuestionResult {
	if s.questions == nil || index < 0 || index >= len(s.questions) {
		return nil
	}
	question := s.questions[index]
	answers := make(map[string]string)
	for id, score := range s.scores {
		sub, ok := score.At(index)
		if !ok || !sub.Answered() {
			continue
		}
		answers[id] = sub.Answer
	}
	return &QuestionResult{
		Question:          question,
		TotalParticipants: len(s.scores),
		Breakdown: Breakdown{
			Picked:  question.Picked,
			Answers: answers,
		},
	}
}

// ScoreOf returns one user's score record.
func (s *Settlement) ScoreOf(userID string) (*UserScore, error) {
	score, ok := s.scores[userID]
	if !ok {
		return nil, domain.ErrScoreNotFound
	}
	return score, nil
}

// UserOf returns the membership record captured at settlement time.
func (s *Settlement) UserOf(userID string) (domain.User, bool) {
	user, ok := s.users[userID]
	return user, ok
}

// Users returns the membership snapshot sorted by user id.
func (s *Settlement) Users() []domain.User {
	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// RankOf returns the user's 1-based leaderboard position. Users with equal
// totals share a rank; the next distinct score ranks below the whole tied
// group. Unknown users rank -1.
func (s *Settlement) RankOf(userID string) int {
	if _, ok := s.scores[userID]; !ok {
		return -1
	}
	rank := 1
	for _, group := range s.groups() {
		for _, id := range group {
			if id == userID {
				return rank
			}
		}
		rank += len(group)
	}
	return -1
}

// groups partitions users into maximal runs of equal total score, highest
// first. Computed once per settlement.
func (s *Settlement) groups() [][]string {
	s.rankOnce.Do(func() {
		records := make([]*UserScore, 0, len(s.scores))
		for _, score := range s.scores {
			records = append(records, score)
		}
		sort.Slice(records, func(i, j int) bool {
			if records[i].total != records[j].total {
				return records[i].total > records[j].total
			}
			return records[i].userID < records[j].userID
		})

		var current []string
		var currentScore float64
		for i, record := range records {
			if i == 0 || record.total != currentScore {
				if current != nil {
					s.rankGroups = append(s.rankGroups, current)
				}
				current = nil
				currentScore = record.total
			}
			current = append(current, record.userID)
		}
		if current != nil {
			s.rankGroups = append(s.rankGroups, current)
		}
	})
	return s.rankGroups
}
