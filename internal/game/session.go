package game

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/tktogether/motleycrowd/internal/domain"
)

// Session is the local session state machine. All fields are private and
// reachable only through accessors; mutation happens exclusively on command
// acknowledgements and inbound events. The transport delivers events
// sequentially, the mutex guards against concurrent reads from the
// presentation goroutine.
type Session struct {
	commander Commander
	resolver  QuestionResolver
	localUser string

	mu             sync.RWMutex
	room           string
	limit          int
	inRoom         bool
	started        bool
	private        bool
	ready          bool
	users          map[string]domain.User
	questionIndex  int
	question       *domain.Question
	answerCount    int
	lastSettlement *Settlement
	subscribers    map[chan Notification]struct{}
}

// NewSession builds a session with all fields at their defaults.
func NewSession(localUserID string, commander Commander, resolver QuestionResolver) *Session {
	return &Session{
		commander:     commander,
		resolver:      resolver,
		localUser:     localUserID,
		users:         make(map[string]domain.User),
		questionIndex: -1,
		subscribers:   make(map[chan Notification]struct{}),
	}
}

// LocalUserID returns the id of the user this session tracks.
func (s *Session) LocalUserID() string { return s.localUser }

// Room returns the private room id, empty outside a private room.
func (s *Session) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// Limit returns the room's player cap, 0 outside a room.
func (s *Session) Limit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limit
}

// InRoom reports whether the session currently belongs to a room.
func (s *Session) InRoom() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inRoom
}

// Started reports whether the game has begun for this session.
func (s *Session) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Private reports whether the current room is a private one.
func (s *Session) Private() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.private
}

// Ready reports whether the room has signaled readiness.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Users returns a snapshot of current room membership, sorted by user id.
func (s *Session) Users() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usersLocked()
}

// QuestionIndex returns the current question index, -1 with no active question.
func (s *Session) QuestionIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questionIndex
}

// CurrentQuestion returns a copy of the active question, nil when idle.
func (s *Session) CurrentQuestion() *domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.question == nil {
		return nil
	}
	q := *s.question
	return &q
}

// AnswerCount returns how many users have answered the current question.
func (s *Session) AnswerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answerCount
}

// LastSettlement returns the most recent settlement, nil before any game ends.
func (s *Session) LastSettlement() *Settlement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSettlement
}

// Pair requests matchmaking into a public room.
func (s *Session) Pair(ctx context.Context, gameType string) bool {
	res, err := s.send(ctx, "pair", map[string]string{"type": gameType})
	if err != nil || !res.Success {
		return false
	}
	var info domain.RoomInfo
	if err := json.Unmarshal(res.Data, &info); err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inRoom = true
	s.private = false
	s.limit = info.Limit
	s.joinLocked(info.Users)
	return true
}

// Create requests a fresh private room and enters it.
func (s *Session) Create(ctx context.Context, gameType string) bool {
	res, err := s.send(ctx, "create", map[string]string{"type": gameType})
	if err != nil || !res.Success {
		return false
	}
	var created domain.CreatedRoom
	if err := json.Unmarshal(res.Data, &created); err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inRoom = true
	s.private = true
	s.room = created.Room
	s.limit = created.Info.Limit
	s.joinLocked(created.Info.Users)
	return true
}

// Join enters an existing private room by id.
func (s *Session) Join(ctx context.Context, room string) bool {
	res, err := s.send(ctx, "join", map[string]string{"room": room})
	if err != nil || !res.Success {
		return false
	}
	var info domain.RoomInfo
	if err := json.Unmarshal(res.Data, &info); err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inRoom = true
	s.private = true
	s.room = room
	s.limit = info.Limit
	s.joinLocked(info.Users)
	return true
}

// Leave exits the current room, clearing all session state on success.
// Outside a room it is a no-op reporting true without a round-trip.
func (s *Session) Leave(ctx context.Context) bool {
	if !s.InRoom() {
		return true
	}
	res, err := s.send(ctx, "leave", nil)
	if err != nil || !res.Success {
		return false
	}
	s.Clear()
	return true
}

// Answer submits the local user's answer for the current question. The value
// is echoed onto the question locally on success; no server event confirms it.
func (s *Session) Answer(ctx context.Context, value string) bool {
	s.mu.RLock()
	index := s.questionIndex
	hasQuestion := s.question != nil
	s.mu.RUnlock()
	if !hasQuestion {
		return false
	}

	res, err := s.send(ctx, "answer", []any{index, value})
	if err != nil || !res.Success {
		return false
	}

	s.mu.Lock()
	if s.question != nil && s.questionIndex == index {
		s.question.Answer = value
	}
	s.mu.Unlock()
	return true
}

// Clear resets every mutable field to its default. The last settlement
// survives so the presentation layer can still show the final standings.
// Idempotent; emits nothing.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// HandleUser applies a membership delta and always reports the new snapshot.
func (s *Session) HandleUser(ev domain.UserEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joinLocked(ev.Joined)
	for _, id := range ev.Left {
		delete(s.users, id)
	}
	s.broadcastLocked(Notification{Kind: KindUsersChanged, Users: s.usersLocked()})
}

// HandleReady marks the room ready.
func (s *Session) HandleReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.broadcastLocked(Notification{Kind: KindReady})
}

// HandlePending marks the room as waiting for more players.
func (s *Session) HandlePending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.broadcastLocked(Notification{Kind: KindPending})
}

// HandleQuestion resolves and installs a new question, resetting answer
// progress. The first question of a session also flips the started flag and
// announces the game start before the per-question notification.
func (s *Session) HandleQuestion(ctx context.Context, ev domain.QuestionEvent) error {
	question, err := s.resolver.Resolve(ctx, ev.QuestionID, ev.Picked, nil, "")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionIndex = ev.Index
	s.question = &question
	s.answerCount = 0
	if !s.started {
		s.started = true
		s.broadcastLocked(Notification{Kind: KindGameStarted})
	}
	q := question
	s.broadcastLocked(Notification{Kind: KindNewQuestion, Question: &q})
	return nil
}

// HandleAnswer updates answer progress for the current question. Events for
// any other index are stale and silently dropped.
func (s *Session) HandleAnswer(ev domain.AnswerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Index != s.questionIndex {
		return
	}
	s.answerCount = ev.Count
	s.broadcastLocked(Notification{Kind: KindAnswerProgress, AnswerCount: ev.Count})
}

// HandleSettlement builds the settlement engine from the pre-clear membership
// snapshot, stores it, resets session state, and then announces it, so late
// observers already see a cleared session.
func (s *Session) HandleSettlement(ctx context.Context, payload domain.SettlementPayload) error {
	s.mu.RLock()
	snapshot := make(map[string]domain.User, len(s.users))
	for id, user := range s.users {
		snapshot[id] = user
	}
	s.mu.RUnlock()

	settlement, err := NewSettlement(ctx, s.localUser, s.resolver, payload, snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSettlement = settlement
	s.clearLocked()
	s.broadcastLocked(Notification{Kind: KindSettlement, Settlement: settlement})
	return nil
}

// HandleResume rebuilds session state from a reconnect snapshot. The room is
// always marked public here, mirroring the server's resume contract even for
// sessions that were private before the disconnect.
func (s *Session) HandleResume(ctx context.Context, payload domain.ResumePayload) error {
	if !payload.Start || payload.Question == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.inRoom = true
		s.private = false
		s.limit = payload.Info.Limit
		s.joinLocked(payload.Info.Users)
		s.broadcastLocked(Notification{Kind: KindResumedRoom, Users: s.usersLocked()})
		return nil
	}

	rq := payload.Question
	question, err := s.resolver.Resolve(ctx, rq.ID, rq.Picked, rq.Remaining, rq.Answer)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inRoom = true
	s.private = false
	s.limit = payload.Info.Limit
	s.joinLocked(payload.Info.Users)
	s.answerCount = rq.AnswerCount
	s.started = true
	s.questionIndex = rq.Index
	s.question = &question
	q := question
	s.broadcastLocked(Notification{Kind: KindResumedQuestion, Question: &q, Answer: rq.Answer})
	return nil
}

// Subscribe returns a channel of state-change notifications. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) send(ctx context.Context, command string, payload any) (Result, error) {
	return s.commander.Send(ctx, "game."+command, payload)
}

func (s *Session) joinLocked(users []domain.User) {
	for _, user := range users {
		s.users[user.ID] = user
	}
}

func (s *Session) usersLocked() []domain.User {
	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (s *Session) clearLocked() {
	s.room = ""
	s.limit = 0
	s.inRoom = false
	s.started = false
	s.private = false
	s.ready = false
	s.question = nil
	s.questionIndex = -1
	s.answerCount = 0
	s.users = make(map[string]domain.User)
}

func (s *Session) broadcastLocked(n Notification) {
	for ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			// Drop the oldest pending notification rather than block the
			// event loop on a slow subscriber.
			select {
			case <-ch:
			default:
			}
			ch <- n
		}
	}
}
