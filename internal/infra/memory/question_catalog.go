package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tktogether/motleycrowd/internal/domain"
)

// QuestionLoader fetches question content from a backing store.
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.QuestionContent, error)
}

// QuestionCatalog resolves questions from a loader, caching content with a
// TTL to avoid repeated backing-store hits.
type QuestionCatalog struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	content   domain.QuestionContent
	expiresAt time.Time
}

func NewQuestionCatalog(loader QuestionLoader, ttl time.Duration) *QuestionCatalog {
	return &QuestionCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestion),
	}
}

// Resolve materializes a question for one round from cached content.
func (c *QuestionCatalog) Resolve(ctx context.Context, questionID string, picked, remaining []string, priorAnswer string) (domain.Question, error) {
	content, err := c.content(ctx, questionID)
	if err != nil {
		return domain.Question{}, err
	}
	return domain.Question{
		ID:        content.ID,
		Prompt:    content.Prompt,
		Options:   content.Options,
		Picked:    picked,
		Remaining: remaining,
		Answer:    priorAnswer,
	}, nil
}

func (c *QuestionCatalog) content(ctx context.Context, questionID string) (domain.QuestionContent, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[questionID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.content, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[questionID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.content, nil
		}
		c.mu.RUnlock()

		content, err := c.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.QuestionContent{}, err
		}

		c.mu.Lock()
		c.cache[questionID] = cachedQuestion{
			content:   content,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return content, nil
	})
	if err != nil {
		return domain.QuestionContent{}, err
	}
	return result.(domain.QuestionContent), nil
}

func (c *QuestionCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by an in-memory map (useful for
// tests/demos).
type StaticQuestionLoader struct {
	questions map[string]domain.QuestionContent
}

func NewStaticQuestionLoader(questions map[string]domain.QuestionContent) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestion(_ context.Context, questionID string) (domain.QuestionContent, error) {
	if content, ok := l.questions[questionID]; ok {
		return content, nil
	}
	return domain.QuestionContent{}, domain.ErrQuestionNotFound
}
