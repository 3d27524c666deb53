package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/tktogether/motleycrowd/internal/domain"
)

// QuestionLoader fetches question content from a backing store.
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.QuestionContent, error)
}

// QuestionCatalog caches question content in Redis (hash per question) and
// falls back to a loader on cache miss. Content is stored as:
// HSET question:{id} prompt {prompt} options {json array}
type QuestionCatalog struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCatalog(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCatalog {
	return &QuestionCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
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
	key := c.key(questionID)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return buildContent(questionID, fields), nil
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return buildContent(questionID, fields), nil
		}

		content, err := c.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.QuestionContent{}, err
		}

		options, err := json.Marshal(content.Options)
		if err != nil {
			return domain.QuestionContent{}, err
		}

		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key, "prompt", content.Prompt)
		pipe.HSet(ctx, key, "options", string(options))
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return content, nil
	})
	if err != nil {
		return domain.QuestionContent{}, err
	}
	return result.(domain.QuestionContent), nil
}

func (c *QuestionCatalog) key(questionID string) string {
	return "question:" + questionID
}

func buildContent(questionID string, fields map[string]string) domain.QuestionContent {
	content := domain.QuestionContent{
		ID:     questionID,
		Prompt: fields["prompt"],
	}
	if raw, ok := fields["options"]; ok {
		_ = json.Unmarshal([]byte(raw), &content.Options)
	}
	return content
}

func (c *QuestionCatalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
