package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tktogether/motleycrowd/internal/domain"
	"github.com/tktogether/motleycrowd/internal/infra/memory"
)

func TestQuestionCatalogCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[string]domain.QuestionContent{
			"q1": sampleQuestion(),
		}),
	}
	catalog := NewQuestionCatalog(client, loader, time.Minute)

	question, err := catalog.Resolve(context.Background(), "q1", []string{"A"}, nil, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if question.Prompt != "Pick one" || len(question.Picked) != 1 {
		t.Fatalf("unexpected question: %+v", question)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("question:q1") {
		t.Fatalf("expected redis hash to be filled")
	}

	// Second resolve should hit the redis cache, loader not incremented.
	question, err = catalog.Resolve(context.Background(), "q1", nil, nil, "")
	if err != nil {
		t.Fatalf("resolve 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(question.Options) != 4 {
		t.Fatalf("options lost in cache round-trip: %+v", question.Options)
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestion(ctx context.Context, questionID string) (domain.QuestionContent, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestion(ctx, questionID)
}

func sampleQuestion() domain.QuestionContent {
	return domain.QuestionContent{
		ID:      "q1",
		Prompt:  "Pick one",
		Options: []string{"A", "B", "C", "D"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
