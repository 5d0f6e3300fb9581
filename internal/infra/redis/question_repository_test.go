package redis

import (
	"context"
	"testing"
	"time"

	"pairlearn-service/internal/domain"
	"pairlearn-service/internal/infra/memory"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[string]domain.QuestionSet{
			"set-1": sampleSet(),
		}),
	}
	repo := NewQuestionRepository(client, loader, time.Minute)

	set, err := repo.GetSet(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("get set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if len(set.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(set.Questions))
	}

	// Second call should hit the Redis hash, loader not incremented.
	set, err = repo.GetSet(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("get set cached: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if set.Questions[0].ID != "q1" || set.Questions[1].ID != "q2" {
		t.Fatalf("expected question order preserved from cache, got %+v", set.Questions)
	}
	if set.Questions[1].CorrectIndex != 2 {
		t.Fatalf("expected correct index round-tripped, got %d", set.Questions[1].CorrectIndex)
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	l.calls++
	return l.QuestionLoader.LoadSet(ctx, setID)
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		ID: "set-1",
		Questions: []domain.Question{
			{
				ID:           "q1",
				Prompt:       "What is 2 + 2?",
				Options:      []string{"3", "4", "5"},
				CorrectIndex: 1,
				Explanation:  "Two plus two equals four.",
			},
			{
				ID:           "q2",
				Prompt:       "Which planet is closest to the sun?",
				Options:      []string{"Venus", "Earth", "Mercury"},
				CorrectIndex: 2,
				Explanation:  "Mercury orbits closest to the sun.",
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
