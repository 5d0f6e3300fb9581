package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"pairlearn-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches question content from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// questionEntry is one cached set with its staleness deadline.
type questionEntry struct {
	set     domain.QuestionSet
	staleAt time.Time
}

// QuestionRepository keeps loaded question sets in process memory for a
// bounded lifetime. Concurrent misses on the same set id collapse into one
// loader call, and each entry gets its own jittered deadline so sets loaded
// together do not all refetch in the same instant.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	group  singleflight.Group
	rnd    *rand.Rand

	mu      sync.Mutex
	entries map[string]questionEntry
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		entries: make(map[string]questionEntry),
	}
}

func (r *QuestionRepository) GetSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := r.lookup(setID); ok {
		return set, nil
	}

	result, err, _ := r.group.Do(setID, func() (interface{}, error) {
		// A concurrent caller may have filled the entry while this one
		// waited its turn.
		if set, ok := r.lookup(setID); ok {
			return set, nil
		}
		set, err := r.loader.LoadSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}
		r.store(setID, set)
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

// Invalidate drops a cached set so the next read hits the loader again, used
// after the backing content has been rewritten.
func (r *QuestionRepository) Invalidate(setID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, setID)
}

func (r *QuestionRepository) lookup(setID string) (domain.QuestionSet, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[setID]
	if !ok || !entry.staleAt.After(r.clock()) {
		return domain.QuestionSet{}, false
	}
	return entry.set, true
}

func (r *QuestionRepository) store(setID string, set domain.QuestionSet) {
	lifetime := r.ttl
	if lifetime > 0 {
		// up to 10% extra, spreads refetches apart
		lifetime += time.Duration(r.rnd.Int63n(int64(lifetime)/10 + 1))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[setID] = questionEntry{set: set, staleAt: r.clock().Add(lifetime)}
}

// StaticQuestionLoader serves question sets from a fixed map. It backs the
// server when no database is configured, and tests.
type StaticQuestionLoader struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionLoader(sets map[string]domain.QuestionSet) *StaticQuestionLoader {
	return &StaticQuestionLoader{sets: sets}
}

func (l *StaticQuestionLoader) LoadSet(_ context.Context, setID string) (domain.QuestionSet, error) {
	if set, ok := l.sets[setID]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
}
