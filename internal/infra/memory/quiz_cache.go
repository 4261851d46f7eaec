package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var _ app.QuizCatalog = (*QuizCache)(nil)

// QuizCache caches quizzes with TTL to avoid repeated store hits. Writes go
// straight to the backing catalog and invalidate the cached entry.
type QuizCache struct {
	app.QuizCatalog

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuiz
	// gens counts invalidations per quiz; a load only fills the cache when
	// no invalidation happened while it was reading the backing catalog.
	gens map[string]uint64
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(backing app.QuizCatalog, ttl time.Duration) *QuizCache {
	return &QuizCache{
		QuizCatalog: backing,
		ttl:         ttl,
		clock:       time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:       make(map[string]cachedQuiz),
		gens:        make(map[string]uint64),
	}
}

func (c *QuizCache) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return copyQuiz(entry.quiz), nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(quizID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[quizID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.quiz, nil
		}
		gen := c.gens[quizID]
		c.mu.RUnlock()

		quiz, err := c.QuizCatalog.GetQuizWithQuestions(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if c.ttl <= 0 {
			return quiz, nil
		}

		c.mu.Lock()
		if c.gens[quizID] == gen {
			c.cache[quizID] = cachedQuiz{
				quiz:      quiz,
				expiresAt: now.Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return copyQuiz(result.(domain.Quiz)), nil
}

func (c *QuizCache) GetQuizWithoutAnswers(ctx context.Context, quizID string) (domain.QuizWithoutAnswers, error) {
	quiz, err := c.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		return domain.QuizWithoutAnswers{}, err
	}
	return quiz.WithoutAnswers(), nil
}

func (c *QuizCache) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	defer c.Invalidate(quiz.ID)
	return c.QuizCatalog.UpdateQuiz(ctx, quiz)
}

func (c *QuizCache) DeleteQuiz(ctx context.Context, quizID string) error {
	defer c.Invalidate(quizID)
	return c.QuizCatalog.DeleteQuiz(ctx, quizID)
}

func (c *QuizCache) ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error {
	defer c.Invalidate(quizID)
	return c.QuizCatalog.ReplaceQuestions(ctx, quizID, questions)
}

// Invalidate drops the cached copy of a quiz and fences off loads that
// started before the call.
func (c *QuizCache) Invalidate(quizID string) {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.gens[quizID]++
	c.mu.Unlock()
	c.sf.Forget(quizID)
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
