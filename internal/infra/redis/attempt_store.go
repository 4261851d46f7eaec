package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var _ app.AttemptStore = (*AttemptStore)(nil)

// Script results shared by the guarded writes below.
const (
	scriptMissing = -1
	scriptLocked  = 0
	scriptApplied = 1
)

// setAnswerScript upserts one answer unless the attempt is missing or submitted.
var setAnswerScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status == 'submitted' then
  return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('HINCRBY', KEYS[1], 'revision', 1)
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// markTerminalScript is the compare-and-set on the attempt status and the
// answer revision the result was scored from.
var markTerminalScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status == 'submitted' then
  return 0
end
local revision = redis.call('HGET', KEYS[1], 'revision') or '0'
if revision ~= ARGV[2] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'submitted', 'result', ARGV[1])
return 1
`)

// AttemptStore keeps attempts in Redis so every service instance sees the
// same lifecycle state.
//
//	HSET attempt:{id}         quiz_id, status, started_at, revision, result
//	HSET attempt:{id}:answers {questionID} {value}
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{client: client, ttl: ttl, now: time.Now}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, quizID string) (string, error) {
	id := uuid.NewString()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(id),
			"quiz_id", quizID,
			"status", string(domain.AttemptInProgress),
			"started_at", s.now().UTC().Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key(id), s.ttl)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var fieldsCmd, answersCmd *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fieldsCmd = pipe.HGetAll(ctx, s.key(attemptID))
		answersCmd = pipe.HGetAll(ctx, s.answersKey(attemptID))
		return nil
	})
	if err != nil && !isNil(err) {
		return domain.Attempt{}, err
	}
	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	answers := answersCmd.Val()
	if answers == nil {
		answers = make(map[string]string)
	}

	attempt := domain.Attempt{
		ID:      attemptID,
		QuizID:  fields["quiz_id"],
		Status:  domain.AttemptStatus(fields["status"]),
		Answers: answers,
	}
	if raw := fields["revision"]; raw != "" {
		revision, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Attempt{}, fmt.Errorf("decode revision: %w", err)
		}
		attempt.Revision = revision
	}
	if startedAt, err := time.Parse(time.RFC3339Nano, fields["started_at"]); err == nil {
		attempt.StartedAt = startedAt
	}
	if raw := fields["result"]; raw != "" {
		var result domain.AttemptResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return domain.Attempt{}, fmt.Errorf("decode result: %w", err)
		}
		attempt.Result = &result
	}
	return attempt, nil
}

func (s *AttemptStore) SetAnswer(ctx context.Context, attemptID, questionID, value string) error {
	code, err := setAnswerScript.Run(ctx, s.client,
		[]string{s.key(attemptID), s.answersKey(attemptID)},
		questionID, value, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return err
	}
	switch code {
	case scriptMissing:
		return domain.ErrAttemptNotFound
	case scriptLocked:
		return domain.ErrAttemptLocked
	}
	return nil
}

func (s *AttemptStore) MarkTerminal(ctx context.Context, attemptID string, revision int64, result domain.AttemptResult) (bool, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return false, err
	}
	code, err := markTerminalScript.Run(ctx, s.client,
		[]string{s.key(attemptID)},
		data, strconv.FormatInt(revision, 10),
	).Int()
	if err != nil {
		return false, err
	}
	switch code {
	case scriptMissing:
		return false, domain.ErrAttemptNotFound
	case scriptApplied:
		return true, nil
	}
	return false, nil
}

func (s *AttemptStore) key(attemptID string) string {
	return "attempt:" + attemptID
}

func (s *AttemptStore) answersKey(attemptID string) string {
	return "attempt:" + attemptID + ":answers"
}
