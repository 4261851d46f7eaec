package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var _ app.EventLog = (*EventLog)(nil)

// EventLog appends anti-cheat events to a list per attempt:
// RPUSH attempt:{attemptID}:events {json}
type EventLog struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEventLog(client *redis.Client, ttl time.Duration) *EventLog {
	return &EventLog{client: client, ttl: ttl}
}

func (l *EventLog) Append(ctx context.Context, event domain.AntiCheatEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pipe := l.client.Pipeline()
	pipe.RPush(ctx, l.key(event.AttemptID), data)
	if l.ttl > 0 {
		pipe.Expire(ctx, l.key(event.AttemptID), l.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (l *EventLog) ListByAttempt(ctx context.Context, attemptID string) ([]domain.AntiCheatEvent, error) {
	raw, err := l.client.LRange(ctx, l.key(attemptID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]domain.AntiCheatEvent, 0, len(raw))
	for _, item := range raw {
		var event domain.AntiCheatEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (l *EventLog) key(attemptID string) string {
	return "attempt:" + attemptID + ":events"
}
