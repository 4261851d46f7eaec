package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var _ app.EventLog = (*EventLog)(nil)

// EventLog appends anti-cheat events to the attempt_events table.
type EventLog struct {
	pool *pgxpool.Pool
}

func NewEventLog(pool *pgxpool.Pool) *EventLog {
	return &EventLog{pool: pool}
}

func (l *EventLog) Append(ctx context.Context, event domain.AntiCheatEvent) error {
	_, err := l.pool.Exec(ctx, `
INSERT INTO attempt_events (attempt_id, question_id, event_type, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)`,
		event.AttemptID, event.QuestionID, string(event.Type), event.Payload, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (l *EventLog) ListByAttempt(ctx context.Context, attemptID string) ([]domain.AntiCheatEvent, error) {
	rows, err := l.pool.Query(ctx, `
SELECT attempt_id, question_id, event_type, payload, occurred_at
FROM attempt_events
WHERE attempt_id=$1
ORDER BY id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.AntiCheatEvent
	for rows.Next() {
		var (
			event domain.AntiCheatEvent
			typ   string
		)
		if err := rows.Scan(&event.AttemptID, &event.QuestionID, &typ, &event.Payload, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Type = domain.EventType(typ)
		events = append(events, event)
	}
	return events, rows.Err()
}
