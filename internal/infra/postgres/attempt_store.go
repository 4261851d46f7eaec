package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var _ app.AttemptStore = (*AttemptStore)(nil)

// AttemptStore persists attempts and their answers. Answer writes lock the
// attempt row and bump its revision; submission flips the status with an
// UPDATE guarded on both status and revision.
type AttemptStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool, now: time.Now}
}

func (s *AttemptStore) CreateAttempt(ctx context.Context, quizID string) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
INSERT INTO attempts (id, quiz_id, status, started_at)
VALUES ($1, $2, $3, $4)`, id, quizID, string(domain.AttemptInProgress), s.now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert attempt: %w", err)
	}
	return id, nil
}

func (s *AttemptStore) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var attempt domain.Attempt
	// one snapshot so the answers match the revision read with them
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := s.pool.BeginTxFunc(ctx, opts, func(tx pgx.Tx) error {
		var (
			status string
			result []byte
		)
		err := tx.QueryRow(ctx, `
SELECT id, quiz_id, status, started_at, revision, result
FROM attempts WHERE id=$1`, attemptID).Scan(&attempt.ID, &attempt.QuizID, &status, &attempt.StartedAt, &attempt.Revision, &result)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAttemptNotFound
		}
		if err != nil {
			return fmt.Errorf("load attempt: %w", err)
		}
		attempt.Status = domain.AttemptStatus(status)
		if len(result) > 0 {
			var r domain.AttemptResult
			if err := json.Unmarshal(result, &r); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
			attempt.Result = &r
		}

		rows, err := tx.Query(ctx, `SELECT question_id, value FROM attempt_answers WHERE attempt_id=$1`, attemptID)
		if err != nil {
			return fmt.Errorf("load answers: %w", err)
		}
		defer rows.Close()

		attempt.Answers = make(map[string]string)
		for rows.Next() {
			var questionID, value string
			if err := rows.Scan(&questionID, &value); err != nil {
				return fmt.Errorf("scan answer: %w", err)
			}
			attempt.Answers[questionID] = value
		}
		return rows.Err()
	})
	if err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

func (s *AttemptStore) SetAnswer(ctx context.Context, attemptID, questionID, value string) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM attempts WHERE id=$1 FOR UPDATE`, attemptID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAttemptNotFound
		}
		if err != nil {
			return fmt.Errorf("lock attempt: %w", err)
		}
		if domain.AttemptStatus(status) == domain.AttemptSubmitted {
			return domain.ErrAttemptLocked
		}
		_, err = tx.Exec(ctx, `
INSERT INTO attempt_answers (attempt_id, question_id, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (attempt_id, question_id) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
			attemptID, questionID, value)
		if err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE attempts SET revision=revision+1 WHERE id=$1`, attemptID); err != nil {
			return fmt.Errorf("bump revision: %w", err)
		}
		return nil
	})
}

func (s *AttemptStore) MarkTerminal(ctx context.Context, attemptID string, revision int64, result domain.AttemptResult) (bool, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE attempts SET status=$2, result=$3::jsonb, submitted_at=$4
WHERE id=$1 AND status=$5 AND revision=$6`,
		attemptID, string(domain.AttemptSubmitted), string(data), result.SubmittedAt, string(domain.AttemptInProgress), revision)
	if err != nil {
		return false, fmt.Errorf("submit attempt: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attempts WHERE id=$1)`, attemptID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check attempt: %w", err)
	}
	if !exists {
		return false, domain.ErrAttemptNotFound
	}
	return false, nil
}
