package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

var _ app.QuizCatalog = (*QuizStore)(nil)

// QuizStore keeps quizzes and their ordered questions in Postgres.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

const quizColumns = `id, title, description, time_limit_seconds, is_published, created_at, updated_at`

func (s *QuizStore) GetQuizWithQuestions(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := scanQuiz(s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id=$1`, quizID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, quiz_id, prompt, type, options, correct_answer, position
FROM questions
WHERE quiz_id=$1
ORDER BY position, id`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q       domain.Question
			typ     string
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Prompt, &typ, &options, &q.CorrectAnswer, &q.Order); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		q.Type = domain.QuestionType(typ)
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return domain.Quiz{}, fmt.Errorf("decode options: %w", err)
		}
		if len(q.Options) == 0 {
			q.Options = nil
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	return quiz, nil
}

func (s *QuizStore) GetQuizWithoutAnswers(ctx context.Context, quizID string) (domain.QuizWithoutAnswers, error) {
	quiz, err := s.GetQuizWithQuestions(ctx, quizID)
	if err != nil {
		return domain.QuizWithoutAnswers{}, err
	}
	return quiz.WithoutAnswers(), nil
}

func (s *QuizStore) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

func (s *QuizStore) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO quizzes (`+quizColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			quiz.ID, quiz.Title, quiz.Description, quiz.TimeLimitSeconds, quiz.Published, quiz.CreatedAt, quiz.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		return insertQuestions(ctx, tx, quiz.ID, quiz.Questions)
	})
}

func (s *QuizStore) UpdateQuiz(ctx context.Context, quiz domain.Quiz) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE quizzes SET title=$2, description=$3, updated_at=$4
WHERE id=$1`, quiz.ID, quiz.Title, quiz.Description, quiz.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) DeleteQuiz(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *QuizStore) ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		// Row lock on the quiz serializes concurrent replacements.
		tag, err := tx.Exec(ctx, `UPDATE quizzes SET updated_at=now() WHERE id=$1`, quizID)
		if err != nil {
			return fmt.Errorf("lock quiz: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrQuizNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id=$1`, quizID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		return insertQuestions(ctx, tx, quizID, questions)
	})
}

func insertQuestions(ctx context.Context, tx pgx.Tx, quizID string, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, q := range questions {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		data, err := json.Marshal(options)
		if err != nil {
			return err
		}
		batch.Queue(`
INSERT INTO questions (id, quiz_id, prompt, type, options, correct_answer, position)
VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`,
			q.ID, quizID, q.Prompt, string(q.Type), string(data), q.CorrectAnswer, i)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for range questions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return nil
}

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := row.Scan(&quiz.ID, &quiz.Title, &quiz.Description, &quiz.TimeLimitSeconds, &quiz.Published, &quiz.CreatedAt, &quiz.UpdatedAt)
	return quiz, err
}
