package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AnswerRepository handles per-question answer records.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

const answerColumns = `attempt_id, question_id, selected_option, status, is_correct,
	marks_awarded::float8, time_spent, updated_at`

func scanAnswer(row pgx.Row, rec *model.AnswerRecord) error {
	var (
		selected *string
		status   string
	)
	if err := row.Scan(&rec.AttemptID, &rec.QuestionID, &selected, &status, &rec.IsCorrect,
		&rec.MarksAwarded, &rec.TimeSpent, &rec.UpdatedAt); err != nil {
		return err
	}
	rec.Status = model.AnswerStatus(status)
	rec.SelectedOption = nil
	if selected != nil && *selected != "" {
		k := model.OptionKey(*selected)
		rec.SelectedOption = &k
	}
	return nil
}

// Mutate reads, transforms and upserts one answer record. The attempt row is
// held FOR SHARE so a concurrent submission waits for this write (or this
// write sees the completed attempt).
func (r *AnswerRepository) Mutate(ctx context.Context, attemptID, questionID uuid.UUID, fn service.MutateFunc) (*model.AnswerRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, wrapErr("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	a := &model.Attempt{}
	if err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns("")+` FROM test_attempts WHERE id = $1 FOR SHARE`, attemptID), a); err != nil {
		return nil, wrapErr("lock attempt", err)
	}

	cur := model.AnswerRecord{AttemptID: attemptID, QuestionID: questionID}
	exists := true
	err = scanAnswer(tx.QueryRow(ctx,
		`SELECT `+answerColumns+` FROM question_attempts
		 WHERE attempt_id = $1 AND question_id = $2 FOR UPDATE`, attemptID, questionID), &cur)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		exists = false
	case err != nil:
		return nil, wrapErr("lock answer", err)
	}

	next, err := fn(a, cur, exists)
	if err != nil {
		return nil, err
	}

	var selected *string
	if next.SelectedOption != nil {
		s := string(*next.SelectedOption)
		selected = &s
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO question_attempts (attempt_id, question_id, selected_option, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE SET
		   selected_option = EXCLUDED.selected_option,
		   status = EXCLUDED.status,
		   updated_at = EXCLUDED.updated_at`,
		attemptID, questionID, selected, string(next.Status), next.UpdatedAt); err != nil {
		return nil, wrapErr("upsert answer", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapErr("commit", err)
	}
	next.AttemptID = attemptID
	next.QuestionID = questionID
	return &next, nil
}

// ListByAttempt retrieves every stored answer record of an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error) {
	return listAnswers(ctx, r.pool, attemptID)
}

func listAnswers(ctx context.Context, q querier, attemptID uuid.UUID) ([]model.AnswerRecord, error) {
	rows, err := q.Query(ctx,
		`SELECT `+answerColumns+` FROM question_attempts WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, wrapErr("list answers", err)
	}
	defer rows.Close()

	var records []model.AnswerRecord
	for rows.Next() {
		var rec model.AnswerRecord
		if err := scanAnswer(rows, &rec); err != nil {
			return nil, wrapErr("scan answer", err)
		}
		records = append(records, rec)
	}
	return records, wrapErr("list answers", rows.Err())
}
