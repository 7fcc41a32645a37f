package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// AttemptRepository handles test attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// attemptColumns lists the scanned columns, each prefixed with p ("" or "a.").
func attemptColumns(p string) string {
	return fmt.Sprintf(`%[1]sid, %[1]suser_id, %[1]stest_id, %[1]sstarted_at, %[1]sis_completed,
	%[1]ssubmitted_at, %[1]sduration_taken, %[1]stotal_score::float8, %[1]spercentage::float8,
	%[1]slanguage_used, %[1]ssubmitted_by`, p)
}

func scanAttempt(row pgx.Row, a *model.Attempt) error {
	var (
		lang    string
		trigger *string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.TestID, &a.StartedAt, &a.IsCompleted, &a.SubmittedAt,
		&a.DurationTaken, &a.TotalScore, &a.Percentage, &lang, &trigger); err != nil {
		return err
	}
	a.LanguageUsed = model.Language(lang)
	if trigger != nil {
		t := model.SubmitTrigger(*trigger)
		a.SubmittedBy = &t
	}
	return nil
}

// Create inserts a new attempt. With exclusive set, the open-attempt check and
// the insert are serialised per (user, test) by a transaction-scoped advisory lock.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt, exclusive bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapErr("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if exclusive {
		lockKey := fmt.Sprintf("attempt:%s:%s", a.UserID, a.TestID)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
			return wrapErr("advisory lock", err)
		}
		var open bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (
			   SELECT 1 FROM test_attempts
			   WHERE user_id = $1 AND test_id = $2 AND is_completed = FALSE)`,
			a.UserID, a.TestID,
		).Scan(&open); err != nil {
			return wrapErr("check open attempt", err)
		}
		if open {
			return model.ErrAttemptInProgress
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO test_attempts (id, user_id, test_id, started_at, language_used)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.UserID, a.TestID, a.StartedAt, string(a.LanguageUsed)); err != nil {
		return wrapErr("insert attempt", err)
	}
	return wrapErr("commit", tx.Commit(ctx))
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptColumns("")+` FROM test_attempts WHERE id = $1`, id), a); err != nil {
		return nil, wrapErr("get attempt", err)
	}
	return a, nil
}

// ListByUser retrieves a user's attempts, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Attempt, error) {
	return r.list(ctx, "list attempts",
		`SELECT `+attemptColumns("")+` FROM test_attempts WHERE user_id = $1 ORDER BY started_at DESC`, userID)
}

// ListExpired retrieves open attempts whose deadline is before cutoff, oldest first.
func (r *AttemptRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]model.Attempt, error) {
	return r.list(ctx, "list expired attempts",
		`SELECT `+attemptColumns("a.")+`
		 FROM test_attempts a
		 JOIN tests t ON t.id = a.test_id
		 WHERE a.is_completed = FALSE
		   AND a.started_at + make_interval(mins => t.duration_minutes) < $1
		 ORDER BY a.started_at
		 LIMIT $2`, cutoff, limit)
}

func (r *AttemptRepository) list(ctx context.Context, op, query string, args ...any) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, wrapErr(op, err)
		}
		attempts = append(attempts, a)
	}
	return attempts, wrapErr(op, rows.Err())
}

// Complete locks the attempt FOR UPDATE and, when it is still open, grades it
// and writes the completion together with the per-answer grades. The update is
// conditional on is_completed = FALSE so only one caller ever transitions it.
func (r *AttemptRepository) Complete(ctx context.Context, attemptID uuid.UUID, grade service.GradeFunc) (*model.Attempt, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, wrapErr("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	a := &model.Attempt{}
	if err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns("")+` FROM test_attempts WHERE id = $1 FOR UPDATE`, attemptID), a); err != nil {
		return nil, false, wrapErr("lock attempt", err)
	}
	if a.IsCompleted {
		return a, false, nil
	}

	answers, err := listAnswers(ctx, tx, attemptID)
	if err != nil {
		return nil, false, err
	}
	c, err := grade(a, answers)
	if err != nil {
		return nil, false, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE test_attempts
		 SET is_completed = TRUE, submitted_at = $2, duration_taken = $3,
		     total_score = $4, percentage = $5, submitted_by = $6
		 WHERE id = $1 AND is_completed = FALSE`,
		attemptID, c.SubmittedAt, c.DurationTaken, c.TotalScore, c.Percentage, string(c.Trigger))
	if err != nil {
		return nil, false, wrapErr("complete attempt", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, false, model.NewStoreError("complete attempt", fmt.Errorf("attempt %s changed concurrently", attemptID))
	}

	if len(c.Graded) > 0 {
		batch := &pgx.Batch{}
		for _, g := range c.Graded {
			batch.Queue(
				`UPDATE question_attempts SET is_correct = $3, marks_awarded = $4
				 WHERE attempt_id = $1 AND question_id = $2`,
				attemptID, g.QuestionID, g.IsCorrect, g.MarksAwarded)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, false, wrapErr("grade answers", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, wrapErr("commit", err)
	}

	trigger := c.Trigger
	a.IsCompleted = true
	a.SubmittedAt = &c.SubmittedAt
	a.DurationTaken = &c.DurationTaken
	a.TotalScore = c.TotalScore
	a.Percentage = c.Percentage
	a.SubmittedBy = &trigger
	return a, true, nil
}
