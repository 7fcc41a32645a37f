package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/mocktest-backend/internal/model"
)

// TestRepository handles read access to tests and their questions, plus the
// bulk load used by the seeding tool.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

const testColumns = `id, title, description, test_type, exam_type, duration_minutes,
	total_marks, total_questions, is_active, created_at`

func scanTest(row pgx.Row, t *model.Test) error {
	return row.Scan(&t.ID, &t.Title, &t.Description, &t.TestType, &t.ExamType, &t.DurationMinutes,
		&t.TotalMarks, &t.TotalQuestions, &t.IsActive, &t.CreatedAt)
}

// GetTest retrieves a test by its UUID.
func (r *TestRepository) GetTest(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := scanTest(r.pool.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE id = $1`, id), t)
	if err != nil {
		return nil, wrapErr("get test", err)
	}
	return t, nil
}

// ListActive retrieves all active tests, newest first.
func (r *TestRepository) ListActive(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests WHERE is_active = TRUE ORDER BY created_at DESC`)
	if err != nil {
		return nil, wrapErr("list active tests", err)
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := scanTest(rows, &t); err != nil {
			return nil, wrapErr("scan test", err)
		}
		tests = append(tests, t)
	}
	return tests, wrapErr("list active tests", rows.Err())
}

// ListQuestions retrieves a test's questions ordered by question_order.
func (r *TestRepository) ListQuestions(ctx context.Context, testID uuid.UUID) ([]model.TestQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.text_en, q.text_hi, q.options, q.correct_option, q.marks,
		        q.negative_marks::float8, q.image_url, q.explanation_en, q.explanation_hi,
		        q.section, q.difficulty, tq.question_order
		 FROM test_questions tq
		 JOIN questions q ON q.id = tq.question_id
		 WHERE tq.test_id = $1
		 ORDER BY tq.question_order`, testID)
	if err != nil {
		return nil, wrapErr("list questions", err)
	}
	defer rows.Close()

	var questions []model.TestQuestion
	for rows.Next() {
		var (
			q       model.TestQuestion
			correct string
		)
		if err := rows.Scan(&q.ID, &q.Text.English, &q.Text.Hindi, &q.Options, &correct, &q.Marks,
			&q.NegativeMarks, &q.ImageURL, &q.Explanation.English, &q.Explanation.Hindi,
			&q.Section, &q.Difficulty, &q.Order); err != nil {
			return nil, wrapErr("scan question", err)
		}
		q.CorrectOption = model.OptionKey(correct)
		questions = append(questions, q)
	}
	return questions, wrapErr("list questions", rows.Err())
}

// SaveTest upserts a test with its ordered questions in one transaction.
// Existing question links for the test are replaced.
func (r *TestRepository) SaveTest(ctx context.Context, t *model.Test, questions []model.TestQuestion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapErr("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO tests (id, title, description, test_type, exam_type, duration_minutes,
		                    total_marks, total_questions, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title, description = EXCLUDED.description,
		   test_type = EXCLUDED.test_type, exam_type = EXCLUDED.exam_type,
		   duration_minutes = EXCLUDED.duration_minutes, total_marks = EXCLUDED.total_marks,
		   total_questions = EXCLUDED.total_questions, is_active = EXCLUDED.is_active`,
		t.ID, t.Title, t.Description, t.TestType, t.ExamType, t.DurationMinutes,
		t.TotalMarks, t.TotalQuestions, t.IsActive); err != nil {
		return wrapErr("upsert test", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM test_questions WHERE test_id = $1`, t.ID); err != nil {
		return wrapErr("clear test questions", err)
	}

	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(
			`INSERT INTO questions (id, text_en, text_hi, options, correct_option, marks, negative_marks,
			                        image_url, explanation_en, explanation_hi, section, difficulty)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (id) DO NOTHING`,
			q.ID, q.Text.English, q.Text.Hindi, q.Options, string(q.CorrectOption), q.Marks, q.NegativeMarks,
			q.ImageURL, q.Explanation.English, q.Explanation.Hindi, q.Section, q.Difficulty)
		batch.Queue(
			`INSERT INTO test_questions (test_id, question_id, question_order) VALUES ($1, $2, $3)`,
			t.ID, q.ID, q.Order)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return wrapErr("insert questions", err)
	}

	return wrapErr("commit", tx.Commit(ctx))
}
