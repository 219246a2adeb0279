package paper

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-papers/internal/question"
)

// SQLStore is the paper and question service backed by database/sql
// (sqlite via modernc or postgres via pgx).
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// ---- papers ----

func (s *SQLStore) CreatePaper(ctx context.Context, f CreateFields) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	f = f.WithDefaults()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO papers (title,description,subject,grade,time_limit,total_score,status,created_by,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		f.Title, f.Description, f.Subject, f.Grade, f.TimeLimit, f.TotalScore, StatusDraft, f.CreatedBy, s.now().Unix(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create paper: %w", err)
	}
	return id, nil
}

const paperCols = `p.id,p.title,p.description,p.subject,p.grade,p.time_limit,p.total_score,p.status,p.created_by,p.created_at,p.published_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner, extra ...any) (Paper, error) {
	var p Paper
	var published sql.NullInt64
	dest := append([]any{&p.ID, &p.Title, &p.Description, &p.Subject, &p.Grade, &p.TimeLimit,
		&p.TotalScore, &p.Status, &p.CreatedBy, &p.CreatedAt, &published}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Paper{}, err
	}
	if published.Valid {
		v := published.Int64
		p.PublishedAt = &v
	}
	return p, nil
}

// GetPaper returns the paper with its attached questions in order.
func (s *SQLStore) GetPaper(ctx context.Context, id int64) (Paper, error) {
	p, err := scanPaper(s.db.QueryRowContext(ctx, `SELECT `+paperCols+` FROM papers p WHERE p.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Paper{}, fmt.Errorf("paper %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Paper{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionCols+`, pq.score, pq.question_order
		 FROM questions q JOIN paper_questions pq ON q.id = pq.question_id
		 WHERE pq.paper_id=$1 ORDER BY pq.question_order`, id)
	if err != nil {
		return Paper{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a Attached
		st, err := scanQuestion(rows, &a.Score, &a.Order)
		if err != nil {
			return Paper{}, err
		}
		a.Stored = st
		p.Questions = append(p.Questions, a)
	}
	return p, rows.Err()
}

// ListPapers returns the author's papers, newest first.
func (s *SQLStore) ListPapers(ctx context.Context, teacherID int64) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paperCols+`, COUNT(pq.question_id)
		 FROM papers p LEFT JOIN paper_questions pq ON p.id = pq.paper_id
		 WHERE p.created_by=$1
		 GROUP BY `+paperCols+`
		 ORDER BY p.created_at DESC, p.id DESC`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var sm Summary
		p, err := scanPaper(rows, &sm.QuestionCount)
		if err != nil {
			return nil, err
		}
		sm.Paper = p
		out = append(out, sm)
	}
	return out, rows.Err()
}

// PublishPaper marks the paper published. Papers without questions and
// closed papers cannot be published.
func (s *SQLStore) PublishPaper(ctx context.Context, id int64) error {
	var status Status
	err := s.db.QueryRowContext(ctx, `SELECT status FROM papers WHERE id=$1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("paper %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if status == StatusClosed {
		return fmt.Errorf("%w: paper %d is closed", ErrInvalid, id)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM paper_questions WHERE paper_id=$1`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrEmptyPaper
	}
	_, err = s.db.ExecContext(ctx, `UPDATE papers SET status=$1, published_at=$2 WHERE id=$3`,
		StatusPublished, s.now().Unix(), id)
	return err
}

// ClosePaper moves a published paper to closed.
func (s *SQLStore) ClosePaper(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE papers SET status=$1 WHERE id=$2 AND status=$3`,
		StatusClosed, id, StatusPublished)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: paper %d is not published", ErrInvalid, id)
	}
	return nil
}

func (s *SQLStore) DeletePaper(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_questions WHERE paper_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("paper %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// ---- questions ----

const questionCols = `q.id,q.type,q.title,q.content,q.options_json,q.correct_answer,q.explanation,q.subject,q.grade,q.difficulty,q.created_by,q.created_at`

func scanQuestion(row rowScanner, extra ...any) (Stored, error) {
	var st Stored
	var opts string
	dest := append([]any{&st.ID, &st.Type, &st.Title, &st.Content, &opts, &st.CorrectAnswer,
		&st.Explanation, &st.Subject, &st.Grade, &st.Difficulty, &st.CreatedBy, &st.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Stored{}, err
	}
	if err := json.Unmarshal([]byte(opts), &st.Options); err != nil || st.Options == nil {
		st.Options = []string{}
	}
	return st, nil
}

// SaveQuestions persists qs in one transaction and returns the new ids in
// input order.
func (s *SQLStore) SaveQuestions(ctx context.Context, qs []question.Question, createdBy int64) ([]int64, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: no questions to save", ErrInvalid)
	}
	if createdBy <= 0 {
		createdBy = 1
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := s.now().Unix()
	ids := make([]int64, 0, len(qs))
	for i, q := range qs {
		opts := q.Options
		if opts == nil {
			opts = []string{}
		}
		optsJSON, _ := json.Marshal(opts)
		qt := q.Type
		if !qt.Valid() {
			qt = question.TypeChoice
		}
		diff := q.Difficulty
		if diff < 1 || diff > 5 {
			diff = question.DefaultDifficulty
		}
		var id int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO questions (title,content,type,difficulty,subject,grade,options_json,correct_answer,explanation,created_by,created_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
			q.Title, q.Content, qt, diff, q.Subject, q.Grade, string(optsJSON), q.CorrectAnswer, q.Explanation, createdBy, now,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("save question %d: %w", i+1, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, id int64) (Stored, error) {
	st, err := scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions q WHERE q.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Stored{}, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	return st, err
}

// ListQuestions returns the author's most recent questions.
func (s *SQLStore) ListQuestions(ctx context.Context, teacherID int64, limit int) ([]Stored, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionCols+` FROM questions q WHERE q.created_by=$1 ORDER BY q.created_at DESC, q.id DESC LIMIT $2`,
		teacherID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Stored{}
	for rows.Next() {
		st, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// AttachQuestion appends a stored question to a paper. Re-attaching the same
// question is rejected with ErrDuplicate and leaves the paper unchanged.
func (s *SQLStore) AttachQuestion(ctx context.Context, paperID, questionID int64, score float64) error {
	if score <= 0 {
		score = DefaultItemScore
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM papers WHERE id=$1`, paperID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("paper %d: %w", paperID, ErrNotFound)
		}
		return err
	}
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE id=$1`, questionID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("question %d: %w", questionID, ErrNotFound)
		}
		return err
	}
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM paper_questions WHERE paper_id=$1 AND question_id=$2`,
		paperID, questionID).Scan(&one)
	switch {
	case err == nil:
		return ErrDuplicate
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	var maxOrder int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(question_order),0) FROM paper_questions WHERE paper_id=$1`,
		paperID).Scan(&maxOrder); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO paper_questions (paper_id,question_id,question_order,score,created_at) VALUES ($1,$2,$3,$4,$5)`,
		paperID, questionID, maxOrder+1, score, s.now().Unix()); err != nil {
		return fmt.Errorf("attach question: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) RemoveQuestion(ctx context.Context, paperID, questionID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM paper_questions WHERE paper_id=$1 AND question_id=$2`,
		paperID, questionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %d on paper %d: %w", questionID, paperID, ErrNotFound)
	}
	return nil
}

// ---- statistics ----

func (s *SQLStore) Overview(ctx context.Context, teacherID int64) (Overview, error) {
	var ov Overview
	ov.Questions.ByType = map[question.Type]int{}

	papers, err := s.ListPapers(ctx, teacherID)
	if err != nil {
		return ov, err
	}
	for _, p := range papers {
		ov.Papers.Total++
		ov.Questions.Attached += p.QuestionCount
		switch p.Status {
		case StatusDraft:
			ov.Papers.Draft++
		case StatusPublished:
			ov.Papers.Published++
		case StatusClosed:
			ov.Papers.Closed++
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM questions WHERE created_by=$1 GROUP BY type`, teacherID)
	if err != nil {
		return ov, err
	}
	defer rows.Close()
	for rows.Next() {
		var t question.Type
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return ov, err
		}
		ov.Questions.ByType[t] = n
		ov.Questions.Authored += n
	}
	return ov, rows.Err()
}
