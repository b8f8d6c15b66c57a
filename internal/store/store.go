package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/qpaper/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a subject or question looked up by id does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS subjects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		marks INTEGER NOT NULL CHECK (marks > 0),
		k_level TEXT NOT NULL CHECK (k_level IN ('K1', 'K2', 'K3', 'K4', 'K5', 'K6')),
		part TEXT NOT NULL DEFAULT 'A',
		co_level TEXT NOT NULL CHECK (co_level IN ('CO1', 'CO2', 'CO3', 'CO4', 'CO5')),
		has_formula INTEGER NOT NULL DEFAULT 0,
		has_or INTEGER NOT NULL DEFAULT 0,
		or_content TEXT NOT NULL DEFAULT '',
		or_marks INTEGER NOT NULL DEFAULT 0,
		or_k_level TEXT NOT NULL DEFAULT '',
		or_part TEXT NOT NULL DEFAULT '',
		or_co_level TEXT NOT NULL DEFAULT '',
		or_has_formula INTEGER NOT NULL DEFAULT 0,
		created_by INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_questions_subject_co ON questions (subject_id, co_level);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'teacher',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		subject_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL,
		PRIMARY KEY (subject_id, name),
		FOREIGN KEY (subject_id) REFERENCES subjects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSubject stores a subject.
func (s *Store) CreateSubject(ctx context.Context, code, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (code, name, created_at) VALUES (?, ?, ?)`,
		strings.TrimSpace(code), strings.TrimSpace(name), time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("create subject %q: %w", code, err)
	}
	return res.LastInsertId()
}

// UpdateSubject renames a subject.
func (s *Store) UpdateSubject(ctx context.Context, id int64, code, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subjects SET code = ?, name = ? WHERE id = ?`,
		strings.TrimSpace(code), strings.TrimSpace(name), id,
	)
	if err != nil {
		return fmt.Errorf("update subject %d: %w", id, err)
	}
	return affected(res, fmt.Sprintf("subject %d", id))
}

// DeleteSubject removes a subject together with its questions and import records.
func (s *Store) DeleteSubject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subject %d: %w", id, err)
	}
	return affected(res, fmt.Sprintf("subject %d", id))
}

// EnsureSubject returns the subject with code, creating it with name when missing.
func (s *Store) EnsureSubject(ctx context.Context, code, name string) (*model.Subject, error) {
	subj, err := s.SubjectByCode(ctx, code)
	if err != nil || subj != nil {
		return subj, err
	}
	if name == "" {
		name = code
	}
	id, err := s.CreateSubject(ctx, code, name)
	if err != nil {
		return nil, err
	}
	return &model.Subject{ID: id, Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)}, nil
}

// SubjectByID returns a subject, or nil if it does not exist.
func (s *Store) SubjectByID(ctx context.Context, id int64) (*model.Subject, error) {
	var subj model.Subject
	err := s.db.QueryRowContext(ctx, `SELECT id, code, name FROM subjects WHERE id = ?`, id).
		Scan(&subj.ID, &subj.Code, &subj.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subj, nil
}

// SubjectByCode returns a subject, or nil if it does not exist.
func (s *Store) SubjectByCode(ctx context.Context, code string) (*model.Subject, error) {
	var subj model.Subject
	err := s.db.QueryRowContext(ctx, `SELECT id, code, name FROM subjects WHERE code = ?`, strings.TrimSpace(code)).
		Scan(&subj.ID, &subj.Code, &subj.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subj, nil
}

// ListSubjects returns all subjects ordered by code.
func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name FROM subjects ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []model.Subject
	for rows.Next() {
		var subj model.Subject
		if err := rows.Scan(&subj.ID, &subj.Code, &subj.Name); err != nil {
			return nil, err
		}
		subjects = append(subjects, subj)
	}
	return subjects, rows.Err()
}

const questionCols = `id, subject_id, content, marks, k_level, part, co_level, has_formula,
	has_or, or_content, or_marks, or_k_level, or_part, or_co_level, or_has_formula,
	created_by, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner) (model.Question, error) {
	var q model.Question
	err := sc.Scan(&q.ID, &q.SubjectID, &q.Content, &q.Marks, &q.KLevel, &q.Part, &q.COLevel, &q.HasFormula,
		&q.HasOr, &q.OrContent, &q.OrMarks, &q.OrKLevel, &q.OrPart, &q.OrCOLevel, &q.OrHasFormula,
		&q.CreatedBy, &q.CreatedAt)
	return q, err
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertQuestion(ctx context.Context, db execer, q model.Question) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO questions (subject_id, content, marks, k_level, part, co_level, has_formula,
		 has_or, or_content, or_marks, or_k_level, or_part, or_co_level, or_has_formula, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.SubjectID, q.Content, q.Marks, q.KLevel, q.Part, q.COLevel, q.HasFormula,
		q.HasOr, q.OrContent, q.OrMarks, q.OrKLevel, q.OrPart, q.OrCOLevel, q.OrHasFormula,
		q.CreatedBy, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertQuestion stores a question.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	return insertQuestion(ctx, s.db, q)
}

// InsertQuestions stores questions in one transaction; either all are stored or none.
func (s *Store) InsertQuestions(ctx context.Context, qs []model.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, q := range qs {
		if _, err := insertQuestion(ctx, tx, q); err != nil {
			return fmt.Errorf("insert question %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	q, err := scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return q, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	return q, err
}

// Candidates returns a subject's questions tagged co, or all of them when co is empty.
func (s *Store) Candidates(ctx context.Context, subjectID int64, co model.COLevel) ([]model.Question, error) {
	if co == "" {
		return s.QuestionsForSubject(ctx, subjectID)
	}
	return s.queryQuestions(ctx,
		`SELECT `+questionCols+` FROM questions WHERE subject_id = ? AND co_level = ? ORDER BY id`,
		subjectID, co)
}

// QuestionsForSubject returns every question of a subject.
func (s *Store) QuestionsForSubject(ctx context.Context, subjectID int64) ([]model.Question, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionCols+` FROM questions WHERE subject_id = ? ORDER BY part, marks, id`,
		subjectID)
}

// QuestionsByIDs returns the subject's questions among ids. Unknown ids are skipped.
func (s *Store) QuestionsByIDs(ctx context.Context, subjectID int64, ids []int64) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, subjectID)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	return s.queryQuestions(ctx,
		`SELECT `+questionCols+` FROM questions WHERE subject_id = ? AND id IN (`+placeholders+`) ORDER BY id`,
		args...)
}

// DeleteQuestion removes a question of a subject.
func (s *Store) DeleteQuestion(ctx context.Context, subjectID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ? AND subject_id = ?`, id, subjectID)
	if err != nil {
		return err
	}
	return affected(res, fmt.Sprintf("question %d", id))
}

// affected turns a statement that touched no row into ErrNotFound.
func affected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// UpdateQuestion overwrites the content and tags of a stored question of q.SubjectID.
func (s *Store) UpdateQuestion(ctx context.Context, q model.Question) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET content = ?, marks = ?, k_level = ?, part = ?, co_level = ?, has_formula = ?,
		 has_or = ?, or_content = ?, or_marks = ?, or_k_level = ?, or_part = ?, or_co_level = ?, or_has_formula = ?
		 WHERE id = ? AND subject_id = ?`,
		q.Content, q.Marks, q.KLevel, q.Part, q.COLevel, q.HasFormula,
		q.HasOr, q.OrContent, q.OrMarks, q.OrKLevel, q.OrPart, q.OrCOLevel, q.OrHasFormula,
		q.ID, q.SubjectID,
	)
	if err != nil {
		return fmt.Errorf("update question %d: %w", q.ID, err)
	}
	return affected(res, fmt.Sprintf("question %d", q.ID))
}

// QuestionCount returns the number of questions of a subject.
func (s *Store) QuestionCount(ctx context.Context, subjectID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE subject_id = ?`, subjectID).Scan(&count)
	return count, err
}

// GetImportedFileHash returns the hash recorded for a file imported into a subject,
// or an empty string if the file was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, subjectID int64, name string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT hash FROM imported_files WHERE subject_id = ? AND name = ?`, subjectID, name,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the hash of an imported file.
func (s *Store) SetImportedFileHash(ctx context.Context, subjectID int64, name, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imported_files (subject_id, name, hash, imported_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(subject_id, name) DO UPDATE SET hash = excluded.hash, imported_at = excluded.imported_at`,
		subjectID, name, hash, time.Now(),
	)
	return err
}
