// Package sqlite implements the question store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/gyapak/content-agent/internal/storage"
	"github.com/gyapak/content-agent/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS questions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	qid           TEXT NOT NULL UNIQUE,
	question      TEXT NOT NULL UNIQUE,
	options       TEXT NOT NULL,
	correct       INTEGER NOT NULL,
	difficulty    TEXT NOT NULL DEFAULT '',
	exam_id       TEXT NOT NULL DEFAULT '',
	exam_slug     TEXT NOT NULL,
	section       TEXT NOT NULL DEFAULT '',
	section_name  TEXT NOT NULL DEFAULT '',
	topic         TEXT NOT NULL DEFAULT '',
	subtopic      TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '[]',
	status        TEXT NOT NULL,
	revision      INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_questions_topic      ON questions(topic);
CREATE INDEX IF NOT EXISTS idx_questions_exam_slug  ON questions(exam_slug);
CREATE INDEX IF NOT EXISTS idx_questions_topic_exam ON questions(topic, exam_slug);
`

// SQLiteStore implements storage.Store using SQLite.
//
// The UNIQUE constraint on question text is the insert-time backstop for
// races between concurrent workers: the duplicate filter is the primary
// enforcement point, but two workers can both classify the same text as
// unique in the same round, and the index makes exactly one of them win.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements storage.Store.
var _ storage.Store = (*SQLiteStore)(nil)

// Config holds database configuration.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// MaxOpenConns sizes the connection pool. It must cover every
	// concurrently running worker plus the scheduler's own scan query.
	MaxOpenConns int
}

// New opens (creating if needed) a SQLite-backed question store.
func New(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode so workers can read scopes while another worker inserts.
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GapsBelow implements storage.Store.
func (s *SQLiteStore) GapsBelow(ctx context.Context, threshold int) ([]types.GroupGap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exam_slug, COUNT(*) AS n
		FROM questions
		GROUP BY exam_slug
		HAVING n < ?
		ORDER BY n ASC, exam_slug ASC`, threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: gap scan: %v", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	return scanGaps(rows)
}

// Counts implements storage.Store.
func (s *SQLiteStore) Counts(ctx context.Context) ([]types.GroupGap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exam_slug, COUNT(*) AS n
		FROM questions
		GROUP BY exam_slug
		ORDER BY n ASC, exam_slug ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: count scan: %v", storage.ErrUnavailable, err)
	}
	defer rows.Close()

	return scanGaps(rows)
}

func scanGaps(rows *sql.Rows) ([]types.GroupGap, error) {
	var gaps []types.GroupGap
	for rows.Next() {
		var g types.GroupGap
		if err := rows.Scan(&g.ExamSlug, &g.Count); err != nil {
			return nil, fmt.Errorf("%w: scanning gap row: %v", storage.ErrUnavailable, err)
		}
		gaps = append(gaps, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating gap rows: %v", storage.ErrUnavailable, err)
	}
	return gaps, nil
}

// SampleSeeds implements storage.Store.
func (s *SQLiteStore) SampleSeeds(ctx context.Context, examSlug string, limit int) ([]types.SeedQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exam_id, exam_slug, section, section_name, topic, subtopic,
		       question, options, correct
		FROM questions
		WHERE exam_slug = ?
		LIMIT ?`, examSlug, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: sampling seeds for %s: %v", storage.ErrUnavailable, examSlug, err)
	}
	defer rows.Close()

	var seeds []types.SeedQuestion
	for rows.Next() {
		var seed types.SeedQuestion
		var optionsJSON string
		if err := rows.Scan(&seed.ExamID, &seed.ExamSlug, &seed.Section, &seed.SectionName,
			&seed.Topic, &seed.Subtopic, &seed.Question, &optionsJSON, &seed.Correct); err != nil {
			return nil, fmt.Errorf("%w: scanning seed row: %v", storage.ErrUnavailable, err)
		}
		if err := json.Unmarshal([]byte(optionsJSON), &seed.Options); err != nil {
			return nil, fmt.Errorf("corrupt options for seed in %s: %w", examSlug, err)
		}
		seeds = append(seeds, seed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating seed rows: %v", storage.ErrUnavailable, err)
	}
	return seeds, nil
}

// ExistsExact implements storage.Store.
func (s *SQLiteStore) ExistsExact(ctx context.Context, questionText string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM questions WHERE question = ? LIMIT 1`,
		strings.TrimSpace(questionText)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: exact lookup: %v", storage.ErrUnavailable, err)
	}
	return true, nil
}

// TextsInScope implements storage.Store.
func (s *SQLiteStore) TextsInScope(ctx context.Context, topic, examSlug string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question FROM questions WHERE topic = ? AND exam_slug = ?`, topic, examSlug)
	if err != nil {
		return nil, fmt.Errorf("%w: scope scan (%s, %s): %v", storage.ErrUnavailable, topic, examSlug, err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("%w: scanning scope row: %v", storage.ErrUnavailable, err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating scope rows: %v", storage.ErrUnavailable, err)
	}
	return texts, nil
}

// BulkInsert implements storage.Store. Rows are inserted one at a time so a
// uniqueness conflict on one question cannot block the others; the return
// value is exactly how many rows landed.
func (s *SQLiteStore) BulkInsert(ctx context.Context, questions []types.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin bulk insert: %v", storage.ErrUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions
			(qid, question, options, correct, difficulty, exam_id, exam_slug,
			 section, section_name, topic, subtopic, tags, status, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare bulk insert: %v", storage.ErrUnavailable, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, q := range questions {
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return inserted, fmt.Errorf("encoding options for %s: %w", q.QID, err)
		}
		tags := q.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return inserted, fmt.Errorf("encoding tags for %s: %w", q.QID, err)
		}

		_, err = stmt.ExecContext(ctx,
			q.QID, q.Question, string(optionsJSON), q.Correct, q.Difficulty,
			q.ExamID, q.ExamSlug, q.Section, q.SectionName, q.Topic, q.Subtopic,
			string(tagsJSON), q.Status, q.Revision)
		if err != nil {
			if isConstraintViolation(err) {
				// Lost a race with a concurrent insert; skip this row.
				continue
			}
			return inserted, fmt.Errorf("%w: inserting %s: %v", storage.ErrUnavailable, q.QID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit bulk insert: %v", storage.ErrUnavailable, err)
	}
	return inserted, nil
}

// isConstraintViolation reports whether err is a SQLite uniqueness/constraint
// failure, as opposed to a connection-level problem.
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// Close implements storage.Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
