package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS studies (
	study_uid    TEXT PRIMARY KEY,
	patient_id   TEXT NOT NULL DEFAULT '',
	patient_name TEXT NOT NULL DEFAULT '',
	study_date   TEXT NOT NULL DEFAULT '',
	modality     TEXT NOT NULL DEFAULT '',
	series_count INTEGER NOT NULL DEFAULT 0,
	image_count  INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);`

// SQLiteCatalog persists summaries in a single-file sqlite database so
// list and info survive across runs.
type SQLiteCatalog struct {
	db *sql.DB
}

// OpenSQLiteCatalog opens the catalog database at path, creating the
// schema on first use. The database runs in WAL mode.
func OpenSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	if _, err := db.Exec(catalogSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) Put(ctx context.Context, summary Summary) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO studies
			(study_uid, patient_id, patient_name, study_date, modality, series_count, image_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(study_uid) DO UPDATE SET
			patient_id   = excluded.patient_id,
			patient_name = excluded.patient_name,
			study_date   = excluded.study_date,
			modality     = excluded.modality,
			series_count = excluded.series_count,
			image_count  = excluded.image_count`,
		summary.StudyUID, summary.PatientID, summary.PatientName, summary.StudyDate,
		summary.Modality, summary.SeriesCount, summary.ImageCount, summary.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert study %s: %w", summary.StudyUID, err)
	}
	return nil
}

func (c *SQLiteCatalog) Get(ctx context.Context, studyUID string) (Summary, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT study_uid, patient_id, patient_name, study_date, modality, series_count, image_count, created_at
		FROM studies WHERE study_uid = ?`, studyUID)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("study %s: %w", studyUID, ErrNotFound)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("query study %s: %w", studyUID, err)
	}
	return summary, nil
}

func (c *SQLiteCatalog) List(ctx context.Context) ([]Summary, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT study_uid, patient_id, patient_name, study_date, modality, series_count, image_count, created_at
		FROM studies ORDER BY created_at DESC, study_uid`)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan study row: %w", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	return out, nil
}

func (c *SQLiteCatalog) Remove(ctx context.Context, studyUID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM studies WHERE study_uid = ?`, studyUID); err != nil {
		return fmt.Errorf("delete study %s: %w", studyUID, err)
	}
	return nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (Summary, error) {
	var s Summary
	var createdAt int64
	if err := row.Scan(&s.StudyUID, &s.PatientID, &s.PatientName, &s.StudyDate,
		&s.Modality, &s.SeriesCount, &s.ImageCount, &createdAt); err != nil {
		return Summary{}, err
	}
	s.CreatedAt = time.Unix(0, createdAt).UTC()
	return s, nil
}
