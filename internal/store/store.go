// Package store persists sessions and sections in a sqlite database,
// matching the logical schema spec.md §6 specifies exactly.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/dcosson/castkeep/internal/vt"
)

type SectionType string

const (
	SectionMarker   SectionType = "marker"
	SectionDetected SectionType = "detected"
)

type Section struct {
	ID         string
	SessionID  string
	Type       SectionType
	StartEvent int
	EndEvent   *int
	Label      string
	Snapshot   *vt.Snapshot
	CreatedAt  time.Time
}

type DetectionStatus string

const (
	StatusPending    DetectionStatus = "pending"
	StatusProcessing DetectionStatus = "processing"
	StatusCompleted  DetectionStatus = "completed"
	StatusFailed     DetectionStatus = "failed"
)

type Session struct {
	ID                    string
	Filename              string
	Filepath              string
	SizeBytes             int64
	MarkerCount           int
	UploadedAt            time.Time
	EventCount            *int
	DetectedSectionsCount int
	DetectionStatus       DetectionStatus
	ProcessingStartedAt   *time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                       TEXT PRIMARY KEY,
	filename                 TEXT NOT NULL,
	filepath                 TEXT NOT NULL,
	size_bytes               INTEGER NOT NULL,
	marker_count             INTEGER NOT NULL DEFAULT 0,
	uploaded_at              DATETIME NOT NULL,
	event_count              INTEGER,
	detected_sections_count  INTEGER NOT NULL DEFAULT 0,
	detection_status         TEXT NOT NULL DEFAULT 'pending',
	processing_started_at    DATETIME
);

CREATE TABLE IF NOT EXISTS sections (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	type        TEXT NOT NULL,
	start_event INTEGER NOT NULL,
	end_event   INTEGER,
	label       TEXT NOT NULL,
	snapshot    TEXT,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sections_session ON sections(session_id);
CREATE INDEX IF NOT EXISTS idx_sections_session_start ON sections(session_id, start_event);
`

// Store owns the sqlite connection and the per-session advisory locks
// that serialize each session's replace-all-sections transaction.
type Store struct {
	db      *sql.DB
	lockDir string
}

// Open creates (if needed) and opens the sqlite database at path.
// Concurrent writers are serialized at the connection pool level —
// modernc.org/sqlite is a single-process, no-cgo driver, and sqlite's
// own file locking does not substitute for that inside one process.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}

	return &Store{db: db, lockDir: filepath.Dir(path)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, filename, filepath, size_bytes, marker_count, uploaded_at, event_count, detected_sections_count, detection_status, processing_started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Filename, sess.Filepath, sess.SizeBytes, sess.MarkerCount,
		sess.UploadedAt, sess.EventCount, sess.DetectedSectionsCount, string(sess.DetectionStatus), sess.ProcessingStartedAt,
	)
	if err != nil {
		return fmt.Errorf("store: create session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, filepath, size_bytes, marker_count, uploaded_at, event_count, detected_sections_count, detection_status, processing_started_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, filepath, size_bytes, marker_count, uploaded_at, event_count, detected_sections_count, detection_status, processing_started_at
		FROM sessions ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var status string
	if err := row.Scan(
		&sess.ID, &sess.Filename, &sess.Filepath, &sess.SizeBytes, &sess.MarkerCount,
		&sess.UploadedAt, &sess.EventCount, &sess.DetectedSectionsCount, &status, &sess.ProcessingStartedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan session: %w", err)
	}
	sess.DetectionStatus = DetectionStatus(status)
	return &sess, nil
}

// SetStatus transitions a session's detection_status. Entering
// processing stamps processing_started_at, which SweepStaleProcessing
// uses to find runs a crash left stuck.
func (s *Store) SetStatus(ctx context.Context, sessionID string, status DetectionStatus) error {
	var err error
	if status == StatusProcessing {
		_, err = s.db.ExecContext(ctx, `UPDATE sessions SET detection_status = ?, processing_started_at = ? WHERE id = ?`,
			string(status), time.Now().UTC(), sessionID)
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE sessions SET detection_status = ? WHERE id = ?`, string(status), sessionID)
	}
	if err != nil {
		return fmt.Errorf("store: set status for %s: %w", sessionID, err)
	}
	return nil
}

// CompleteSession records the final counts and marks the session
// completed, the terminal step of the session pipeline's protocol.
func (s *Store) CompleteSession(ctx context.Context, sessionID string, eventCount, detectedSectionsCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET event_count = ?, detected_sections_count = ?, detection_status = ?
		WHERE id = ?`,
		eventCount, detectedSectionsCount, string(StatusCompleted), sessionID,
	)
	if err != nil {
		return fmt.Errorf("store: complete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) ListSections(ctx context.Context, sessionID string) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, type, start_event, end_event, label, snapshot, created_at
		FROM sections WHERE session_id = ? ORDER BY start_event ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list sections for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []Section
	for rows.Next() {
		var sec Section
		var typ string
		var snapshotJSON sql.NullString
		if err := rows.Scan(&sec.ID, &sec.SessionID, &typ, &sec.StartEvent, &sec.EndEvent, &sec.Label, &snapshotJSON, &sec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan section: %w", err)
		}
		sec.Type = SectionType(typ)
		if snapshotJSON.Valid {
			var snap vt.Snapshot
			if err := json.Unmarshal([]byte(snapshotJSON.String), &snap); err != nil {
				return nil, fmt.Errorf("store: decode snapshot for section %s: %w", sec.ID, err)
			}
			sec.Snapshot = &snap
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// ReplaceAllSections atomically deletes every existing section for a
// session and inserts the given set, per spec.md §4.5 step 6. The
// per-session flock serializes this against a concurrent re-detect of
// the same session, since sqlite's own locking covers a single
// statement but not the delete-then-insert pair.
func (s *Store) ReplaceAllSections(ctx context.Context, sessionID string, sections []Section) error {
	fl := flock.New(filepath.Join(s.lockDir, sessionID+".lock"))
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("store: lock session %s: %w", sessionID, err)
	}
	defer fl.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin replace for %s: %w", sessionID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("store: delete sections for %s: %w", sessionID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections (id, session_id, type, start_event, end_event, label, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert for %s: %w", sessionID, err)
	}
	defer stmt.Close()

	for _, sec := range sections {
		var snapshotJSON any
		if sec.Snapshot != nil {
			b, err := json.Marshal(sec.Snapshot)
			if err != nil {
				return fmt.Errorf("store: encode snapshot for section %s: %w", sec.ID, err)
			}
			snapshotJSON = string(b)
		}
		if _, err := stmt.ExecContext(ctx, sec.ID, sessionID, string(sec.Type), sec.StartEvent, sec.EndEvent, sec.Label, snapshotJSON, sec.CreatedAt); err != nil {
			return fmt.Errorf("store: insert section %s: %w", sec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit replace for %s: %w", sessionID, err)
	}
	return nil
}

// DeleteSession removes a session and, via ON DELETE CASCADE, every
// section that belongs to it.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("store: delete session %s: %w", sessionID, err)
	}
	return nil
}
