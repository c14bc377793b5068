package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/natefinch/atomic"

	"github.com/conneroisu/anchorage/internal/engine"
)

const schema = `
CREATE TABLE anchors (
	filename TEXT NOT NULL,
	line     INTEGER NOT NULL,
	tag      TEXT NOT NULL,
	text     TEXT NOT NULL,
	id       TEXT,
	epic     TEXT
);
CREATE INDEX idx_anchors_file ON anchors(filename, line);
CREATE INDEX idx_anchors_epic ON anchors(epic);
`

// writeSQLite builds the database next to path and moves it into place.
func writeSQLite(path string, rows []engine.Row) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".anchors-*.db")
	if err != nil {
		return fmt.Errorf("failed to create temporary database: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := fillDatabase(tmpPath, rows); err != nil {
		return err
	}
	if err := atomic.ReplaceFile(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func fillDatabase(path string, rows []engine.Row) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO anchors (filename, line, tag, text, id, epic) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.FilePath, r.LineNumber, r.Tag, r.Text, nullable(r.ID), nullable(r.Epic)); err != nil {
			return fmt.Errorf("failed to insert anchor %s:%d: %w", r.FilePath, r.LineNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit anchors: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
