// Package export serializes the flattened anchor rows of a workspace.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/anchorage/internal/engine"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatHTML   Format = "html"
	FormatSQLite Format = "sqlite"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatCSV, FormatJSON, FormatYAML, FormatHTML, FormatSQLite}
}

// ParseFormat accepts a format name, case-insensitively, plus the "yml",
// "htm" and "db" aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "html", "htm":
		return FormatHTML, nil
	case "sqlite", "sqlite3", "db":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// FormatFromPath picks the format matching the file extension of path.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// csvHeader is the column order of table exports.
var csvHeader = []string{"Filename", "Line", "Tag", "Text", "Id", "Epic"}

// Entry is one anchor within a file in the JSON and YAML exports.
type Entry struct {
	Tag  string `json:"tag" yaml:"tag"`
	Text string `json:"text" yaml:"text"`
	Line int    `json:"line" yaml:"line"`
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Epic string `json:"epic,omitempty" yaml:"epic,omitempty"`
}

// ByFile groups rows by file path, keeping row order within each file.
func ByFile(rows []engine.Row) map[string][]Entry {
	out := make(map[string][]Entry)
	for _, r := range rows {
		out[r.FilePath] = append(out[r.FilePath], Entry{
			Tag:  r.Tag,
			Text: r.Text,
			Line: r.LineNumber,
			ID:   r.ID,
			Epic: r.Epic,
		})
	}
	return out
}

// Write encodes rows to w. SQLite needs a file and is rejected here.
func Write(w io.Writer, format Format, rows []engine.Row) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, rows)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ByFile(rows))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ByFile(rows)); err != nil {
			return err
		}
		return enc.Close()
	case FormatHTML:
		return writeHTML(w, rows)
	case FormatSQLite:
		return fmt.Errorf("%s export must be written to a file", format)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// WriteFile exports rows to path. The file is replaced atomically, so
// readers never observe a partial export.
func WriteFile(path string, format Format, rows []engine.Row) error {
	if format == FormatSQLite {
		return writeSQLite(path, rows)
	}

	var buf bytes.Buffer
	if err := Write(&buf, format, rows); err != nil {
		return fmt.Errorf("failed to encode %s export: %w", format, err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeCSV(w io.Writer, rows []engine.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{r.FilePath, strconv.Itoa(r.LineNumber), r.Tag, r.Text, r.ID, r.Epic}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
