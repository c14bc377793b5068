package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/engine"
	"github.com/conneroisu/anchorage/internal/errors"
	"github.com/conneroisu/anchorage/internal/export"
	"github.com/conneroisu/anchorage/internal/textsource"
	"github.com/conneroisu/anchorage/internal/version"
	"github.com/conneroisu/anchorage/internal/views"
)

// FileSummary describes one cached document.
type FileSummary struct {
	URI     string `json:"uri"`
	Path    string `json:"path"`
	Anchors int    `json:"anchors"`
}

// FileDetail is the anchor tree of one document.
type FileDetail struct {
	URI     string                  `json:"uri"`
	Anchors []*anchor.Node          `json:"anchors"`
	Folds   []protocol.FoldingRange `json:"folds"`
}

// SearchResult is one fuzzy match.
type SearchResult struct {
	URI      string `json:"uri"`
	Line     int    `json:"line"`
	Tag      string `json:"tag"`
	Text     string `json:"text"`
	Distance int    `json:"distance"`
}

// LinkResult is one resolved link anchor.
type LinkResult struct {
	Line     int                `json:"line"`
	Text     string             `json:"text"`
	Broken   bool               `json:"broken"`
	Error    string             `json:"error,omitempty"`
	Location *protocol.Location `json:"location,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode response", "path", r.URL.Path)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.writeJSON(w, r, status, errorResponse{Error: err.Error(), Code: errors.Code(err)})
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// documentURI reads the target document from the "uri" or "path" query
// parameter.
func documentURI(r *http.Request) (uri.URI, bool) {
	q := r.URL.Query()
	if u := q.Get("uri"); u != "" {
		return uri.URI(u), true
	}
	if p := q.Get("path"); p != "" {
		return uri.File(p), true
	}
	return "", false
}

// handleHealth returns the server health status for health checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	tagCount := 0
	if registry := s.engine.Registry(); registry != nil {
		tagCount = registry.Count()
	}

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"files":     len(s.engine.URIs()),
		"loaded":    s.engine.Loaded(),
		"clients":   s.ClientCount(),
		"tags":      tagCount,
	})
}

func (s *Server) handleAnchors(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	rows := s.engine.Rows()
	if rows == nil {
		rows = []engine.Row{}
	}
	s.writeJSON(w, r, http.StatusOK, rows)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	snapshot := s.engine.Snapshot()
	files := make([]FileSummary, 0, len(snapshot))
	for u, idx := range snapshot {
		files = append(files, FileSummary{URI: string(u), Path: textsource.DisplayPath(u), Anchors: idx.Len()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].URI < files[j].URI })
	s.writeJSON(w, r, http.StatusOK, files)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	u, ok := documentURI(r)
	if !ok {
		http.Error(w, "uri or path parameter required", http.StatusBadRequest)
		return
	}
	if !s.engine.Has(u) {
		http.Error(w, "document not indexed", http.StatusNotFound)
		return
	}

	idx := s.engine.Get(u)
	roots := idx.Roots()
	if roots == nil {
		roots = []*anchor.Node{}
	}
	s.writeJSON(w, r, http.StatusOK, FileDetail{URI: string(u), Anchors: roots, Folds: idx.FoldingRanges()})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	registry := s.engine.Registry()
	if registry == nil {
		http.Error(w, "engine not configured", http.StatusServiceUnavailable)
		return
	}

	separator := " "
	if cfg := s.engine.Config(); cfg != nil && len(cfg.Tags.Separators) > 0 {
		separator = cfg.Tags.Separators[0]
	}
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"tags":        registry.All(),
		"completions": registry.Completions(separator),
	})
}

func (s *Server) handleEpics(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	step := 1
	if cfg := s.engine.Config(); cfg != nil {
		step = cfg.Epic.SeqStep
	}
	files := s.engine.Snapshot()

	epics := make(map[string][]SearchResult)
	for _, n := range views.EpicView(views.WorkspaceState{Files: files, Enabled: true, Loaded: true}, views.Options{}) {
		epic, ok := n.(views.Epic)
		if !ok {
			continue
		}
		members := make([]SearchResult, 0, len(epic.Children))
		for _, child := range epic.Children {
			switch v := child.(type) {
			case views.Anchor:
				members = append(members, SearchResult{URI: string(v.URI), Line: v.Anchor.LineNumber, Tag: v.Anchor.Tag, Text: v.Anchor.Text})
			case views.Region:
				members = append(members, SearchResult{URI: string(v.URI), Line: v.Anchor.LineNumber, Tag: v.Anchor.Tag, Text: v.Anchor.Text})
			}
		}
		epics[epic.Name] = members
	}

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"epics":       epics,
		"completions": views.EpicCompletions(files, step),
	})
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}

	loc, err := s.engine.ResolveID(id)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, loc)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q parameter required", http.StatusBadRequest)
		return
	}

	hits := s.engine.FindText(query)
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			URI:      string(h.URI),
			Line:     h.Node.LineNumber,
			Tag:      h.Node.Tag,
			Text:     h.Node.Text,
			Distance: h.Distance,
		})
	}
	s.writeJSON(w, r, http.StatusOK, results)
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	u, ok := documentURI(r)
	if !ok {
		http.Error(w, "uri or path parameter required", http.StatusBadRequest)
		return
	}

	targets := s.resolver.Targets(u, s.engine.Get(u))
	results := make([]LinkResult, 0, len(targets))
	for _, t := range targets {
		res := LinkResult{Line: t.Anchor.LineNumber, Text: t.Anchor.Comment, Broken: t.Broken}
		if t.Broken {
			res.Error = t.Err.Error()
		} else {
			loc := t.Location
			res.Location = &loc
		}
		results = append(results, res)
	}
	s.writeJSON(w, r, http.StatusOK, results)
}

var exportContentTypes = map[export.Format]string{
	export.FormatCSV:  "text/csv; charset=utf-8",
	export.FormatJSON: "application/json",
	export.FormatYAML: "application/yaml",
	export.FormatHTML: "text/html; charset=utf-8",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatJSON)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		http.Error(w, "format not available over HTTP", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if err := export.Write(w, format, s.engine.Rows()); err != nil {
		s.logger.Error(r.Context(), err, "export failed", "format", string(format))
	}
}
