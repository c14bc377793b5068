package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/engine"
	"github.com/conneroisu/anchorage/internal/errors"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/tags"
	"github.com/conneroisu/anchorage/internal/textsource"
)

const mainText = "// TODO[id=start]: begin here\n" +
	"// LINK docs.md\n" +
	"// SECTION[epic=release,seq=2]: setup\n" +
	"// !SECTION\n"

type fixture struct {
	root    string
	main    uri.URI
	overlay *textsource.Overlay
	engine  *engine.Engine
	server  *Server
	http    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	main := uri.File(filepath.Join(root, "main.go"))

	overlay := textsource.NewOverlay()
	overlay.Open(main, mainText)

	cfg := config.Default()
	cfg.Workspace.Enabled = false
	cfg.Workspace.Root = root
	cfg.ParseDelay = 10

	ctx, cancel := context.WithCancel(context.Background())
	eng := engine.New(overlay, logging.Nop())
	require.NoError(t, eng.Rebuild(ctx, cfg))
	_, err := eng.AddOrReplace(ctx, main)
	require.NoError(t, err)

	s := New(cfg, eng, logging.Nop())
	go s.Run(ctx)
	ts := httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		ts.Close()
		_ = s.Shutdown(context.Background())
		cancel()
		eng.Shutdown()
	})

	return &fixture{root: root, main: main, overlay: overlay, engine: eng, server: s, http: ts}
}

func (f *fixture) get(t *testing.T, path string, query url.Values) *http.Response {
	t.Helper()
	target := f.http.URL + path
	if query != nil {
		target += "?" + query.Encode()
	}
	resp, err := http.Get(target)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["files"])
	assert.Equal(t, float64(len(tags.Defaults())), body["tags"])
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.http.URL+"/api/anchors", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAnchorsAndFiles(t *testing.T) {
	f := newFixture(t)

	var rows []engine.Row
	decode(t, f.get(t, "/api/anchors", nil), &rows)
	require.Len(t, rows, 3)
	assert.Equal(t, "TODO", rows[0].Tag)
	assert.Equal(t, "start", rows[0].ID)

	var files []FileSummary
	decode(t, f.get(t, "/api/files", nil), &files)
	require.Len(t, files, 1)
	assert.Equal(t, string(f.main), files[0].URI)
	assert.Equal(t, 3, files[0].Anchors)

	var detail FileDetail
	decode(t, f.get(t, "/api/file", url.Values{"uri": {string(f.main)}}), &detail)
	assert.Len(t, detail.Anchors, 3)
	assert.Len(t, detail.Folds, 1)

	resp := f.get(t, "/api/file", url.Values{"path": {filepath.Join(f.root, "absent.go")}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGoto(t *testing.T) {
	f := newFixture(t)

	var loc protocol.Location
	decode(t, f.get(t, "/api/goto", url.Values{"id": {"start"}}), &loc)
	assert.Equal(t, protocol.DocumentURI(f.main), loc.URI)
	assert.Equal(t, uint32(0), loc.Range.Start.Line)

	resp := f.get(t, "/api/goto", url.Values{"id": {"missing"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body errorResponse
	decode(t, resp, &body)
	assert.Equal(t, errors.ErrCodeAnchorIDNotFound, body.Code)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)

	var results []SearchResult
	decode(t, f.get(t, "/api/search", url.Values{"q": {"begin"}}), &results)
	require.NotEmpty(t, results)
	assert.Equal(t, "TODO: begin here", results[0].Text)
	assert.Equal(t, 1, results[0].Line)
}

func TestTagsAndEpics(t *testing.T) {
	f := newFixture(t)

	var tagsBody struct {
		Completions []string `json:"completions"`
	}
	decode(t, f.get(t, "/api/tags", nil), &tagsBody)
	assert.Contains(t, tagsBody.Completions, "TODO ")
	assert.Contains(t, tagsBody.Completions, "!SECTION ")

	var epics struct {
		Epics       map[string][]SearchResult `json:"epics"`
		Completions []string                  `json:"completions"`
	}
	decode(t, f.get(t, "/api/epics", nil), &epics)
	require.Len(t, epics.Epics["release"], 1)
	assert.Equal(t, 3, epics.Epics["release"][0].Line)
	assert.Equal(t, []string{"epic=release,seq=3"}, epics.Completions)
}

func TestLinks(t *testing.T) {
	f := newFixture(t)

	var results []LinkResult
	decode(t, f.get(t, "/api/links", url.Values{"uri": {string(f.main)}}), &results)
	require.Len(t, results, 1)
	assert.True(t, results[0].Broken)
	assert.NotEmpty(t, results[0].Error)

	require.NoError(t, os.WriteFile(filepath.Join(f.root, "docs.md"), []byte("# docs\n"), 0o644))

	decode(t, f.get(t, "/api/links", url.Values{"uri": {string(f.main)}}), &results)
	require.Len(t, results, 1)
	assert.False(t, results[0].Broken)
	require.NotNil(t, results[0].Location)
	assert.Equal(t, protocol.DocumentURI(uri.File(filepath.Join(f.root, "docs.md"))), results[0].Location.URI)
}

func TestExport(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/api/export", url.Values{"format": {"csv"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "Filename,Line,Tag,Text,Id,Epic\n"))

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/export", url.Values{"format": {"sqlite"}}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/export", url.Values{"format": {"xml"}}).StatusCode)
}

func TestWebSocketOriginRejected(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.http.URL+"/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketChangeNotification(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return f.server.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.overlay.Update(f.main, "// NOTE: edited\n")
	_, err = f.engine.AddOrReplace(ctx, f.main)
	require.NoError(t, err)

	var msg Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "changed", msg.Type)
	assert.Equal(t, string(f.main), msg.URI)
}
