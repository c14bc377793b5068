package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/config"
	"github.com/conneroisu/anchorage/internal/errors"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/textsource"
)

// countingSource counts reads per URI on top of an overlay.
type countingSource struct {
	*textsource.Overlay
	mu    sync.Mutex
	reads map[uri.URI]int
}

func newCountingSource() *countingSource {
	return &countingSource{Overlay: textsource.NewOverlay(), reads: make(map[uri.URI]int)}
}

func (s *countingSource) Read(ctx context.Context, u uri.URI) (string, error) {
	s.mu.Lock()
	s.reads[u]++
	s.mu.Unlock()
	return s.Overlay.Read(ctx, u)
}

func (s *countingSource) count(u uri.URI) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[u]
}

// gatedSource blocks the first read until released and serves later reads
// immediately.
type gatedSource struct {
	*textsource.Overlay
	gate    chan struct{}
	entered chan struct{}
	calls   int32
	first   string
}

func (s *gatedSource) Read(ctx context.Context, u uri.URI) (string, error) {
	if atomic.AddInt32(&s.calls, 1) == 1 {
		close(s.entered)
		<-s.gate
		return s.first, nil
	}
	return s.Overlay.Read(ctx, u)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Workspace.Enabled = false
	cfg.ParseDelay = 30
	return cfg
}

func newEngine(t *testing.T, source textsource.Source) *Engine {
	t.Helper()
	e := New(source, logging.Nop())
	require.NoError(t, e.Rebuild(context.Background(), testConfig()))
	t.Cleanup(e.Shutdown)
	return e
}

func texts(idx *anchor.Index) []string {
	var out []string
	idx.Walk(func(n *anchor.Node) { out = append(out, n.Text) })
	return out
}

func TestCacheCoherence(t *testing.T) {
	source := textsource.NewOverlay()
	u := uri.File("/ws/main.go")
	source.Open(u, "// TODO: first")

	e := newEngine(t, source)
	ctx := context.Background()

	require.NoError(t, e.SetActive(ctx, u))
	assert.Equal(t, []string{"TODO: first"}, texts(e.Current()))

	source.Update(u, "// NOTE: second")
	found, err := e.AddOrReplace(ctx, u)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotSame(t, anchor.Empty, e.Current())
	assert.Equal(t, []string{"NOTE: second"}, texts(e.Current()))
}

func TestPlaceholderWhileParsing(t *testing.T) {
	source := &gatedSource{
		Overlay: textsource.NewOverlay(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
		first:   "// TODO: slow",
	}
	e := newEngine(t, source)
	u := uri.File("/ws/slow.go")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.AddOrReplace(context.Background(), u)
	}()

	<-source.entered
	assert.True(t, e.Has(u))
	assert.Same(t, anchor.Empty, e.Get(u))

	close(source.gate)
	<-done
	assert.Equal(t, []string{"TODO: slow"}, texts(e.Get(u)))
}

func TestStaleParseDropped(t *testing.T) {
	source := &gatedSource{
		Overlay: textsource.NewOverlay(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
		first:   "// TODO: stale",
	}
	u := uri.File("/ws/race.go")
	source.Open(u, "// TODO: fresh")
	e := newEngine(t, source)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.AddOrReplace(ctx, u)
	}()
	<-source.entered

	_, err := e.AddOrReplace(ctx, u)
	require.NoError(t, err)

	close(source.gate)
	<-done
	assert.Equal(t, []string{"TODO: fresh"}, texts(e.Get(u)))
}

func TestClearDiscardsInFlightParse(t *testing.T) {
	source := &gatedSource{
		Overlay: textsource.NewOverlay(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
		first:   "// TODO: before clear",
	}
	e := newEngine(t, source)
	u := uri.File("/ws/cleared.go")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.AddOrReplace(context.Background(), u)
	}()
	<-source.entered

	e.Clear()
	close(source.gate)
	<-done

	assert.False(t, e.Has(u))
}

func TestReadFailureKeepsPreviousEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("// TODO: on disk"), 0o644))
	u := uri.File(path)

	e := newEngine(t, textsource.NewOverlay())
	ctx := context.Background()

	_, err := e.AddOrReplace(ctx, u)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	_, err = e.AddOrReplace(ctx, u)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeReadFailed))
	assert.Equal(t, []string{"TODO: on disk"}, texts(e.Get(u)))

	missing := uri.File(filepath.Join(dir, "never.go"))
	_, err = e.AddOrReplace(ctx, missing)
	require.Error(t, err)
	assert.False(t, e.Has(missing))
}

// readStep is one scripted Read result. A non-nil gate blocks the read
// until it is closed.
type readStep struct {
	text string
	err  error
	gate chan struct{}
}

// scriptedSource serves reads in call order from steps.
type scriptedSource struct {
	*textsource.Overlay
	mu      sync.Mutex
	steps   []readStep
	entered chan struct{}
}

func (s *scriptedSource) Read(ctx context.Context, u uri.URI) (string, error) {
	s.mu.Lock()
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	if step.gate != nil {
		close(s.entered)
		<-step.gate
	}
	return step.text, step.err
}

func TestReadFailureDuringInFlightParseKeepsLastGood(t *testing.T) {
	gate := make(chan struct{})
	source := &scriptedSource{
		Overlay: textsource.NewOverlay(),
		entered: make(chan struct{}),
		steps: []readStep{
			{text: "// TODO: good"},
			{text: "// TODO: slow", gate: gate},
			{err: errors.ReadError("/ws/flaky.go", os.ErrNotExist)},
		},
	}
	e := newEngine(t, source)
	u := uri.File("/ws/flaky.go")
	ctx := context.Background()

	_, err := e.AddOrReplace(ctx, u)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.AddOrReplace(ctx, u)
	}()
	<-source.entered

	_, err = e.AddOrReplace(ctx, u)
	require.Error(t, err)
	assert.Equal(t, []string{"TODO: good"}, texts(e.Get(u)))

	close(gate)
	<-done
	assert.Equal(t, []string{"TODO: slow"}, texts(e.Get(u)))
}

func TestDuplicatePathReconciled(t *testing.T) {
	source := textsource.NewOverlay()
	a := uri.URI("file:///ws/pkg/x.go")
	b := uri.URI("file:///ws/pkg/./x.go")
	source.Open(a, "// TODO: a")
	source.Open(b, "// TODO: b")

	e := newEngine(t, source)
	ctx := context.Background()

	_, err := e.AddOrReplace(ctx, a)
	require.NoError(t, err)
	_, err = e.AddOrReplace(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, []uri.URI{b}, e.URIs())
}

func TestCloseRetention(t *testing.T) {
	source := textsource.NewOverlay()
	u := uri.File("/ws/close.go")
	source.Open(u, "// TODO: x")
	ctx := context.Background()

	e := newEngine(t, source)
	_, err := e.AddOrReplace(ctx, u)
	require.NoError(t, err)
	assert.True(t, e.Close(u))
	assert.False(t, e.Has(u))

	cfg := testConfig()
	cfg.Workspace.Enabled = true
	cfg.Workspace.LazyLoad = true
	require.NoError(t, e.Rebuild(ctx, cfg))
	_, err = e.AddOrReplace(ctx, u)
	require.NoError(t, err)

	// enabled but never scanned
	assert.True(t, e.Close(u))

	_, err = e.AddOrReplace(ctx, u)
	require.NoError(t, err)
	e.MarkScanned()
	assert.False(t, e.Close(u))
	assert.True(t, e.Has(u))

	e.Delete(u)
	assert.False(t, e.Has(u))
}

func TestDebounceCollapse(t *testing.T) {
	source := newCountingSource()
	u := uri.File("/ws/edit.go")
	source.Open(u, "// TODO: v0")

	e := newEngine(t, source)
	require.NoError(t, e.SetActive(context.Background(), u))
	require.Equal(t, 1, source.count(u))

	for i := 1; i <= 10; i++ {
		source.Update(u, "// TODO: v"+string(rune('0'+i%10)))
		assert.True(t, e.DocumentChanged(u))
	}
	source.Update(u, "// TODO: final")

	assert.Eventually(t, func() bool {
		return len(texts(e.Current())) == 1 && texts(e.Current())[0] == "TODO: final"
	}, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, source.count(u))
}

func TestCloseActiveCancelsPendingParse(t *testing.T) {
	source := newCountingSource()
	u := uri.File("/ws/closing.go")
	source.Open(u, "// TODO: open")

	e := newEngine(t, source)
	require.NoError(t, e.SetActive(context.Background(), u))
	require.Equal(t, 1, source.count(u))

	source.Update(u, "// TODO: edited")
	require.True(t, e.DocumentChanged(u))
	assert.True(t, e.Close(u))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, source.count(u))
	assert.False(t, e.Has(u))
	assert.Equal(t, uri.URI(""), e.Active())
	assert.False(t, e.DocumentChanged(u))
}

func TestDocumentChangedIgnoresInactive(t *testing.T) {
	e := newEngine(t, textsource.NewOverlay())
	assert.False(t, e.DocumentChanged(uri.File("/ws/other.go")))
}

func TestRebuildKeepsStateOnConfigError(t *testing.T) {
	source := textsource.NewOverlay()
	u := uri.File("/ws/keep.go")
	source.Open(u, "// TODO: kept")
	ctx := context.Background()

	e := newEngine(t, source)
	_, err := e.AddOrReplace(ctx, u)
	require.NoError(t, err)

	bad := testConfig()
	bad.Tags.Separators = nil
	err = e.Rebuild(ctx, bad)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	assert.Equal(t, []string{"TODO: kept"}, texts(e.Get(u)))
	assert.NotEmpty(t, e.Config().Tags.Separators)

	_, err = e.AddOrReplace(ctx, u)
	require.NoError(t, err)
}

func TestRebuildLazyParsesActive(t *testing.T) {
	source := textsource.NewOverlay()
	u := uri.File("/ws/active.go")
	source.Open(u, "// TODO: x")
	ctx := context.Background()

	e := newEngine(t, source)
	require.NoError(t, e.SetActive(ctx, u))

	cfg := testConfig()
	cfg.Display.TagName = false
	require.NoError(t, e.Rebuild(ctx, cfg))

	assert.True(t, e.Loaded())
	assert.Equal(t, []string{"x"}, texts(e.Current()))
}

type fakeLoader struct {
	calls int32
}

func (l *fakeLoader) Load(ctx context.Context) (int, error) {
	atomic.AddInt32(&l.calls, 1)
	return 0, nil
}

func TestRebuildEagerLoadsWorkspace(t *testing.T) {
	e := New(textsource.NewOverlay(), logging.Nop())
	defer e.Shutdown()
	loader := &fakeLoader{}
	e.SetLoader(loader)

	cfg := testConfig()
	cfg.Workspace.Enabled = true
	require.NoError(t, e.Rebuild(context.Background(), cfg))

	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.calls))
	assert.True(t, e.Loaded())
}

func TestSubscribe(t *testing.T) {
	source := textsource.NewOverlay()
	u := uri.File("/ws/notify.go")
	source.Open(u, "// TODO: x")

	e := newEngine(t, source)
	events := e.Subscribe()

	_, err := e.AddOrReplace(context.Background(), u)
	require.NoError(t, err)
	e.Remove(u)

	for _, want := range []EventType{EventChanged, EventChanged} {
		select {
		case ev := <-events:
			assert.Equal(t, want, ev.Type)
			assert.Equal(t, u, ev.URI)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for engine event")
		}
	}

	e.Unsubscribe(events)
	_, open := <-events
	assert.False(t, open)
}

func TestNavigation(t *testing.T) {
	source := textsource.NewOverlay()
	a := uri.File("/ws/a.go")
	b := uri.File("/ws/b.go")
	source.Open(a, "// SECTION: setup [id=boot]\n// TODO: wire database\n// !SECTION\n")
	source.Open(b, "\n\n// NOTE[epic=docs]: explain caching\n")
	ctx := context.Background()

	e := newEngine(t, source)
	for _, u := range []uri.URI{b, a} {
		_, err := e.AddOrReplace(ctx, u)
		require.NoError(t, err)
	}

	rows := e.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, Row{FilePath: filepath.FromSlash("/ws/a.go"), LineNumber: 1, Tag: "SECTION", Text: "SECTION: setup", ID: "boot"}, rows[0])
	assert.Equal(t, "TODO", rows[1].Tag)
	assert.Equal(t, Row{FilePath: filepath.FromSlash("/ws/b.go"), LineNumber: 3, Tag: "NOTE", Text: "NOTE: explain caching", Epic: "docs"}, rows[2])

	loc, err := e.ResolveID("boot")
	require.NoError(t, err)
	assert.Equal(t, a, uri.URI(loc.URI))
	assert.Equal(t, uint32(0), loc.Range.Start.Line)

	_, err = e.ResolveID("missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeAnchorIDNotFound))

	loc = e.ResolveLine(b, 3)
	assert.Equal(t, uint32(2), loc.Range.Start.Line)

	hits := e.FindText("database")
	require.NotEmpty(t, hits)
	assert.Equal(t, a, hits[0].URI)
	assert.Equal(t, "TODO: wire database", hits[0].Node.Text)

	assert.Empty(t, e.FindText("zzzz"))
}
