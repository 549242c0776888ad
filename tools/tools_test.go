package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	printkit "github.com/porticus-lab/go-printkit"
	"github.com/porticus-lab/go-printkit/kv"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDefaultRegistry(t *testing.T) {
	reg := Default()
	assert.Equal(t, []string{
		"circular", "idcard", "jobad", "plagiarism", "quote",
		"resizer", "resume", "roster", "rules", "urdupaper",
	}, reg.Names())

	_, err := reg.Lookup("spreadsheet")
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestBuiltinToolsRenderEmptyDocument(t *testing.T) {
	for _, tool := range Builtin() {
		t.Run(tool.Name, func(t *testing.T) {
			r, err := tool.Renderer()
			require.NoError(t, err)

			snap := printkit.NewSnapshot(tool.Schema, nil)
			first, err := r.Render(snap)
			require.NoError(t, err)
			second, err := r.Render(snap)
			require.NoError(t, err)

			assert.Equal(t, first.HTML, second.HTML, "render must be deterministic")
			assert.Contains(t, first.HTML, `id="preview"`)
			assert.NotContains(t, first.HTML, "<no value>")
			assert.NotEmpty(t, strings.TrimSpace(first.Text()))
		})
	}
}

func TestIDCardPlaceholders(t *testing.T) {
	s, err := IDCard().NewSession()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetField("name", "Jane Doe"))
	require.NoError(t, s.SetField("idNumber", "EMP-1"))

	p, err := s.Preview()
	require.NoError(t, err)
	text := p.Text()
	assert.Contains(t, text, "Jane Doe")
	assert.Contains(t, text, "EMP-1")
	assert.Contains(t, text, "Position")
}

func TestUrduPaperIsRightToLeft(t *testing.T) {
	r, err := UrduPaper().Renderer()
	require.NoError(t, err)
	p, err := r.Render(printkit.NewSnapshot(UrduPaper().Schema, nil))
	require.NoError(t, err)
	assert.Contains(t, p.HTML, `dir="rtl"`)
	assert.Contains(t, p.HTML, `lang="ur"`)
}

func TestRosterRendersRows(t *testing.T) {
	s, err := Roster().NewSession()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetField("activities", []printkit.Record{
		{"time": "08:00", "activity": "Tilawat", "presenter": "Ali"},
		{"time": "08:10", "activity": "Speech", "presenter": "Sara"},
	}))
	p, err := s.Preview()
	require.NoError(t, err)
	assert.Contains(t, p.Text(), "Tilawat")
	assert.Contains(t, p.Text(), "Sara")
}

func TestRulesEscapesInput(t *testing.T) {
	s, err := Rules().NewSession()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetField("rules", "Be kind\n<script>alert(1)</script>"))
	p, err := s.Preview()
	require.NoError(t, err)
	assert.NotContains(t, p.HTML, "<script>alert(1)</script>")
	assert.Contains(t, p.HTML, "<li>Be kind</li>")
}

func TestPlagiarismReport(t *testing.T) {
	s, err := Plagiarism().NewSession()
	require.NoError(t, err)
	defer s.Close()

	text := "Students need good study methods because they help improve results."
	require.NoError(t, s.SetFields(map[string]any{"source": text, "candidate": text}))

	p, err := s.Preview()
	require.NoError(t, err)
	assert.Contains(t, p.Text(), "100%")
	assert.Contains(t, p.Text(), "Learners require favorable research approaches since they assist enhance outcomes.")
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "the quick brown fox jumps", "the quick brown fox jumps", 1},
		{"disjoint", "alpha beta gamma delta", "one two three four", 0},
		{"empty", "", "", 0},
		{"short texts use words", "red apple", "red pear", 1.0 / 3.0},
		{"case and punctuation", "The quick, brown fox!", "the QUICK brown fox", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSharedPhrases(t *testing.T) {
	got := SharedPhrases("we ate the red apple today", "yesterday the red apple fell")
	assert.Equal(t, []string{"the red apple"}, got)
	assert.Nil(t, SharedPhrases("too short", "too short"))
}

func TestSynonymParaphraser(t *testing.T) {
	p := SynonymParaphraser{"quick": "rapid", "help": "assist"}
	assert.Equal(t, "Rapid answers assist, don't they?", p.Paraphrase("Quick answers help, don't they?"))
	assert.Equal(t, "unchanged text", p.Paraphrase("unchanged text"))
}

func TestIDCardMigratesDesignation(t *testing.T) {
	store := kv.NewMemory()
	defer store.Close()
	ctx := context.Background()

	old := `{"schema":"idcard","version":1,"fields":{"name":"Jane","designation":"Engineer"}}`
	require.NoError(t, store.Put(ctx, printkit.StorageKey("idcard", ""), old))

	snap, _, ok := IDCard().Persister(store, "", nil).Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "Engineer", snap.String("position"))
	assert.Equal(t, "Jane", snap.String("name"))
}

func TestToolImageLimits(t *testing.T) {
	assert.Equal(t, int64(1<<20), IDCard().ImageLimits(1<<20).MaxBytes, "config cap applies when the tool sets none")

	lim := Resizer().ImageLimits(1 << 20)
	assert.Equal(t, int64(5<<20), lim.MaxBytes, "a tool's own cap wins")
	assert.Equal(t, 4096, lim.MaxWidth)
}

func TestSetTemplateKeepsPreviousOnError(t *testing.T) {
	reg := Default()
	before, err := reg.Lookup("rules")
	require.NoError(t, err)

	err = reg.SetTemplate("rules", `{{define "style"}}{{end}}{{define "body"}}{{.Field}`)
	require.Error(t, err)

	after, err := reg.Lookup("rules")
	require.NoError(t, err)
	assert.Same(t, before, after)

	err = reg.SetTemplate("rules", `{{define "style"}}{{end}}`)
	require.Error(t, err, "body block is required")
}

const overrideRules = `{{define "style"}}h1{color:red}{{end}}{{define "body"}}<h1>Custom {{.Field "title"}}</h1>{{end}}`

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.html.tmpl"), []byte(overrideRules), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unknown.html.tmpl"), []byte(overrideRules), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reg := Default()
	loaded, err := LoadDir(dir, reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"rules"}, loaded)

	s := renderTool(t, reg, "rules")
	assert.Contains(t, s, "Custom Classroom Rules")
}

func TestLoadDirNested(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "school", "classroom")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "rules.html.tmpl"), []byte(overrideRules), 0o644))

	reg := Default()
	loaded, err := LoadDir(dir, reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"rules"}, loaded)
	assert.Contains(t, renderTool(t, reg, "rules"), "Custom Classroom Rules")

	dirs, err := templateDirs(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{dir, filepath.Join(dir, "school"), sub}, dirs)

	_, err = LoadDir(filepath.Join(dir, "missing"), reg)
	assert.Error(t, err)
}

func TestLoadDirReportsBrokenTemplates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quote.html.tmpl"), []byte(`{{define "body"}}`), 0o644))

	_, err := LoadDir(dir, Default())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownTool))
}

func TestWatchReloadsTemplates(t *testing.T) {
	dir := t.TempDir()
	reg := Default()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, dir, reg, nil) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	path := filepath.Join(dir, "rules.html.tmpl")
	require.Eventually(t, func() bool {
		if strings.Contains(renderTool(t, reg, "rules"), "Custom") {
			return true
		}
		// A write that lands before the directory is watched is missed.
		// Writes stay further apart than the settle window, so a seen
		// write is never postponed by the next one.
		assert.NoError(t, os.WriteFile(path, []byte(overrideRules), 0o644))
		return false
	}, 5*time.Second, 4*watchSettle)
}

func renderTool(t *testing.T, reg *Registry, name string) string {
	t.Helper()
	tool, err := reg.Lookup(name)
	require.NoError(t, err)
	r, err := tool.Renderer()
	require.NoError(t, err)
	p, err := r.Render(printkit.NewSnapshot(tool.Schema, nil))
	require.NoError(t, err)
	return p.HTML
}
