package refine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/sheetkit/internal/ai"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/table"
)

// contentProvider answers based on what the prompt contains and is safe for
// concurrent use.
type contentProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *contentProvider) Name() string { return "content" }

func (p *contentProvider) Send(_ context.Context, payload ai.Payload) (*ai.Reply, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if strings.Contains(payload.User, "Prose") {
		return &ai.Reply{Text: "Here is what I changed."}, nil
	}
	return &ai.Reply{Text: "Name,Age\nSara,30\n"}, nil
}

func writeSheet(t *testing.T, path string, first string) {
	t.Helper()
	tbl, err := table.FromRecords([]string{"Name", "Age"}, [][]string{{first, "30"}, {"Ali", ""}})
	require.NoError(t, err)
	require.NoError(t, xlsx.WriteFile(tbl, path))
}

func TestRefineFileRecovered(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "people.xlsx")
	writeSheet(t, src, "Sara")

	fr, err := newRefiner(&contentProvider{}).RefineFile(context.Background(), src, "drop missing", "")
	require.NoError(t, err)
	assert.Equal(t, "recovered", fr.Status())
	assert.Equal(t, filepath.Join(dir, "refined", "people"+TableSuffix), fr.Output)

	got, err := xlsx.LoadFile(fr.Output, xlsx.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Age"}, {"Sara", "30"}}, got.Records())
}

func TestRefineFileUnrecoveredKeepsReply(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.xlsx")
	writeSheet(t, src, "Prose")
	out := filepath.Join(dir, "out")

	fr, err := newRefiner(&contentProvider{}).RefineFile(context.Background(), src, "summarise", out)
	require.NoError(t, err)
	assert.Equal(t, "unrecovered", fr.Status())
	assert.Equal(t, filepath.Join(out, "notes"+ReplySuffix), fr.Output)

	data, err := os.ReadFile(fr.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Here is what I changed.")
	assert.Contains(t, string(data), "no data rows")
}

func TestRefineFileLoadError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("not a workbook"), 0644))

	p := &contentProvider{}
	fr, err := newRefiner(p).RefineFile(context.Background(), src, "sort", "")
	var le *xlsx.LoadError
	assert.ErrorAs(t, err, &le)
	assert.Equal(t, "error", fr.Status())
	assert.Equal(t, 0, p.calls)
	assert.NoDirExists(t, filepath.Join(dir, "refined"))
}

func TestRefineFilesIndependent(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.xlsx")
	prose := filepath.Join(dir, "b.xlsx")
	broken := filepath.Join(dir, "c.xlsx")
	writeSheet(t, good, "Sara")
	writeSheet(t, prose, "Prose")
	require.NoError(t, os.WriteFile(broken, []byte("junk"), 0644))

	p := &contentProvider{}
	var mu sync.Mutex
	var seen []string
	results := newRefiner(p).RefineFiles(context.Background(), []string{good, prose, broken}, "tidy", filepath.Join(dir, "out"), 2,
		func(fr *FileResult) {
			mu.Lock()
			seen = append(seen, fr.Source)
			mu.Unlock()
		})

	require.Len(t, results, 3)
	assert.Equal(t, good, results[0].Source)
	assert.Equal(t, "recovered", results[0].Status())
	assert.Equal(t, "unrecovered", results[1].Status())
	assert.Equal(t, "error", results[2].Status())
	assert.Error(t, results[2].Err)
	assert.ElementsMatch(t, []string{good, prose, broken}, seen)
	assert.Equal(t, 2, p.calls)
}

func TestRefineFilesDistinctOutputs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "report.xlsx")
	b := filepath.Join(dir, "b", "report.xlsx")
	taken := filepath.Join(dir, "a", "report-2.xlsx")
	for _, p := range []string{a, b, taken} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		writeSheet(t, p, "Sara")
	}
	out := filepath.Join(dir, "out")

	p := &contentProvider{}
	results := newRefiner(p).RefineFiles(context.Background(), []string{a, b, taken, a}, "tidy", out, 2, nil)

	require.Len(t, results, 4)
	assert.Equal(t, filepath.Join(out, "report"+TableSuffix), results[0].Output)
	assert.Equal(t, filepath.Join(out, "report-3"+TableSuffix), results[1].Output)
	assert.Equal(t, filepath.Join(out, "report-2"+TableSuffix), results[2].Output)
	for _, fr := range results[:3] {
		assert.Equal(t, "recovered", fr.Status())
		assert.FileExists(t, fr.Output)
	}

	assert.Equal(t, "error", results[3].Status())
	assert.ErrorIs(t, results[3].Err, ErrDuplicateInput)
	assert.Empty(t, results[3].Output)
	assert.Equal(t, 3, p.calls)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRefineFilesDefaultDirsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "report.xlsx")
	b := filepath.Join(dir, "b", "report.xlsx")
	for _, p := range []string{a, b} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		writeSheet(t, p, "Sara")
	}

	results := newRefiner(&contentProvider{}).RefineFiles(context.Background(), []string{a, b}, "tidy", "", 1, nil)
	assert.Equal(t, filepath.Join(dir, "a", "refined", "report"+TableSuffix), results[0].Output)
	assert.Equal(t, filepath.Join(dir, "b", "refined", "report"+TableSuffix), results[1].Output)
}
