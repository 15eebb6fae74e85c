package digest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/iabetor/rssdigest/internal/rss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	calls  int
	prompt string
	text   string
	reply  string
	err    error
}

func (s *stubSummarizer) Summarize(_ context.Context, prompt, text string) (string, error) {
	s.calls++
	s.prompt = prompt
	s.text = text
	return s.reply, s.err
}

func strPtr(s string) *string { return &s }

func TestBuildText(t *testing.T) {
	entries := []rss.Entry{
		{Title: "First", Summary: strPtr("About first"), Link: "https://a/1"},
		{Title: "Second", Link: "https://b/2"},
	}

	want := "Title: First\nSummary: About first\nLink: https://a/1\n" +
		"\n" +
		"Title: Second\nLink: https://b/2\n"
	assert.Equal(t, want, BuildText(entries))
	assert.Empty(t, BuildText(nil))
}

func TestDispatchSingleCall(t *testing.T) {
	stub := &stubSummarizer{reply: "digest"}
	d := NewDispatcher(stub, "be brief")

	got, err := d.Dispatch(context.Background(), []rss.Entry{
		{Title: "A", Link: "l1"},
		{Title: "B", Link: "l2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "digest", got)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "be brief", stub.prompt)
	assert.Contains(t, stub.text, "Title: A")
	assert.Contains(t, stub.text, "Link: l2")
}

func TestDispatchFailureNotRetried(t *testing.T) {
	boom := errors.New("503 service unavailable")
	stub := &stubSummarizer{err: boom}
	d := NewDispatcher(stub, "p")

	_, err := d.Dispatch(context.Background(), []rss.Entry{{Title: "A", Link: "l"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, stub.calls)
}

func TestDispatchNoEntries(t *testing.T) {
	stub := &stubSummarizer{}
	_, err := NewDispatcher(stub, "p").Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoEntries)
	assert.Zero(t, stub.calls)
}

func TestLoadPrompt(t *testing.T) {
	p, err := LoadPrompt("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompt(), p)
	assert.NotEmpty(t, p)

	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n  Summarize in French.\n"), 0644))
	p, err = LoadPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "Summarize in French.", p)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	_, err = LoadPrompt(empty)
	assert.Error(t, err)

	_, err = LoadPrompt(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
