package ytdlp

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testArchive(t *testing.T, a Archive) {
	t.Helper()
	ctx := context.Background()

	ok, err := a.Exists(ctx, "main", "youtube abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Add(ctx, "main", "youtube abc"))
	require.NoError(t, a.Add(ctx, "main", "youtube abc"))
	require.NoError(t, a.Add(ctx, "main", "vimeo 1"))

	ok, err = a.Exists(ctx, "main", "youtube abc")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = a.Exists(ctx, "other", "youtube abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Remove(ctx, "main", "youtube abc"))
	ok, err = a.Exists(ctx, "main", "youtube abc")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = a.Exists(ctx, "main", "vimeo 1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Remove(ctx, "missing", "x"))

	l, ok := a.(Lister)
	require.True(t, ok)
	entries, err := l.List(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, []string{"vimeo 1"}, entries)
	entries, err = l.List(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSetArchive(t *testing.T) {
	testArchive(t, NewSetArchive())
}

func TestFileArchive(t *testing.T) {
	dir := t.TempDir()
	a := NewFileArchive(dir)
	testArchive(t, a)

	b, err := os.ReadFile(filepath.Join(dir, "main"))
	require.NoError(t, err)
	require.Equal(t, "vimeo 1\n", string(b))
}

func TestFileArchive_Path(t *testing.T) {
	a := NewFileArchive("/var/archives")
	require.Equal(t, "/var/archives/default_archive", a.Path("default_archive"))
	require.Equal(t, "/var/archives/x", a.Path("../../x"))
	require.Equal(t, "/srv/archive.txt", a.Path("/srv/archive.txt"))
}

func TestArchivalClient_SkipsArchivedAndRecordsNew(t *testing.T) {
	ctx := context.Background()
	archive := NewSetArchive()
	require.NoError(t, archive.Add(ctx, "arch", "youtube old"))

	var downloaded []string
	c := New()
	c.execFn = func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
		url := args[len(args)-1]
		if strings.Contains(strings.Join(args, " "), "--dump-single-json") {
			id := url[strings.LastIndex(url, "/")+1:]
			_, _ = io.WriteString(stdout, `{"id":"`+id+`","extractor_key":"Youtube"}`)
			return nil
		}
		downloaded = append(downloaded, url)
		return nil
	}

	ac := &ArchivalClient{Client: c, Archive: archive, Name: "arch"}
	require.NoError(t, ac.Download(ctx, []string{"https://y/old", "https://y/new"}))
	require.Equal(t, []string{"https://y/new"}, downloaded)

	ok, err := archive.Exists(ctx, "arch", "youtube new")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestArchivalClient_FailedDownloadNotRecorded(t *testing.T) {
	ctx := context.Background()
	archive := NewSetArchive()

	c := New()
	c.execFn = func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
		if strings.Contains(strings.Join(args, " "), "--dump-single-json") {
			_, _ = io.WriteString(stdout, `{"id":"v","extractor":"youtube"}`)
			return nil
		}
		return errors.New("exit status 1")
	}

	ac := &ArchivalClient{Client: c, Archive: archive, Name: "arch"}
	require.Error(t, ac.Download(ctx, []string{"https://y/v"}))

	ok, err := archive.Exists(ctx, "arch", "youtube v")
	require.NoError(t, err)
	require.False(t, ok)
}
