package downloads

import (
	"testing"

	"github.com/stretchr/testify/require"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

func TestOutputPathFixer(t *testing.T) {
	fix := OutputPathFixer("/data/videos", "%(id)s.%(ext)s")

	opts := ytdlp.Options{}
	fix(opts)
	require.Equal(t, "/data/videos/%(id)s.%(ext)s", opts[ytdlp.OptOutputTemplate])

	opts = ytdlp.Options{ytdlp.OptOutputTemplate: "music/%(title)s.%(ext)s"}
	fix(opts)
	require.Equal(t, "/data/videos/music/%(title)s.%(ext)s", opts[ytdlp.OptOutputTemplate])

	opts = ytdlp.Options{ytdlp.OptOutputTemplate: map[string]any{"default": "x/%(id)s"}}
	fix(opts)
	require.Equal(t, "/data/videos/x/%(id)s", opts[ytdlp.OptOutputTemplate])

	opts = ytdlp.Options{ytdlp.OptOutputTemplate: "/abs/%(id)s"}
	fix(opts)
	require.Equal(t, "/abs/%(id)s", opts[ytdlp.OptOutputTemplate])
}

func TestOutputPathFixer_NoBasePath(t *testing.T) {
	opts := ytdlp.Options{}
	OutputPathFixer("", "%(id)s.%(ext)s")(opts)
	require.Equal(t, "%(id)s.%(ext)s", opts[ytdlp.OptOutputTemplate])
}

func TestArchiveFixer(t *testing.T) {
	opts := ytdlp.Options{}
	ArchiveFixer("shared")(opts)
	require.Equal(t, "shared", opts.DownloadArchive())

	opts = ytdlp.Options{ytdlp.OptDownloadArchive: "mine"}
	ArchiveFixer("shared")(opts)
	require.Equal(t, "mine", opts.DownloadArchive())

	opts = ytdlp.Options{}
	ArchiveFixer("")(opts)
	require.False(t, opts.Has(ytdlp.OptDownloadArchive))
}
