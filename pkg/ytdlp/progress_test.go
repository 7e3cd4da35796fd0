package ytdlp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProgressLine(t *testing.T) {
	ev, ok, err := ParseProgressLine(progressPrefix + `{"status":"downloading","downloaded_bytes":1024,"total_bytes":null,"total_bytes_estimate":4096.4,"eta":3.0,"elapsed":1.5,"speed":512.25,"filename":"a.mp4","tmpfilename":"a.mp4.part"}`)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "downloading", ev.Status)
	require.Equal(t, int64(1024), *ev.DownloadedBytes)
	require.Equal(t, int64(4096), *ev.TotalBytes)
	require.Equal(t, int64(3), *ev.ETA)
	require.Equal(t, 1.5, *ev.Elapsed)
	require.Equal(t, 512.25, *ev.Speed)
	require.Equal(t, "a.mp4.part", *ev.TmpFilename)
}

func TestParseProgressLine_AbsentFieldsStayNil(t *testing.T) {
	ev, ok, err := ParseProgressLine(progressPrefix + `{"status":"finished","filename":"a.mp4"}`)
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, ev.DownloadedBytes)
	require.Nil(t, ev.Speed)
	require.Equal(t, "a.mp4", *ev.Filename)
}

func TestParseProgressLine_OtherOutput(t *testing.T) {
	_, ok, err := ParseProgressLine("[download] Destination: a.mp4")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = ParseProgressLine(progressPrefix + "{not json")
	require.True(t, ok)
	require.Error(t, err)
}
