package downloads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	require.Equal(t, StatusPending, ParseStatus("pending"))
	require.Equal(t, StatusDownloading, ParseStatus("DOWNLOADING"))
	require.Equal(t, StatusCanceled, ParseStatus("Canceled"))
	require.Equal(t, StatusUnknown, ParseStatus("paused"))
	require.Equal(t, StatusUnknown, ParseStatus(""))

	require.True(t, Status("error").Is(StatusError))
	require.True(t, Status("finished").Terminal())
	require.False(t, StatusDownloading.Terminal())
}

func TestProgress_MergeKeepsAbsentFields(t *testing.T) {
	a := &Attempt{Status: StatusPending}

	require.NoError(t, a.SetDownloading(ProgressEvent{Status: "downloading", DownloadedBytes: i64(100)}))
	require.NoError(t, a.SetDownloading(ProgressEvent{Status: "downloading", ETA: i64(5)}))

	require.Equal(t, StatusDownloading, a.Status)
	require.Equal(t, int64(100), *a.DownloadedBytes)
	require.Equal(t, int64(5), *a.ETA)
	require.Nil(t, a.TotalBytes)
	require.Nil(t, a.Speed)
}

func TestProgress_MergeOverwritesPresentFields(t *testing.T) {
	var p Progress
	p.Merge(ProgressEvent{
		DownloadedBytes: i64(1),
		TotalBytes:      i64(10),
		ETA:             i64(9),
		Elapsed:         f64(0.5),
		Speed:           f64(2.5),
		Filename:        str("/dl/a.mp4"),
		TmpFilename:     str("/dl/a.mp4.part"),
	})
	p.Merge(ProgressEvent{DownloadedBytes: i64(10), ETA: i64(0)})

	require.Equal(t, int64(10), *p.DownloadedBytes)
	require.Equal(t, int64(10), *p.TotalBytes)
	require.Equal(t, int64(0), *p.ETA)
	require.Equal(t, 0.5, *p.Elapsed)
	require.Equal(t, 2.5, *p.Speed)
	require.Equal(t, "/dl/a.mp4", *p.Filename)
	require.Equal(t, "/dl/a.mp4.part", *p.TmpFilename)
}

func TestAttempt_TerminalStatesAreFinal(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	for _, st := range []Status{StatusFinished, StatusError, StatusCanceled} {
		a := &Attempt{Status: st, Message: "kept"}

		require.ErrorIs(t, a.SetDownloading(ProgressEvent{DownloadedBytes: i64(1)}), ErrTerminal, st)
		require.ErrorIs(t, a.SetFinished(when), ErrTerminal, st)
		require.ErrorIs(t, a.SetError("boom", when), ErrTerminal, st)
		require.ErrorIs(t, a.SetCanceled(when), ErrTerminal, st)

		require.Equal(t, st, a.Status)
		require.Equal(t, "kept", a.Message)
		require.Nil(t, a.DownloadedBytes)
	}
}

func TestAttempt_Transitions(t *testing.T) {
	when := time.Date(2024, 5, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	a := &Attempt{Status: StatusPending}
	require.NoError(t, a.SetFinished(when))
	require.Equal(t, StatusFinished, a.Status)
	require.Equal(t, "Finished at 2024-05-01T12:00:00Z", a.Message)

	a = &Attempt{Status: StatusDownloading}
	require.NoError(t, a.SetError("network down", when))
	require.True(t, a.IsFailed())
	require.Equal(t, "Failed at 2024-05-01T12:00:00Z: network down", a.Message)

	a = &Attempt{Status: StatusPending}
	require.NoError(t, a.SetCanceled(when))
	require.True(t, a.IsCanceled())
	require.True(t, a.IsTerminal())
	require.Equal(t, "Canceled at 2024-05-01T12:00:00Z", a.Message)
}
