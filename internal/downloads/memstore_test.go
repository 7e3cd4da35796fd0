package downloads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveAttemptRefusesTerminalRows(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusCanceled)

	a := d.LatestAttempt()
	a.Status = StatusFinished
	require.ErrorIs(t, s.SaveAttempt(ctx, a), ErrTerminal)
	require.Equal(t, StatusCanceled, latest(t, s, d).Status)
}

func TestMemoryStore_BlockIsSticky(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s)

	require.NoError(t, d.Block("stop", testNow, false))
	require.NoError(t, s.SaveDownload(ctx, d))

	d.BlockFurther = false
	d.BlockReason = nil
	require.NoError(t, s.SaveDownload(ctx, d))
	require.True(t, d.BlockFurther)

	fresh, err := s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.True(t, fresh.BlockFurther)
	require.NotNil(t, fresh.BlockReason)
}

func TestMemoryStore_SnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusPending)

	d.LatestAttempt().Status = StatusFinished
	require.Equal(t, StatusPending, latest(t, s, d).Status)

	_, err := s.GetDownloadByVideo(ctx, "missing0000")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Lock(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	unlock, err := s.Lock(ctx, "video:x")
	require.NoError(t, err)
	_, err = s.Lock(ctx, "video:x")
	require.ErrorIs(t, err, ErrLocked)

	other, err := s.Lock(ctx, "video:y")
	require.NoError(t, err)
	other()

	unlock()
	unlock2, err := s.Lock(ctx, "video:x")
	require.NoError(t, err)
	unlock2()
}

func TestMemoryStore_CreateDownloadIsUniquePerVideo(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s)

	again, err := s.CreateDownload(ctx, &d.Video, nil)
	require.NoError(t, err)
	require.Equal(t, d.DownloadID, again.DownloadID)
}
