package downloads

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/fetchd/internal/queue"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

func newDispatcher(s Store, f ExtractorFactory) *Dispatcher {
	return &Dispatcher{
		Store:   s,
		Factory: f,
		Logger:  discardLogger(),
		Now:     fixedNow,
	}
}

func finishingFactory() *fakeFactory {
	return &fakeFactory{fn: func(ctx context.Context, opts ytdlp.Options, _ []string) error {
		if err := emit(ctx, opts, ProgressEvent{Status: "downloading", DownloadedBytes: i64(50), TotalBytes: i64(100)}); err != nil {
			return err
		}
		return emit(ctx, opts, ProgressEvent{Status: "finished", Filename: str("/dl/a.mp4")})
	}}
}

func failingFactory(err error) *fakeFactory {
	return &fakeFactory{fn: func(ctx context.Context, opts ytdlp.Options, _ []string) error {
		if emitErr := emit(ctx, opts, ProgressEvent{Status: "downloading", DownloadedBytes: i64(1)}); emitErr != nil {
			return emitErr
		}
		return err
	}}
}

func TestDispatcher_ReusesPendingAttempt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusPending)
	f := finishingFactory()

	jobID := uuid.New()
	require.NoError(t, newDispatcher(s, f).ProcessVideoDownload(ctx, d.DownloadID, jobID))

	fresh, err := s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.Len(t, fresh.Attempts, 1)
	a := fresh.LatestAttempt()
	require.Equal(t, StatusFinished, a.Status)
	require.Equal(t, jobID, a.TaskID)
	require.Equal(t, int64(50), *a.DownloadedBytes)
	require.NotNil(t, a.Filename)
	require.Equal(t, "/dl/a.mp4", *a.Filename)
	require.Equal(t, 1, f.closed)
}

func TestDispatcher_StartsNewAttemptAfterFailure(t *testing.T) {
	ctx := context.Background()
	for _, prev := range []Status{StatusError, StatusCanceled} {
		s := NewMemoryStore()
		d := seedDownload(t, s, prev)

		require.NoError(t, newDispatcher(s, finishingFactory()).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))

		fresh, err := s.GetDownload(ctx, d.DownloadID)
		require.NoError(t, err)
		require.Len(t, fresh.Attempts, 2, prev)
		require.Equal(t, prev, fresh.Attempts[0].Status)
		require.Equal(t, StatusFinished, fresh.Attempts[1].Status)
	}
}

func TestDispatcher_StartsFirstAttempt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s)

	require.NoError(t, newDispatcher(s, finishingFactory()).ProcessVideoDownload(ctx, d.DownloadID, uuid.Nil))
	fresh, err := s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.Len(t, fresh.Attempts, 1)
	require.Equal(t, StatusFinished, fresh.LatestAttempt().Status)
}

func TestDispatcher_FinishedOrBlockedDoesNothing(t *testing.T) {
	ctx := context.Background()

	s := NewMemoryStore()
	d := seedDownload(t, s, StatusFinished)
	f := finishingFactory()
	require.NoError(t, newDispatcher(s, f).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))
	require.Equal(t, 0, f.calls)
	fresh, err := s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.Len(t, fresh.Attempts, 1)

	s = NewMemoryStore()
	d = seedDownload(t, s, StatusError)
	require.NoError(t, d.Block("manual", testNow, false))
	require.NoError(t, s.SaveDownload(ctx, d))
	f = finishingFactory()
	require.NoError(t, newDispatcher(s, f).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))
	require.Equal(t, 0, f.calls)
	fresh, err = s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.Len(t, fresh.Attempts, 1)
}

func TestDispatcher_UnknownDownload(t *testing.T) {
	s := NewMemoryStore()
	f := finishingFactory()
	require.NoError(t, newDispatcher(s, f).ProcessVideoDownload(context.Background(), uuid.New(), uuid.New()))
	require.Equal(t, 0, f.calls)
}

func TestDispatcher_LockedDownloadIsSkipped(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusPending)

	unlock, err := s.Lock(ctx, downloadLockKey(d.DownloadID))
	require.NoError(t, err)
	defer unlock()

	f := finishingFactory()
	require.NoError(t, newDispatcher(s, f).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))
	require.Equal(t, 0, f.calls)
	require.Equal(t, StatusPending, latest(t, s, d).Status)
}

func TestDispatcher_FailureRecordsError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusPending)

	exec := &ytdlp.ExecError{Cmd: "yt-dlp", Stderr: "ERROR: Private video"}
	require.NoError(t, newDispatcher(s, failingFactory(exec)).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))

	a := latest(t, s, d)
	require.Equal(t, StatusError, a.Status)
	require.Equal(t, "Failed at 2024-05-01T12:00:00Z: ytdlp.ExecError: ytdlp: command failed: ERROR: Private video", a.Message)
	require.Equal(t, int64(1), *a.DownloadedBytes, "progress before the failure is kept")

	fresh, err := s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.False(t, fresh.BlockFurther)
}

func TestDispatcher_ThirdFailureBlocks(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusError, StatusError)

	require.NoError(t, newDispatcher(s, failingFactory(errors.New("boom"))).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))

	fresh, err := s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.Len(t, fresh.Attempts, 3)
	require.Equal(t, 3, fresh.CountAttempts(StatusError))
	require.True(t, fresh.BlockFurther)
	require.Contains(t, *fresh.BlockReason, BlockReasonTooManyFailures)

	// Blocked downloads are not attempted again.
	f := finishingFactory()
	require.NoError(t, newDispatcher(s, f).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))
	require.Equal(t, 0, f.calls)
}

func TestDispatcher_CustomThreshold(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s)

	disp := newDispatcher(s, failingFactory(errors.New("boom")))
	disp.FailureThreshold = 1
	require.NoError(t, disp.ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))

	fresh, err := s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.True(t, fresh.BlockFurther)
}

func TestDispatcher_CancelDuringDownloadWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusPending)

	f := &fakeFactory{fn: func(ctx context.Context, opts ytdlp.Options, _ []string) error {
		if err := emit(ctx, opts, ProgressEvent{Status: "downloading", DownloadedBytes: i64(10)}); err != nil {
			return err
		}
		// The API cancels while yt-dlp is running; the process is then killed.
		a := latest(t, s, d)
		require.NoError(t, a.SetCanceled(testNow))
		require.NoError(t, s.SaveAttempt(ctx, a))
		return &ytdlp.ExecError{Cmd: "yt-dlp", ExitCode: -1, Cause: context.Canceled}
	}}

	require.NoError(t, newDispatcher(s, f).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))

	a := latest(t, s, d)
	require.Equal(t, StatusCanceled, a.Status)
	require.Equal(t, "Canceled at 2024-05-01T12:00:00Z", a.Message)

	fresh, err := s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.False(t, fresh.BlockFurther)
}

func interruptingFactory(cancel func()) *fakeFactory {
	return &fakeFactory{fn: func(ctx context.Context, opts ytdlp.Options, _ []string) error {
		if err := emit(ctx, opts, ProgressEvent{Status: "downloading", DownloadedBytes: i64(10)}); err != nil {
			return err
		}
		cancel()
		return &ytdlp.ExecError{Cmd: "yt-dlp", ExitCode: -1, Cause: ctx.Err()}
	}}
}

func TestDispatcher_ShutdownLeavesAttemptResumable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusError, StatusError)

	err := newDispatcher(s, interruptingFactory(cancel)).ProcessVideoDownload(ctx, d.DownloadID, uuid.New())
	require.ErrorIs(t, err, context.Canceled)

	fresh, err := s.GetDownload(context.Background(), d.DownloadID)
	require.NoError(t, err)
	require.Len(t, fresh.Attempts, 3)
	require.Equal(t, 2, fresh.CountAttempts(StatusError))
	require.Equal(t, StatusDownloading, fresh.LatestAttempt().Status)
	require.False(t, fresh.BlockFurther)

	// The requeued job picks the same attempt up again.
	require.NoError(t, newDispatcher(s, finishingFactory()).ProcessVideoDownload(context.Background(), d.DownloadID, uuid.New()))
	fresh, err = s.GetDownload(context.Background(), d.DownloadID)
	require.NoError(t, err)
	require.Len(t, fresh.Attempts, 3)
	require.Equal(t, StatusFinished, fresh.LatestAttempt().Status)
}

func TestDispatcher_RevokeStillCountsAsFailure(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusError, StatusError)

	revoke := func() { cancel(&queue.RevokedError{JobID: uuid.New(), Sig: os.Interrupt}) }
	require.NoError(t, newDispatcher(s, interruptingFactory(revoke)).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))

	fresh, err := s.GetDownload(context.Background(), d.DownloadID)
	require.NoError(t, err)
	require.Equal(t, 3, fresh.CountAttempts(StatusError))
	require.True(t, fresh.BlockFurther)
}

func TestDispatcher_CleanRunWithoutFinishedEvent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusPending)

	// Archive hit: yt-dlp exits 0 without reporting progress.
	f := &fakeFactory{}
	require.NoError(t, newDispatcher(s, f).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))
	require.Equal(t, StatusFinished, latest(t, s, d).Status)
}

func TestDispatcher_ResumesStaleDownloadingAttempt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusDownloading)

	require.NoError(t, newDispatcher(s, finishingFactory()).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))
	fresh, err := s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	require.Len(t, fresh.Attempts, 1)
	require.Equal(t, StatusFinished, fresh.LatestAttempt().Status)
}

func TestDispatcher_PassesFinalOptions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	m := testManager(t)

	v := &Video{VideoID: testVideoID, Extractor: "youtube"}
	require.NoError(t, s.UpsertVideo(ctx, v, nil))
	raw, err := (&RequestOptions{Format: "best", Password: "hunter2"}).Seal(m)
	require.NoError(t, err)
	d, err := s.CreateDownload(ctx, v, raw)
	require.NoError(t, err)

	var gotURLs []string
	f := &fakeFactory{fn: func(_ context.Context, _ ytdlp.Options, urls []string) error {
		gotURLs = urls
		return nil
	}}
	disp := newDispatcher(s, f)
	disp.Opener = m
	disp.Fixers = []OptionsFixer{OutputPathFixer("/data", "%(id)s.%(ext)s"), ArchiveFixer("shared")}
	require.NoError(t, disp.ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))

	require.Equal(t, []string{"https://www.youtube.com/watch?v=" + testVideoID}, gotURLs)
	require.Equal(t, "best", f.opts.String("format"))
	require.Equal(t, "hunter2", f.opts.String("password"))
	require.Equal(t, "/data/%(id)s.%(ext)s", f.opts.String(ytdlp.OptOutputTemplate))
	require.Equal(t, "shared", f.opts.DownloadArchive())
	require.Equal(t, true, f.opts[ytdlp.OptNoPlaylist])
	require.Len(t, f.opts.ProgressHooks(), 1)
}

func TestDispatcher_UndecodableOptionsRecordError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v := &Video{VideoID: testVideoID}
	require.NoError(t, s.UpsertVideo(ctx, v, nil))
	raw, err := (&RequestOptions{Password: "x"}).Seal(testManager(t))
	require.NoError(t, err)
	d, err := s.CreateDownload(ctx, v, raw)
	require.NoError(t, err)

	f := finishingFactory()
	require.NoError(t, newDispatcher(s, f).ProcessVideoDownload(ctx, d.DownloadID, uuid.New()))
	require.Equal(t, 0, f.calls)
	a := latest(t, s, d)
	require.Equal(t, StatusError, a.Status)
	require.Contains(t, a.Message, "no key is configured")
}

func TestDispatcher_CleanupAttempt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusDownloading)

	final := filepath.Join(dir, "a.mp4")
	tmp := filepath.Join(dir, "a.f137.mp4")
	for _, p := range []string{final + ".part", tmp + ".part", tmp + ".ytdl"} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	keep := filepath.Join(dir, "other.mp4")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	a := d.LatestAttempt()
	a.Filename = &final
	a.TmpFilename = &tmp
	require.NoError(t, a.SetCanceled(testNow))
	require.NoError(t, s.SaveAttempt(ctx, a))

	require.NoError(t, newDispatcher(s, nil).CleanupAttempt(ctx, a.ID))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "other.mp4", entries[0].Name())

	// Unknown attempts are ignored.
	require.NoError(t, newDispatcher(s, nil).CleanupAttempt(ctx, 9999))
}

func TestDispatcher_Handlers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d := seedDownload(t, s, StatusPending)
	h := newDispatcher(s, finishingFactory()).Handlers()

	require.Contains(t, h, TaskProcessVideoDownload)
	require.Contains(t, h, TaskCleanupAttempt)

	args, err := json.Marshal(ProcessArgs{DownloadID: d.DownloadID})
	require.NoError(t, err)
	jobID := uuid.New()
	require.NoError(t, h[TaskProcessVideoDownload](ctx, &queue.Job{ID: jobID, Name: TaskProcessVideoDownload, Args: args}))

	a := latest(t, s, d)
	require.Equal(t, StatusFinished, a.Status)
	require.Equal(t, jobID, a.TaskID)

	// Malformed arguments are logged, not retried.
	require.NoError(t, h[TaskCleanupAttempt](ctx, &queue.Job{Name: TaskCleanupAttempt, Args: []byte(`"nope"`)}))
}
