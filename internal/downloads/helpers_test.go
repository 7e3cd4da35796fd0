package downloads

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"thirdcoast.systems/fetchd/internal/queue"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

const testVideoID = "ggLajT7aMMk"

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

// seedDownload stores a video and a download with attempts in the given statuses.
func seedDownload(t *testing.T, s *MemoryStore, statuses ...Status) *Download {
	t.Helper()
	ctx := context.Background()

	v := &Video{VideoID: testVideoID, Name: "Test video", WebpageURL: "https://www.youtube.com/watch?v=" + testVideoID, Extractor: "youtube"}
	require.NoError(t, s.UpsertVideo(ctx, v, nil))
	d, err := s.CreateDownload(ctx, v, json.RawMessage(`{}`))
	require.NoError(t, err)

	for _, st := range statuses {
		require.NoError(t, s.AddAttempt(ctx, &Attempt{DownloadID: d.ID, Status: st}))
	}
	d, err = s.GetDownload(ctx, d.DownloadID)
	require.NoError(t, err)
	return d
}

func latest(t *testing.T, s *MemoryStore, d *Download) *Attempt {
	t.Helper()
	fresh, err := s.GetDownload(context.Background(), d.DownloadID)
	require.NoError(t, err)
	a := fresh.LatestAttempt()
	require.NotNil(t, a)
	return a
}

// fakeFactory hands out downloaders that run fn with the finalised options.
type fakeFactory struct {
	fn     func(ctx context.Context, opts ytdlp.Options, urls []string) error
	err    error
	calls  int
	opts   ytdlp.Options
	closed int
}

func (f *fakeFactory) New(_ context.Context, opts ytdlp.Options) (ytdlp.Downloader, error) {
	f.calls++
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &fakeDownloader{f: f, opts: opts}, nil
}

type fakeDownloader struct {
	f    *fakeFactory
	opts ytdlp.Options
}

func (d *fakeDownloader) Download(ctx context.Context, urls []string) error {
	if d.f.fn == nil {
		return nil
	}
	return d.f.fn(ctx, d.opts, urls)
}

func (d *fakeDownloader) Close() error {
	d.f.closed++
	return nil
}

// emit sends ev through every progress hook in opts.
func emit(ctx context.Context, opts ytdlp.Options, ev ProgressEvent) error {
	for _, h := range opts.ProgressHooks() {
		if err := h.Dispatch(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

type enqueued struct {
	ID   uuid.UUID
	Name string
	Args any
}

type revocation struct {
	ID   uuid.UUID
	Opts queue.RevokeOptions
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []enqueued
	revoked  []revocation
	running  map[uuid.UUID]bool
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, name string, args any) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return uuid.Nil, q.err
	}
	id := uuid.New()
	q.enqueued = append(q.enqueued, enqueued{ID: id, Name: name, Args: args})
	return id, nil
}

func (q *fakeQueue) Revoke(_ context.Context, id uuid.UUID, opts queue.RevokeOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.revoked = append(q.revoked, revocation{ID: id, Opts: opts})
	return nil
}

func (q *fakeQueue) Running(_ context.Context, id uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running[id], nil
}

type fakeExtractor struct {
	infos map[string]*ytdlp.Info
	err   error
	urls  []string
}

func (f *fakeExtractor) ExtractInfo(_ context.Context, url string, _ ...string) (*ytdlp.Info, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.infos[url]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return info, nil
}

// countingStore records SaveAttempt calls on top of a MemoryStore.
type countingStore struct {
	*MemoryStore
	mu    sync.Mutex
	saves []Attempt
}

func (s *countingStore) SaveAttempt(ctx context.Context, a *Attempt) error {
	s.mu.Lock()
	s.saves = append(s.saves, *a)
	s.mu.Unlock()
	return s.MemoryStore.SaveAttempt(ctx, a)
}

func (s *countingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}
