package downloads

import (
	"context"
	"log/slog"
	"sync"

	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

// DefaultArchiveName is used when no download archive is configured.
const DefaultArchiveName = "default_archive"

// ExtractorFactory produces a configured extractor client from finalised options.
type ExtractorFactory interface {
	New(ctx context.Context, opts ytdlp.Options) (ytdlp.Downloader, error)
}

// OptionsFixer normalises the option map in place.
type OptionsFixer func(opts ytdlp.Options)

// OnError reacts to a failed run. A returned error aborts the remaining callbacks.
type OnError func(ctx context.Context, t *Task, err error) error

// Task runs one attempt's download. It never writes state; hooks and OnError
// callbacks do.
type Task struct {
	URL string

	raw     ytdlp.Options
	factory ExtractorFactory
	fixers  []OptionsFixer
	onError []OnError
	logger  *slog.Logger

	optsOnce sync.Once
	opts     ytdlp.Options

	clientOnce sync.Once
	client     ytdlp.Downloader
	clientErr  error

	err error
}

func NewTask(url string, opts ytdlp.Options, factory ExtractorFactory, fixers []OptionsFixer, onError []OnError, logger *slog.Logger) *Task {
	if opts == nil {
		opts = ytdlp.Options{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{
		URL:     url,
		raw:     opts,
		factory: factory,
		fixers:  fixers,
		onError: onError,
		logger:  logger.With("url", url),
	}
}

// Options applies the registered fixers in order, then the built-in one. Computed once.
func (t *Task) Options() ytdlp.Options {
	t.optsOnce.Do(func() {
		for _, fix := range t.fixers {
			fix(t.raw)
		}
		builtinFixer(t.logger)(t.raw)
		t.opts = t.raw
	})
	return t.opts
}

func builtinFixer(logger *slog.Logger) OptionsFixer {
	return func(opts ytdlp.Options) {
		opts[ytdlp.OptLogger] = logger
		opts[ytdlp.OptNoPlaylist] = true
		opts[ytdlp.OptProgressWithNewline] = true
		if opts.DownloadArchive() == "" {
			opts[ytdlp.OptDownloadArchive] = DefaultArchiveName
		}
	}
}

// Client builds the extractor from Options once and caches it.
func (t *Task) Client(ctx context.Context) (ytdlp.Downloader, error) {
	t.clientOnce.Do(func() {
		t.client, t.clientErr = t.factory.New(ctx, t.Options())
	})
	return t.client, t.clientErr
}

// Run downloads URL. Failures are logged and handed to the OnError callbacks;
// Run only returns an error when a callback fails. Err reports the download failure.
func (t *Task) Run(ctx context.Context) error {
	client, err := t.Client(ctx)
	if err != nil {
		return t.handle(ctx, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			t.logger.Warn("failed to close extractor client", "error", err)
		}
	}()

	if err := client.Download(ctx, []string{t.URL}); err != nil {
		return t.handle(ctx, err)
	}
	return nil
}

func (t *Task) handle(ctx context.Context, err error) error {
	t.err = err
	t.logger.Error("download failed", "error", err)
	for _, cb := range t.onError {
		if cbErr := cb(ctx, t, err); cbErr != nil {
			return cbErr
		}
	}
	return nil
}

// Err is the download error handled by the last Run, if any.
func (t *Task) Err() error {
	return t.err
}
