package downloads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/fetchd/internal/queue"
	"thirdcoast.systems/fetchd/internal/videoid"
)

// Queue task names.
const (
	TaskProcessVideoDownload = "process_video_download"
	TaskCleanupAttempt       = "cleanup_attempt"
)

// ProcessArgs are the arguments of a process_video_download job.
type ProcessArgs struct {
	DownloadID uuid.UUID `json:"download_id"`
}

// CleanupArgs are the arguments of a cleanup_attempt job.
type CleanupArgs struct {
	AttemptID int64 `json:"attempt_id"`
}

// Dispatcher advances a download by one attempt. It is constructed once per
// worker process and registered on the queue through Handlers.
type Dispatcher struct {
	Store   Store
	Factory ExtractorFactory
	// Opener decrypts sealed credentials in stored options.
	Opener Opener
	// Fixers run before the built-in fixer of every task.
	Fixers                []OptionsFixer
	FailureThreshold      int
	ProgressFlushInterval time.Duration
	Logger                *slog.Logger
	Now                   func() time.Time
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// Handlers maps queue task names to this dispatcher's entry points.
func (d *Dispatcher) Handlers() map[string]queue.HandlerFunc {
	return map[string]queue.HandlerFunc{
		TaskProcessVideoDownload: func(ctx context.Context, job *queue.Job) error {
			var args ProcessArgs
			if err := job.Decode(&args); err != nil {
				d.logger().Error("invalid job arguments", "job_id", job.ID, "error", err)
				return nil
			}
			return d.ProcessVideoDownload(ctx, args.DownloadID, job.ID)
		},
		TaskCleanupAttempt: func(ctx context.Context, job *queue.Job) error {
			var args CleanupArgs
			if err := job.Decode(&args); err != nil {
				d.logger().Error("invalid job arguments", "job_id", job.ID, "error", err)
				return nil
			}
			return d.CleanupAttempt(ctx, args.AttemptID)
		},
	}
}

// ProcessVideoDownload runs one attempt of the download. Lookup, decode and
// extractor failures are recorded or logged, never returned; store failures
// and interruptions by shutdown are.
func (d *Dispatcher) ProcessVideoDownload(ctx context.Context, downloadID uuid.UUID, jobID uuid.UUID) error {
	log := d.logger().With("download_id", downloadID, "job_id", jobID)

	unlock, err := d.Store.Lock(ctx, downloadLockKey(downloadID))
	if errors.Is(err, ErrLocked) {
		log.Warn("download already being processed")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock download: %w", err)
	}
	defer unlock()

	dl, err := d.Store.GetDownload(ctx, downloadID)
	if errors.Is(err, ErrNotFound) {
		log.Error("download not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get download: %w", err)
	}

	if dl.BlockFurther {
		log.Info("download is blocked", "reason", dl.BlockReason)
		return nil
	}

	attempt := dl.LatestAttempt()
	switch {
	case dl.CanStartNewAttempt():
		attempt = dl.StartNewAttempt()
		if err := d.Store.AddAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("add attempt: %w", err)
		}
	case attempt.IsFinished():
		log.Info("latest attempt already finished", "attempt_id", attempt.ID)
		return nil
	case attempt.IsDownloading():
		// Nobody else holds the lock, so this is left over from a dead worker.
		log.Warn("resuming stale attempt", "attempt_id", attempt.ID)
	}
	log = log.With("attempt_id", attempt.ID)

	if jobID != uuid.Nil && attempt.TaskID != jobID {
		if err := d.Store.SetAttemptTask(ctx, attempt.ID, jobID); err != nil {
			return fmt.Errorf("set attempt task: %w", err)
		}
		attempt.TaskID = jobID
	}

	recordError := RecordAttemptError(d.Store, attempt, d.now, log)

	opts, err := DecodeOptions(dl.Options, d.Opener)
	if err != nil {
		log.Error("failed to decode download options", "error", err)
		return recordError(ctx, nil, err)
	}

	hook := NewProgressHook(d.Store, log, d.now)
	hook.MinFlushInterval = d.ProgressFlushInterval
	if err := hook.Bind(attempt); err != nil {
		return err
	}
	opts.AddProgressHook(hook)

	url := dl.Video.WebpageURL
	if url == "" {
		url = videoid.WatchURL(dl.Video.VideoID)
	}

	task := NewTask(url, opts, d.Factory, d.Fixers, []OnError{
		UnlessInterrupted(recordError),
		UnlessInterrupted(BlockAfterFailures(d.Store, dl, d.FailureThreshold, d.now, log)),
	}, log)

	log.Info("starting download")
	if err := task.Run(ctx); err != nil {
		log.Error("error callback failed", "error", err)
	}

	if err := hook.Flush(ctx); err != nil {
		log.Warn("failed to flush progress", "error", err)
	}

	// The attempt stays live; the requeued job resumes it.
	if task.Err() != nil && Interrupted(ctx) {
		log.Warn("download interrupted", "status", attempt.Status, "cause", context.Cause(ctx))
		return fmt.Errorf("download interrupted: %w", context.Cause(ctx))
	}

	// A clean run without a finished event (archive hit) still completes the attempt.
	if task.Err() == nil && !attempt.IsTerminal() {
		if err := attempt.SetFinished(d.now()); err == nil {
			saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
			defer cancel()
			if err := d.Store.SaveAttempt(saveCtx, attempt); err != nil && !errors.Is(err, ErrTerminal) {
				return fmt.Errorf("save attempt: %w", err)
			}
		}
	}

	log.Info("download run complete", "status", attempt.Status)
	return nil
}

// CleanupAttempt removes the files an attempt recorded, including yt-dlp's
// .part and .ytdl leftovers. Missing files are ignored.
func (d *Dispatcher) CleanupAttempt(ctx context.Context, attemptID int64) error {
	log := d.logger().With("attempt_id", attemptID)

	a, err := d.Store.GetAttempt(ctx, attemptID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("attempt not found for cleanup")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get attempt: %w", err)
	}

	var paths []string
	for _, p := range []*string{a.Filename, a.TmpFilename} {
		if p == nil || *p == "" {
			continue
		}
		paths = append(paths, *p, *p+".part", *p+".ytdl")
	}

	removed := 0
	for _, p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, os.ErrNotExist):
		default:
			log.Warn("failed to remove attempt file", "path", p, "error", err)
		}
	}
	log.Info("attempt cleaned up", "removed", removed)
	return nil
}
