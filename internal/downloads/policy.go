package downloads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"thirdcoast.systems/fetchd/internal/queue"
)

const (
	DefaultFailureThreshold    = 3
	BlockReasonTooManyFailures = "Too many failed attempts"
)

// Interrupted reports whether ctx was cancelled by something other than a
// revoke, such as the worker shutting down.
func Interrupted(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	var rev *queue.RevokedError
	return !errors.As(context.Cause(ctx), &rev)
}

// UnlessInterrupted skips cb when the run was interrupted. The failure then
// belongs to the process, not to the download.
func UnlessInterrupted(cb OnError) OnError {
	return func(ctx context.Context, t *Task, err error) error {
		if Interrupted(ctx) {
			return nil
		}
		return cb(ctx, t, err)
	}
}

// RecordAttemptError marks attempt as Error with "<type>: <message>". The attempt
// is re-read first so a cancellation written by another process is never overwritten.
func RecordAttemptError(store Store, attempt *Attempt, now func() time.Time, logger *slog.Logger) OnError {
	return func(ctx context.Context, _ *Task, err error) error {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
		defer cancel()

		if attempt.ID != 0 {
			if fresh, gerr := store.GetAttempt(ctx, attempt.ID); gerr == nil {
				*attempt = *fresh
			}
		}
		if attempt.IsCanceled() {
			logger.Info("attempt canceled, not recording error", "attempt_id", attempt.ID, "error", err)
			return nil
		}

		msg := fmt.Sprintf("%s: %s", ErrorTypeName(err), err.Error())
		if serr := attempt.SetError(msg, now()); serr != nil {
			logger.Warn("cannot record attempt error", "attempt_id", attempt.ID, "status", attempt.Status, "error", serr)
			return nil
		}

		serr := store.SaveAttempt(ctx, attempt)
		if errors.Is(serr, ErrTerminal) {
			if fresh, gerr := store.GetAttempt(ctx, attempt.ID); gerr == nil {
				*attempt = *fresh
			}
			return nil
		}
		return serr
	}
}

// BlockAfterFailures blocks the download once threshold attempts have failed.
// The current attempt is not touched.
func BlockAfterFailures(store Store, download *Download, threshold int, now func() time.Time, logger *slog.Logger) OnError {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return func(ctx context.Context, _ *Task, _ error) error {
		failed := download.CountAttempts(StatusError)
		if failed < threshold {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
		defer cancel()

		_ = download.Block(BlockReasonTooManyFailures, now(), false)
		logger.Warn("blocking download", "download_id", download.DownloadID, "failed_attempts", failed)
		return store.SaveDownload(ctx, download)
	}
}

// ErrorTypeName names the outermost error type that is not a plain fmt/errors wrapper.
func ErrorTypeName(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		t := reflect.TypeOf(e)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		pkg := t.PkgPath()
		if pkg == "fmt" || pkg == "errors" || t.Name() == "" {
			continue
		}
		return pkg[strings.LastIndex(pkg, "/")+1:] + "." + t.Name()
	}
	return "Error"
}
