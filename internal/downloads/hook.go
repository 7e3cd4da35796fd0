package downloads

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// EventKind is the closed set of progress event statuses.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventDownloading
	EventError
	EventFinished
)

// ParseEventKind never fails; unrecognised statuses are EventUnknown.
func ParseEventKind(s string) EventKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "downloading":
		return EventDownloading
	case "error":
		return EventError
	case "finished":
		return EventFinished
	default:
		return EventUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case EventDownloading:
		return "downloading"
	case EventError:
		return "error"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

const storeWriteTimeout = 10 * time.Second

// ProgressHook applies extractor progress events to one attempt and persists
// each transition before returning. A hook is bound to exactly one attempt.
type ProgressHook struct {
	// MinFlushInterval drops persistence of Downloading ticks closer together
	// than this. Zero writes every tick. Flush writes whatever was skipped.
	MinFlushInterval time.Duration

	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	attempt   *Attempt
	lastWrite time.Time
	dirty     bool
}

func NewProgressHook(store Store, logger *slog.Logger, now func() time.Time) *ProgressHook {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &ProgressHook{store: store, logger: logger, now: now}
}

// Bind attaches the hook to a. Binding again to a different attempt is a programming error.
func (h *ProgressHook) Bind(a *Attempt) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attempt != nil && h.attempt != a && h.attempt.ID != a.ID {
		h.logger.Error("progress hook reused", "bound_attempt", h.attempt.ID, "attempt", a.ID)
		return ErrHookReused
	}
	h.attempt = a
	return nil
}

// Dispatch routes ev by status. Once the attempt is terminal every event is ignored.
func (h *ProgressHook) Dispatch(ctx context.Context, ev ProgressEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	a := h.attempt
	if a == nil {
		return ErrHookUnbound
	}

	kind := ParseEventKind(ev.Status)
	if a.IsTerminal() {
		h.logger.Debug("ignoring progress event for terminal attempt", "attempt_id", a.ID, "status", a.Status, "event", kind.String())
		return nil
	}

	switch kind {
	case EventDownloading:
		if err := a.SetDownloading(ev); err != nil {
			return err
		}
		now := h.now()
		if h.MinFlushInterval > 0 && !h.lastWrite.IsZero() && now.Sub(h.lastWrite) < h.MinFlushInterval {
			h.dirty = true
			return nil
		}
		return h.persist(ctx)
	case EventError:
		if err := a.SetError("Download failed", h.now()); err != nil {
			return err
		}
		return h.persist(ctx)
	case EventFinished:
		a.Progress.MergeFiles(ev)
		if err := a.SetFinished(h.now()); err != nil {
			return err
		}
		return h.persist(ctx)
	default:
		h.logger.Warn("unknown progress event", "attempt_id", a.ID, "status", ev.Status)
		return nil
	}
}

// Flush persists a skipped Downloading tick, if any.
func (h *ProgressHook) Flush(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attempt == nil || !h.dirty {
		return nil
	}
	return h.persist(ctx)
}

// persist is called with h.mu held. A terminal row in the store (a cancel from
// another process) is copied back so later events become no-ops.
func (h *ProgressHook) persist(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()

	a := h.attempt
	err := h.store.SaveAttempt(ctx, a)
	if errors.Is(err, ErrTerminal) {
		if fresh, gerr := h.store.GetAttempt(ctx, a.ID); gerr == nil {
			*a = *fresh
		}
		h.logger.Debug("attempt became terminal in store", "attempt_id", a.ID, "status", a.Status)
		h.dirty = false
		return nil
	}
	if err != nil {
		return err
	}
	h.lastWrite = h.now()
	h.dirty = false
	return nil
}
