package downloads

import "errors"

var (
	// ErrNotFound is returned when no download, attempt or video matches.
	ErrNotFound = errors.New("not found")

	// ErrBlocked is returned when a download refuses further attempts.
	ErrBlocked = errors.New("download is blocked")

	// ErrInvalidOptions wraps request option validation failures.
	ErrInvalidOptions = errors.New("invalid download options")

	// ErrTerminal is returned by attempt transitions out of Finished, Error or Canceled.
	ErrTerminal = errors.New("attempt is in a terminal state")

	// ErrHookReused is returned when a progress hook is bound to a second attempt.
	ErrHookReused = errors.New("progress hook already bound to another attempt")

	// ErrHookUnbound is returned when an event is dispatched before Bind.
	ErrHookUnbound = errors.New("progress hook is not bound to an attempt")

	// ErrLocked is returned when another dispatch or request holds the download.
	ErrLocked = errors.New("download is locked by another worker")

	// ErrExtractor wraps failures of the metadata extractor.
	ErrExtractor = errors.New("extractor failed")
)
