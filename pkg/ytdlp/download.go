package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

// Download fetches urls with the client's options. Progress template lines are
// decoded and handed to every progress hook; other output goes to the options' logger.
// A hook error stops the process and is returned.
func (c *Client) Download(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("ytdlp: url is required")
	}
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("ytdlp: url is required")
		}
	}

	optArgs, err := c.Options.Args()
	if err != nil {
		return err
	}

	args := []string{
		"--progress",
		"--progress-template", progressTemplate,
		"--newline",
		"--no-colors",
	}
	args = append(args, optArgs...)
	args = append(args, "--")
	args = append(args, urls...)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	log := c.logger()
	hooks := c.Options.ProgressHooks()
	var (
		mu      sync.Mutex
		hookErr error
	)

	// stdout and stderr are copied on separate goroutines.
	onLine := func(stream, line string) {
		mu.Lock()
		defer mu.Unlock()

		ev, ok, err := ParseProgressLine(line)
		if !ok {
			if stream == "stderr" {
				log.Warn("ytdlp: " + line)
			} else {
				log.Info("ytdlp: " + line)
			}
			return
		}
		if err != nil {
			log.Warn("ytdlp: malformed progress line", "line", line, "error", err)
			return
		}
		if hookErr != nil {
			return
		}
		logProgress(c, ev)
		for _, h := range hooks {
			if err := h.Dispatch(ctx, ev); err != nil {
				hookErr = fmt.Errorf("ytdlp: progress hook: %w", err)
				cancel(hookErr)
				return
			}
		}
	}

	stdout, stderr, err := c.exec(ctx, args, onLine)
	mu.Lock()
	defer mu.Unlock()
	if hookErr != nil {
		return hookErr
	}
	if err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}
	return nil
}

func logProgress(c *Client, ev ProgressEvent) {
	log := c.logger()
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := []any{"status", ev.Status}
	if ev.DownloadedBytes != nil {
		attrs = append(attrs, "downloaded", humanize.IBytes(uint64(max(*ev.DownloadedBytes, 0))))
	}
	if ev.TotalBytes != nil {
		attrs = append(attrs, "total", humanize.IBytes(uint64(max(*ev.TotalBytes, 0))))
	}
	if ev.Speed != nil {
		attrs = append(attrs, "speed", humanize.IBytes(uint64(max(*ev.Speed, 0)))+"/s")
	}
	log.Debug("ytdlp: progress", attrs...)
}
