package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// streamWriter wraps an io.Writer and calls a callback for each line.
type streamWriter struct {
	stream   string
	callback func(stream string, line string)
	buffer   *bytes.Buffer
	pending  []byte
}

func (w *streamWriter) Write(p []byte) (n int, err error) {
	// Also write to buffer for later retrieval
	if w.buffer != nil {
		w.buffer.Write(p)
	}

	w.pending = append(w.pending, p...)

	// yt-dlp progress output often uses carriage returns (\r) to update the same
	// console line. Treat both \n and \r as line boundaries.
	for {
		idx := bytes.IndexAny(w.pending, "\r\n")
		if idx < 0 {
			break
		}

		line := string(w.pending[:idx])

		// Consume delimiter(s). If this is a CRLF sequence, consume both.
		consume := 1
		if w.pending[idx] == '\r' && idx+1 < len(w.pending) && w.pending[idx+1] == '\n' {
			consume = 2
		}
		w.pending = w.pending[idx+consume:]

		if w.callback != nil {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				w.callback(w.stream, trimmed)
			}
		}
	}

	return len(p), nil
}

type ExecError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

func (e *ExecError) Error() string {
	msg := "ytdlp: command failed"
	if e.ExitCode != 0 {
		msg = fmt.Sprintf("ytdlp: command failed (exit %d)", e.ExitCode)
	}
	// Last stderr line is usually yt-dlp's "ERROR: ..." summary.
	if e.Stderr != "" {
		lines := strings.Split(e.Stderr, "\n")
		return msg + ": " + strings.TrimSpace(lines[len(lines)-1])
	}
	return msg + ": " + strings.TrimSpace(e.Cmd+" "+strings.Join(redactArgs(e.Args), " "))
}

func (e *ExecError) Unwrap() error { return e.Cause }

// secretFlags have their value replaced in logs and errors.
var secretFlags = map[string]bool{
	"-p":               true,
	"--password":       true,
	"--video-password": true,
	"--ap-password":    true,
}

func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if i > 0 && secretFlags[args[i-1]] {
			out[i] = "<redacted>"
			continue
		}
		out[i] = a
	}
	return out
}

// DefaultWaitDelay bounds how long a cancelled process may linger after its signal.
const DefaultWaitDelay = 30 * time.Second

type Client struct {
	// Path to yt-dlp executable. Defaults to "yt-dlp" (PATH lookup).
	Path string

	// Options are the finalised youtube-dl style options for this client.
	Options Options

	// ExtraArgs are always appended before per-call args.
	ExtraArgs []string

	// WaitDelay is passed to exec.Cmd; zero means DefaultWaitDelay.
	WaitDelay time.Duration

	// LastPID is the process ID of the most recently executed command.
	LastPID int

	tempFiles []string

	execFn func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

func New() *Client {
	return &Client{Path: "yt-dlp", Options: Options{}}
}

// PathOrDefault returns the configured path or "yt-dlp" if unset.
func (c *Client) PathOrDefault() string {
	if strings.TrimSpace(c.Path) == "" {
		return "yt-dlp"
	}
	return c.Path
}

func (c *Client) logger() *slog.Logger {
	return c.Options.Logger()
}

// exec runs yt-dlp, passing every output line to onLine when it is set.
func (c *Client) exec(ctx context.Context, args []string, onLine func(stream, line string)) (stdout []byte, stderr []byte, err error) {
	name := c.PathOrDefault()
	c.LastPID = 0

	fullArgs := make([]string, 0, len(c.ExtraArgs)+len(args))
	fullArgs = append(fullArgs, c.ExtraArgs...)
	fullArgs = append(fullArgs, args...)

	var outBuf, errBuf bytes.Buffer
	var outW, errW io.Writer = &outBuf, &errBuf
	if onLine != nil {
		outW = &streamWriter{stream: "stdout", callback: onLine, buffer: &outBuf}
		errW = &streamWriter{stream: "stderr", callback: onLine, buffer: &errBuf}
	}

	if c.execFn != nil {
		err = c.execFn(ctx, name, fullArgs, outW, errW)
		return outBuf.Bytes(), errBuf.Bytes(), err
	}

	c.logger().Debug("ytdlp: Executing command", "cmd", name, "args", redactArgs(fullArgs))
	cmd := exec.CommandContext(ctx, name, fullArgs...)
	cmd.Stdout = outW
	cmd.Stderr = errW
	cmd.Cancel = func() error {
		return cmd.Process.Signal(CancelSignal(ctx))
	}
	cmd.WaitDelay = c.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	c.LastPID = cmd.Process.Pid

	err = cmd.Wait()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Close removes temporary files created for this client (cookie jars).
func (c *Client) Close() error {
	var errs []error
	for _, f := range c.tempFiles {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	c.tempFiles = nil
	return errors.Join(errs...)
}

// Version returns `yt-dlp --version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	args := []string{"--version"}
	stdout, stderr, err := c.exec(ctx, args, nil)
	if err != nil {
		return "", wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}
	return strings.TrimSpace(string(stdout)), nil
}

// Info is a light wrapper over yt-dlp JSON output. It intentionally models only common fields.
// The full JSON is preserved in Raw.
type Info struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	WebpageURL   string            `json:"webpage_url"`
	Extractor    string            `json:"extractor"`
	ExtractorKey string            `json:"extractor_key"`
	Uploader     string            `json:"uploader"`
	Duration     *float64          `json:"duration"`
	Type         string            `json:"_type"`
	Entries      []json.RawMessage `json:"entries,omitempty"`
	Raw          json.RawMessage   `json:"-"`
}

// ArchiveID is the download archive entry for this info: "<extractor> <id>".
func (i *Info) ArchiveID() string {
	key := i.ExtractorKey
	if key == "" {
		key = i.Extractor
	}
	return strings.ToLower(key) + " " + i.ID
}

// WebpageURLOr returns the entry's page url, or def when the entry has none.
func (i *Info) WebpageURLOr(def string) string {
	if i.WebpageURL != "" {
		return i.WebpageURL
	}
	if u, ok := i.rawString("url"); ok && u != "" {
		return u
	}
	return def
}

func (i *Info) rawString(key string) (string, bool) {
	m, err := i.Map()
	if err != nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

// Map decodes Raw into a generic dictionary.
func (i *Info) Map() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(i.Raw, &m); err != nil {
		return nil, fmt.Errorf("ytdlp: decode info: %w", err)
	}
	return m, nil
}

// EntryInfos decodes the playlist entries (flat entries carry id/title/url only).
func (i *Info) EntryInfos() ([]*Info, error) {
	out := make([]*Info, 0, len(i.Entries))
	for _, raw := range i.Entries {
		e := &Info{Raw: raw}
		if err := json.Unmarshal(raw, e); err != nil {
			return nil, fmt.Errorf("ytdlp: decode entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ExtractInfo runs yt-dlp in "metadata only" mode and parses its JSON output.
// Authentication options are applied; playlists are listed flat.
func (c *Client) ExtractInfo(ctx context.Context, url string, extraArgs ...string) (*Info, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("ytdlp: url is required")
	}

	auth, err := c.Options.authArgs()
	if err != nil {
		return nil, err
	}

	args := []string{"--dump-single-json", "--skip-download", "--flat-playlist"}
	args = append(args, auth...)
	args = append(args, extraArgs...)
	args = append(args, url)

	stdout, stderr, err := c.exec(ctx, args, nil)
	if err != nil {
		return nil, wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}

	raw := bytes.TrimSpace(stdout)
	info := &Info{Raw: append([]byte(nil), raw...)}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, fmt.Errorf("ytdlp: parse json: %w", err)
	}

	return info, nil
}

// Update runs `yt-dlp -U` to update to the latest version.
func (c *Client) Update(ctx context.Context, extraArgs ...string) error {
	args := []string{"-U"}
	args = append(args, extraArgs...)

	stdout, stderr, err := c.exec(ctx, args, nil)
	if err != nil {
		return wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}
	return nil
}

func wrapExecError(cmd string, args []string, stdout []byte, stderr []byte, cause error) error {
	exitCode := 0
	var ee *exec.ExitError
	if errors.As(cause, &ee) {
		exitCode = ee.ExitCode()
	}

	return &ExecError{
		Cmd:      cmd,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   strings.TrimSpace(string(stdout)),
		Stderr:   strings.TrimSpace(string(stderr)),
		Cause:    cause,
	}
}

// createTempCookiesFile creates a temporary file with the cookies content
func createTempCookiesFile(content string) (string, error) {
	tmpFile, err := os.CreateTemp("", "ytdlp-cookies-*.txt")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if _, err := tmpFile.WriteString(content); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}

// CancelSignal picks the signal sent to yt-dlp when ctx is cancelled. A cause
// carrying a Signal() method (queue revocations do) wins; otherwise SIGTERM.
func CancelSignal(ctx context.Context) os.Signal {
	var s interface{ Signal() os.Signal }
	if errors.As(context.Cause(ctx), &s) {
		if sig := s.Signal(); sig != nil {
			return sig
		}
	}
	return syscall.SIGTERM
}
