package downloads

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

// Status is the attempt state. Pending -> Downloading -> {Finished | Error | Canceled}.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusDownloading Status = "Downloading"
	StatusFinished    Status = "Finished"
	StatusError       Status = "Error"
	StatusCanceled    Status = "Canceled"
	StatusUnknown     Status = "Unknown"
)

var statuses = []Status{StatusPending, StatusDownloading, StatusFinished, StatusError, StatusCanceled}

// ParseStatus matches s case-insensitively; anything else is StatusUnknown.
func ParseStatus(s string) Status {
	for _, st := range statuses {
		if strings.EqualFold(s, string(st)) {
			return st
		}
	}
	return StatusUnknown
}

func (s Status) Is(other Status) bool {
	return strings.EqualFold(string(s), string(other))
}

func (s Status) Terminal() bool {
	return s.Is(StatusFinished) || s.Is(StatusError) || s.Is(StatusCanceled)
}

// ProgressEvent is what the extractor reports through a progress hook.
type ProgressEvent = ytdlp.ProgressEvent

// Progress holds the last known value of each progress field; nil means never reported.
type Progress struct {
	DownloadedBytes *int64   `json:"downloaded_bytes"`
	TotalBytes      *int64   `json:"total_bytes"`
	ETA             *int64   `json:"eta"`
	Elapsed         *float64 `json:"elapsed"`
	Speed           *float64 `json:"speed"`
	Filename        *string  `json:"filename"`
	TmpFilename     *string  `json:"tmpfilename"`
}

// Merge copies every field present in ev, keeping the current value for absent ones.
func (p *Progress) Merge(ev ProgressEvent) {
	if ev.DownloadedBytes != nil {
		p.DownloadedBytes = ev.DownloadedBytes
	}
	if ev.TotalBytes != nil {
		p.TotalBytes = ev.TotalBytes
	}
	if ev.ETA != nil {
		p.ETA = ev.ETA
	}
	if ev.Elapsed != nil {
		p.Elapsed = ev.Elapsed
	}
	if ev.Speed != nil {
		p.Speed = ev.Speed
	}
	if ev.Filename != nil {
		p.Filename = ev.Filename
	}
	if ev.TmpFilename != nil {
		p.TmpFilename = ev.TmpFilename
	}
}

// MergeFiles copies only the file names from ev. A finished event reports
// where the output landed but its byte counters are not trusted.
func (p *Progress) MergeFiles(ev ProgressEvent) {
	if ev.Filename != nil {
		p.Filename = ev.Filename
	}
	if ev.TmpFilename != nil {
		p.TmpFilename = ev.TmpFilename
	}
}

// Attempt is one execution try of a download.
type Attempt struct {
	ID         int64  `json:"id"`
	DownloadID int64  `json:"-"`
	Status     Status `json:"status"`
	Progress
	Message   string    `json:"message,omitempty"`
	TaskID    uuid.UUID `json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Attempt) IsPending() bool     { return a.Status.Is(StatusPending) }
func (a *Attempt) IsDownloading() bool { return a.Status.Is(StatusDownloading) }
func (a *Attempt) IsFinished() bool    { return a.Status.Is(StatusFinished) }
func (a *Attempt) IsFailed() bool      { return a.Status.Is(StatusError) }
func (a *Attempt) IsCanceled() bool    { return a.Status.Is(StatusCanceled) }
func (a *Attempt) IsTerminal() bool    { return a.Status.Terminal() }

func (a *Attempt) guard(to Status) error {
	if a.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrTerminal, a.Status, to)
	}
	return nil
}

// SetDownloading merges the event's progress fields and moves to Downloading.
func (a *Attempt) SetDownloading(ev ProgressEvent) error {
	if err := a.guard(StatusDownloading); err != nil {
		return err
	}
	a.Progress.Merge(ev)
	a.Status = StatusDownloading
	return nil
}

func (a *Attempt) SetFinished(when time.Time) error {
	if err := a.guard(StatusFinished); err != nil {
		return err
	}
	a.Status = StatusFinished
	a.Message = "Finished at " + formatWhen(when)
	return nil
}

func (a *Attempt) SetError(message string, when time.Time) error {
	if err := a.guard(StatusError); err != nil {
		return err
	}
	a.Status = StatusError
	a.Message = fmt.Sprintf("Failed at %s: %s", formatWhen(when), message)
	return nil
}

func (a *Attempt) SetCanceled(when time.Time) error {
	if err := a.guard(StatusCanceled); err != nil {
		return err
	}
	a.Status = StatusCanceled
	a.Message = "Canceled at " + formatWhen(when)
	return nil
}

func formatWhen(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
