package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// progressPrefix tags the JSON progress lines yt-dlp prints through --progress-template.
const progressPrefix = "[fetchd-progress]"

var progressTemplate = "download:" + progressPrefix + "%(progress)j"

// ProgressEvent is one progress hook payload. Absent fields stay nil.
type ProgressEvent struct {
	Status          string   `json:"status"`
	DownloadedBytes *int64   `json:"downloaded_bytes,omitempty"`
	TotalBytes      *int64   `json:"total_bytes,omitempty"`
	ETA             *int64   `json:"eta,omitempty"`
	Elapsed         *float64 `json:"elapsed,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
	Filename        *string  `json:"filename,omitempty"`
	TmpFilename     *string  `json:"tmpfilename,omitempty"`
}

// ProgressHook receives progress events during a download. An error aborts the download.
type ProgressHook interface {
	Dispatch(ctx context.Context, ev ProgressEvent) error
}

// HookFunc adapts a function to ProgressHook.
type HookFunc func(ctx context.Context, ev ProgressEvent) error

func (f HookFunc) Dispatch(ctx context.Context, ev ProgressEvent) error { return f(ctx, ev) }

type rawProgress struct {
	Status             string       `json:"status"`
	DownloadedBytes    *json.Number `json:"downloaded_bytes"`
	TotalBytes         *json.Number `json:"total_bytes"`
	TotalBytesEstimate *json.Number `json:"total_bytes_estimate"`
	ETA                *json.Number `json:"eta"`
	Elapsed            *json.Number `json:"elapsed"`
	Speed              *json.Number `json:"speed"`
	Filename           *string      `json:"filename"`
	TmpFilename        *string      `json:"tmpfilename"`
}

// ParseProgressLine decodes a progress template line. ok is false for other output.
func ParseProgressLine(line string) (ev ProgressEvent, ok bool, err error) {
	idx := strings.Index(line, progressPrefix)
	if idx < 0 {
		return ProgressEvent{}, false, nil
	}

	dec := json.NewDecoder(strings.NewReader(line[idx+len(progressPrefix):]))
	dec.UseNumber()
	var raw rawProgress
	if err := dec.Decode(&raw); err != nil {
		return ProgressEvent{}, true, fmt.Errorf("ytdlp: parse progress: %w", err)
	}

	ev = ProgressEvent{
		Status:          raw.Status,
		DownloadedBytes: toInt(raw.DownloadedBytes),
		TotalBytes:      toInt(raw.TotalBytes),
		ETA:             toInt(raw.ETA),
		Elapsed:         toFloat(raw.Elapsed),
		Speed:           toFloat(raw.Speed),
		Filename:        raw.Filename,
		TmpFilename:     raw.TmpFilename,
	}
	if ev.TotalBytes == nil {
		ev.TotalBytes = toInt(raw.TotalBytesEstimate)
	}
	return ev, true, nil
}

func toFloat(n *json.Number) *float64 {
	if n == nil {
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil
	}
	return &f
}

func toInt(n *json.Number) *int64 {
	f := toFloat(n)
	if f == nil {
		return nil
	}
	i := int64(math.Round(*f))
	return &i
}
