package downloads

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Store persists videos, downloads and attempts. Every call is its own unit of
// work so progress is visible to readers immediately.
type Store interface {
	// GetDownload loads a download with its video and attempts.
	GetDownload(ctx context.Context, downloadID uuid.UUID) (*Download, error)
	GetDownloadByVideo(ctx context.Context, videoID string) (*Download, error)
	CreateDownload(ctx context.Context, video *Video, options json.RawMessage) (*Download, error)
	// SaveDownload writes options and block state. BlockFurther is never cleared.
	SaveDownload(ctx context.Context, d *Download) error

	// AddAttempt inserts a new attempt and fills its ID and timestamps.
	AddAttempt(ctx context.Context, a *Attempt) error
	// SaveAttempt writes status, progress and message. It returns ErrTerminal
	// without writing when the stored attempt is already terminal.
	SaveAttempt(ctx context.Context, a *Attempt) error
	SetAttemptTask(ctx context.Context, attemptID int64, taskID uuid.UUID) error
	GetAttempt(ctx context.Context, attemptID int64) (*Attempt, error)

	GetVideo(ctx context.Context, videoID string) (*Video, error)
	// UpsertVideo creates or refreshes a video by VideoID and fills its ID.
	UpsertVideo(ctx context.Context, v *Video, info map[string]any) error
	// UpsertPlaylist creates or refreshes a playlist and links the given videos in order.
	UpsertPlaylist(ctx context.Context, p *Playlist, info map[string]any) error

	// Lock takes an exclusive, non-blocking lock on key. It returns ErrLocked when held.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func downloadLockKey(id uuid.UUID) string { return "download:" + id.String() }
func videoLockKey(videoID string) string  { return "video:" + videoID }
