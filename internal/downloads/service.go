package downloads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"thirdcoast.systems/fetchd/internal/queue"
	"thirdcoast.systems/fetchd/internal/videoid"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

// Queue is the part of the job queue the service uses.
type Queue interface {
	Enqueue(ctx context.Context, name string, args any) (uuid.UUID, error)
	Revoke(ctx context.Context, id uuid.UUID, opts queue.RevokeOptions) error
}

// JobInspector is implemented by queues that can tell whether a job has been
// claimed by a worker.
type JobInspector interface {
	Running(ctx context.Context, id uuid.UUID) (bool, error)
}

// InfoExtractor fetches metadata without downloading.
type InfoExtractor interface {
	ExtractInfo(ctx context.Context, url string, extraArgs ...string) (*ytdlp.Info, error)
}

// Service implements the HTTP facing download and info operations.
type Service struct {
	Store    Store
	Queue    Queue
	Info     InfoExtractor
	Sealer   Sealer
	Validate *validator.Validate
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewService(store Store, q Queue, info InfoExtractor, sealer Sealer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:    store,
		Queue:    q,
		Info:     info,
		Sealer:   sealer,
		Validate: NewValidator(),
		Logger:   logger,
		Now:      time.Now,
	}
}

// Start begins a new attempt for the video unless one is live or finished, in
// which case the existing download is returned unchanged.
func (s *Service) Start(ctx context.Context, videoID string, opts *RequestOptions) (*Download, error) {
	if err := videoid.ValidateVideoID(videoID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	unlock, err := s.Store.Lock(ctx, videoLockKey(videoID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	dl, err := s.Store.GetDownloadByVideo(ctx, videoID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if dl != nil && dl.BlockFurther {
		return nil, ErrBlocked
	}
	if dl != nil && !dl.CanStartNewAttempt() {
		return dl, nil
	}

	var rawOpts json.RawMessage
	if opts != nil {
		if err := opts.Validate(s.Validate); err != nil {
			return nil, err
		}
		if rawOpts, err = opts.Seal(s.Sealer); err != nil {
			return nil, err
		}
	}

	if dl == nil {
		video, err := s.ensureVideo(ctx, videoID)
		if err != nil {
			return nil, err
		}
		if rawOpts == nil {
			rawOpts = json.RawMessage("{}")
		}
		if dl, err = s.Store.CreateDownload(ctx, video, rawOpts); err != nil {
			return nil, fmt.Errorf("create download: %w", err)
		}
	} else if rawOpts != nil {
		dl.Options = rawOpts
		if err := s.Store.SaveDownload(ctx, dl); err != nil {
			return nil, fmt.Errorf("save download: %w", err)
		}
	}

	attempt := dl.StartNewAttempt()
	if err := s.Store.AddAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("add attempt: %w", err)
	}

	jobID, err := s.Queue.Enqueue(ctx, TaskProcessVideoDownload, ProcessArgs{DownloadID: dl.DownloadID})
	if err != nil {
		if serr := attempt.SetError("Failed to enqueue download: "+err.Error(), s.Now()); serr == nil {
			_ = s.Store.SaveAttempt(context.WithoutCancel(ctx), attempt)
		}
		return nil, fmt.Errorf("enqueue download: %w", err)
	}
	if err := s.Store.SetAttemptTask(ctx, attempt.ID, jobID); err != nil {
		return nil, fmt.Errorf("set attempt task: %w", err)
	}
	attempt.TaskID = jobID

	s.Logger.Info("download queued", "video_id", videoID, "download_id", dl.DownloadID, "attempt_id", attempt.ID, "job_id", jobID)
	return dl, nil
}

func (s *Service) Get(ctx context.Context, videoID string) (*Download, error) {
	return s.Store.GetDownloadByVideo(ctx, videoID)
}

func (s *Service) Latest(ctx context.Context, videoID string) (*Attempt, error) {
	dl, err := s.Store.GetDownloadByVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	a := dl.LatestAttempt()
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// Cancel stops the latest attempt if it is pending or downloading. A pending
// job is simply revoked; a running one is terminated with SIGUSR1. Cleanup of
// partial files is queued either way.
func (s *Service) Cancel(ctx context.Context, videoID string) error {
	dl, err := s.Store.GetDownloadByVideo(ctx, videoID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	a := dl.LatestAttempt()
	if a == nil || a.IsTerminal() {
		return nil
	}

	wasDownloading := a.IsDownloading()
	if err := a.SetCanceled(s.Now()); err != nil {
		return nil
	}
	if err := s.Store.SaveAttempt(ctx, a); err != nil {
		if errors.Is(err, ErrTerminal) {
			// The worker finished or failed it first.
			return nil
		}
		return fmt.Errorf("save attempt: %w", err)
	}

	if a.TaskID != uuid.Nil {
		ro := queue.RevokeOptions{}
		if wasDownloading || s.jobRunning(ctx, a.TaskID) {
			ro = queue.RevokeOptions{Terminate: true, Signal: "SIGUSR1"}
		}
		if err := s.Queue.Revoke(ctx, a.TaskID, ro); err != nil {
			s.Logger.Error("failed to revoke job", "attempt_id", a.ID, "job_id", a.TaskID, "error", err)
		}
	}

	if _, err := s.Queue.Enqueue(ctx, TaskCleanupAttempt, CleanupArgs{AttemptID: a.ID}); err != nil {
		return fmt.Errorf("enqueue cleanup: %w", err)
	}
	s.Logger.Info("download canceled", "video_id", videoID, "attempt_id", a.ID, "was_downloading", wasDownloading)
	return nil
}

// jobRunning catches attempts still Pending while the worker extracts info.
func (s *Service) jobRunning(ctx context.Context, jobID uuid.UUID) bool {
	ji, ok := s.Queue.(JobInspector)
	if !ok {
		return false
	}
	running, err := ji.Running(ctx, jobID)
	if err != nil {
		s.Logger.Warn("failed to read job status", "job_id", jobID, "error", err)
		return false
	}
	return running
}

func (s *Service) extract(ctx context.Context, url string) (*ytdlp.Info, error) {
	info, err := s.Info.ExtractInfo(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractor, err)
	}
	return info, nil
}

func (s *Service) ensureVideo(ctx context.Context, videoID string) (*Video, error) {
	v, err := s.Store.GetVideo(ctx, videoID)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.StoreVideoInfo(ctx, videoID)
}

// VideoInfo returns the extractor's raw metadata for a video.
func (s *Service) VideoInfo(ctx context.Context, videoID string) (map[string]any, error) {
	if err := videoid.ValidateVideoID(videoID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	info, err := s.extract(ctx, videoid.WatchURL(videoID))
	if err != nil {
		return nil, err
	}
	return info.Map()
}

// StoreVideoInfo fetches a video's metadata and creates or refreshes its record.
func (s *Service) StoreVideoInfo(ctx context.Context, videoID string) (*Video, error) {
	if err := videoid.ValidateVideoID(videoID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	info, err := s.extract(ctx, videoid.WatchURL(videoID))
	if err != nil {
		return nil, err
	}
	raw, err := info.Map()
	if err != nil {
		return nil, err
	}

	v := videoFromInfo(info)
	if v.VideoID == "" {
		v.VideoID = videoID
	}
	if err := s.Store.UpsertVideo(ctx, &v, raw); err != nil {
		return nil, fmt.Errorf("store video: %w", err)
	}
	return &v, nil
}

// PlaylistInfo returns the extractor's raw (flat) metadata for a playlist.
func (s *Service) PlaylistInfo(ctx context.Context, playlistID string) (map[string]any, error) {
	if err := videoid.ValidatePlaylistID(playlistID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	info, err := s.extract(ctx, videoid.PlaylistURL(playlistID))
	if err != nil {
		return nil, err
	}
	return info.Map()
}

// StorePlaylistInfo stores a playlist and every entry as a video linked to it.
func (s *Service) StorePlaylistInfo(ctx context.Context, playlistID string) (*Playlist, error) {
	if err := videoid.ValidatePlaylistID(playlistID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	info, err := s.extract(ctx, videoid.PlaylistURL(playlistID))
	if err != nil {
		return nil, err
	}
	raw, err := info.Map()
	if err != nil {
		return nil, err
	}
	entries, err := info.EntryInfos()
	if err != nil {
		return nil, err
	}

	p := playlistFromInfo(info)
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		v := videoFromInfo(e)
		if v.WebpageURL == "" {
			v.WebpageURL = e.WebpageURLOr(videoid.WatchURL(e.ID))
		}
		if v.Extractor == "" {
			v.Extractor = info.Extractor
		}
		p.Videos = append(p.Videos, v)
	}

	if err := s.Store.UpsertPlaylist(ctx, &p, raw); err != nil {
		return nil, fmt.Errorf("store playlist: %w", err)
	}
	return &p, nil
}
