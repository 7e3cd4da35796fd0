package downloads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"thirdcoast.systems/fetchd/internal/db"
)

// PGStore is the Postgres backed Store.
type PGStore struct {
	dbc *db.DatabaseConnection
}

func NewPGStore(dbc *db.DatabaseConnection) *PGStore {
	return &PGStore{dbc: dbc}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func attemptFromRow(r *db.DownloadAttempt) *Attempt {
	a := &Attempt{
		ID:         r.ID,
		DownloadID: r.DownloadID,
		Status:     ParseStatus(string(r.Status)),
		Progress: Progress{
			DownloadedBytes: r.DownloadedBytes,
			TotalBytes:      r.TotalBytes,
			ETA:             r.Eta,
			Elapsed:         r.Elapsed,
			Speed:           r.Speed,
			Filename:        r.Filename,
			TmpFilename:     r.Tmpfilename,
		},
		TaskID:    db.FromUUID(r.TaskID),
		CreatedAt: db.TimeOrZero(r.CreatedAt),
		UpdatedAt: db.TimeOrZero(r.UpdatedAt),
	}
	if r.Message != nil {
		a.Message = *r.Message
	}
	return a
}

func videoFromRow(r *db.Video) *Video {
	return &Video{
		ID:         r.ID,
		VideoID:    r.VideoID,
		Name:       r.Name,
		WebpageURL: r.WebpageURL,
		Duration:   r.Duration,
		Extractor:  r.Extractor,
		CreatedAt:  db.TimeOrZero(r.CreatedAt),
		UpdatedAt:  db.TimeOrZero(r.UpdatedAt),
	}
}

func (s *PGStore) load(ctx context.Context, q *db.Queries, row *db.Download) (*Download, error) {
	v, err := q.GetVideo(ctx, row.VideoID)
	if err != nil {
		return nil, fmt.Errorf("get video: %w", notFound(err))
	}
	rows, err := q.ListAttemptsByDownload(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	d := &Download{
		ID:           row.ID,
		DownloadID:   db.FromUUID(row.DownloadID),
		Video:        *videoFromRow(v),
		Options:      json.RawMessage(row.Options),
		BlockFurther: row.BlockFurther,
		BlockReason:  row.BlockReason,
		CreatedAt:    db.TimeOrZero(row.CreatedAt),
		UpdatedAt:    db.TimeOrZero(row.UpdatedAt),
	}
	for _, r := range rows {
		d.Attempts = append(d.Attempts, attemptFromRow(r))
	}
	return d, nil
}

func (s *PGStore) GetDownload(ctx context.Context, downloadID uuid.UUID) (*Download, error) {
	q := s.dbc.Queries(ctx)
	row, err := q.GetDownloadByDownloadID(ctx, db.UUID(downloadID))
	if err != nil {
		return nil, notFound(err)
	}
	return s.load(ctx, q, row)
}

func (s *PGStore) GetDownloadByVideo(ctx context.Context, videoID string) (*Download, error) {
	q := s.dbc.Queries(ctx)
	row, err := q.GetDownloadByVideoID(ctx, videoID)
	if err != nil {
		return nil, notFound(err)
	}
	return s.load(ctx, q, row)
}

func (s *PGStore) CreateDownload(ctx context.Context, video *Video, options json.RawMessage) (*Download, error) {
	q := s.dbc.Queries(ctx)
	row, err := q.InsertDownload(ctx, &db.InsertDownloadParams{
		DownloadID: db.UUID(uuid.New()),
		VideoID:    video.ID,
		Options:    options,
	})
	if db.IsUniqueViolation(err) {
		existing, gerr := q.GetDownloadByVideoID(ctx, video.VideoID)
		if gerr != nil {
			return nil, notFound(gerr)
		}
		return s.load(ctx, q, existing)
	}
	if err != nil {
		return nil, err
	}
	return s.load(ctx, q, row)
}

func (s *PGStore) SaveDownload(ctx context.Context, d *Download) error {
	row, err := s.dbc.Queries(ctx).UpdateDownload(ctx, &db.UpdateDownloadParams{
		ID:           d.ID,
		Options:      d.Options,
		BlockFurther: d.BlockFurther,
		BlockReason:  d.BlockReason,
	})
	if err != nil {
		return notFound(err)
	}
	d.BlockFurther = row.BlockFurther
	d.BlockReason = row.BlockReason
	d.UpdatedAt = db.TimeOrZero(row.UpdatedAt)
	return nil
}

func (s *PGStore) AddAttempt(ctx context.Context, a *Attempt) error {
	row, err := s.dbc.Queries(ctx).InsertAttempt(ctx, &db.InsertAttemptParams{
		DownloadID: a.DownloadID,
		Status:     db.AttemptStatus(a.Status),
	})
	if err != nil {
		return err
	}
	a.ID = row.ID
	a.CreatedAt = db.TimeOrZero(row.CreatedAt)
	a.UpdatedAt = db.TimeOrZero(row.UpdatedAt)
	return nil
}

func (s *PGStore) SaveAttempt(ctx context.Context, a *Attempt) error {
	var msg *string
	if a.Message != "" {
		msg = &a.Message
	}
	n, err := s.dbc.Queries(ctx).UpdateAttempt(ctx, &db.UpdateAttemptParams{
		ID:              a.ID,
		Status:          db.AttemptStatus(a.Status),
		DownloadedBytes: a.DownloadedBytes,
		TotalBytes:      a.TotalBytes,
		Eta:             a.ETA,
		Elapsed:         a.Elapsed,
		Speed:           a.Speed,
		Filename:        a.Filename,
		Tmpfilename:     a.TmpFilename,
		Message:         msg,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: attempt %d", ErrTerminal, a.ID)
	}
	return nil
}

func (s *PGStore) SetAttemptTask(ctx context.Context, attemptID int64, taskID uuid.UUID) error {
	return s.dbc.Queries(ctx).SetAttemptTaskID(ctx, &db.SetAttemptTaskIDParams{
		ID:     attemptID,
		TaskID: db.NullUUID(taskID),
	})
}

func (s *PGStore) GetAttempt(ctx context.Context, attemptID int64) (*Attempt, error) {
	row, err := s.dbc.Queries(ctx).GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, notFound(err)
	}
	return attemptFromRow(row), nil
}

func (s *PGStore) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	row, err := s.dbc.Queries(ctx).GetVideoByVideoID(ctx, videoID)
	if err != nil {
		return nil, notFound(err)
	}
	return videoFromRow(row), nil
}

func upsertVideo(ctx context.Context, q *db.Queries, v *Video, info map[string]any) error {
	row, err := q.UpsertVideo(ctx, &db.UpsertVideoParams{
		VideoID:    v.VideoID,
		Name:       v.Name,
		WebpageURL: v.WebpageURL,
		Duration:   v.Duration,
		Extractor:  v.Extractor,
	})
	if err != nil {
		return err
	}
	if info != nil {
		if err := q.SetVideoInfo(ctx, &db.SetVideoInfoParams{ID: row.ID, Info: db.JSONMap(info)}); err != nil {
			return err
		}
	}
	*v = *videoFromRow(row)
	return nil
}

func (s *PGStore) UpsertVideo(ctx context.Context, v *Video, info map[string]any) error {
	return upsertVideo(ctx, s.dbc.Queries(ctx), v, info)
}

func (s *PGStore) UpsertPlaylist(ctx context.Context, p *Playlist, info map[string]any) error {
	q, tx, err := s.dbc.NewWithTX(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row, err := q.UpsertPlaylist(ctx, &db.UpsertPlaylistParams{
		PlaylistID: p.PlaylistID,
		Name:       p.Name,
		WebpageURL: p.WebpageURL,
		Extractor:  p.Extractor,
		Info:       db.JSONMap(info),
	})
	if err != nil {
		return err
	}

	for i := range p.Videos {
		v := &p.Videos[i]
		if err := upsertVideo(ctx, q, v, nil); err != nil {
			return fmt.Errorf("store video %s: %w", v.VideoID, err)
		}
		if err := q.LinkVideoPlaylist(ctx, &db.LinkVideoPlaylistParams{
			VideoID:    v.ID,
			PlaylistID: row.ID,
			Position:   int32(i),
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	p.ID = row.ID
	p.CreatedAt = db.TimeOrZero(row.CreatedAt)
	p.UpdatedAt = db.TimeOrZero(row.UpdatedAt)
	return nil
}

func (s *PGStore) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := s.dbc.TryAdvisoryLock(ctx, key)
	if errors.Is(err, db.ErrLockHeld) {
		return nil, ErrLocked
	}
	return unlock, err
}
