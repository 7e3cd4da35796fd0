package db

import (
	"context"
)

const videoColumns = `id, video_id, name, webpage_url, duration, extractor, info, created_at, updated_at`

func scanVideo(row interface{ Scan(...any) error }) (*Video, error) {
	var i Video
	err := row.Scan(
		&i.ID,
		&i.VideoID,
		&i.Name,
		&i.WebpageURL,
		&i.Duration,
		&i.Extractor,
		&i.Info,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const getVideoByVideoID = `-- name: GetVideoByVideoID :one
SELECT ` + videoColumns + ` FROM videos WHERE video_id = $1
`

func (q *Queries) GetVideoByVideoID(ctx context.Context, videoID string) (*Video, error) {
	return scanVideo(q.db.QueryRow(ctx, getVideoByVideoID, videoID))
}

const getVideo = `-- name: GetVideo :one
SELECT ` + videoColumns + ` FROM videos WHERE id = $1
`

func (q *Queries) GetVideo(ctx context.Context, id int64) (*Video, error) {
	return scanVideo(q.db.QueryRow(ctx, getVideo, id))
}

const upsertVideo = `-- name: UpsertVideo :one
INSERT INTO videos (video_id, name, webpage_url, duration, extractor)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (video_id) DO UPDATE SET
    name        = EXCLUDED.name,
    webpage_url = EXCLUDED.webpage_url,
    duration    = COALESCE(EXCLUDED.duration, videos.duration),
    extractor   = EXCLUDED.extractor,
    updated_at  = now()
RETURNING ` + videoColumns + `
`

type UpsertVideoParams struct {
	VideoID    string   `json:"video_id"`
	Name       string   `json:"name"`
	WebpageURL string   `json:"webpage_url"`
	Duration   *float64 `json:"duration"`
	Extractor  string   `json:"extractor"`
}

func (q *Queries) UpsertVideo(ctx context.Context, arg *UpsertVideoParams) (*Video, error) {
	return scanVideo(q.db.QueryRow(ctx, upsertVideo,
		arg.VideoID,
		arg.Name,
		arg.WebpageURL,
		arg.Duration,
		arg.Extractor,
	))
}

const setVideoInfo = `-- name: SetVideoInfo :exec
UPDATE videos SET info = $2, updated_at = now() WHERE id = $1
`

type SetVideoInfoParams struct {
	ID   int64   `json:"id"`
	Info JSONMap `json:"info"`
}

func (q *Queries) SetVideoInfo(ctx context.Context, arg *SetVideoInfoParams) error {
	_, err := q.db.Exec(ctx, setVideoInfo, arg.ID, arg.Info)
	return err
}

const playlistColumns = `id, playlist_id, name, webpage_url, extractor, info, created_at, updated_at`

func scanPlaylist(row interface{ Scan(...any) error }) (*Playlist, error) {
	var i Playlist
	err := row.Scan(
		&i.ID,
		&i.PlaylistID,
		&i.Name,
		&i.WebpageURL,
		&i.Extractor,
		&i.Info,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const getPlaylistByPlaylistID = `-- name: GetPlaylistByPlaylistID :one
SELECT ` + playlistColumns + ` FROM playlists WHERE playlist_id = $1
`

func (q *Queries) GetPlaylistByPlaylistID(ctx context.Context, playlistID string) (*Playlist, error) {
	return scanPlaylist(q.db.QueryRow(ctx, getPlaylistByPlaylistID, playlistID))
}

const upsertPlaylist = `-- name: UpsertPlaylist :one
INSERT INTO playlists (playlist_id, name, webpage_url, extractor, info)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (playlist_id) DO UPDATE SET
    name        = EXCLUDED.name,
    webpage_url = EXCLUDED.webpage_url,
    extractor   = EXCLUDED.extractor,
    info        = COALESCE(EXCLUDED.info, playlists.info),
    updated_at  = now()
RETURNING ` + playlistColumns + `
`

type UpsertPlaylistParams struct {
	PlaylistID string  `json:"playlist_id"`
	Name       string  `json:"name"`
	WebpageURL string  `json:"webpage_url"`
	Extractor  string  `json:"extractor"`
	Info       JSONMap `json:"info"`
}

func (q *Queries) UpsertPlaylist(ctx context.Context, arg *UpsertPlaylistParams) (*Playlist, error) {
	return scanPlaylist(q.db.QueryRow(ctx, upsertPlaylist,
		arg.PlaylistID,
		arg.Name,
		arg.WebpageURL,
		arg.Extractor,
		arg.Info,
	))
}

const linkVideoPlaylist = `-- name: LinkVideoPlaylist :exec
INSERT INTO video_playlists (video_id, playlist_id, position)
VALUES ($1, $2, $3)
ON CONFLICT (video_id, playlist_id) DO UPDATE SET position = EXCLUDED.position
`

type LinkVideoPlaylistParams struct {
	VideoID    int64 `json:"video_id"`
	PlaylistID int64 `json:"playlist_id"`
	Position   int32 `json:"position"`
}

func (q *Queries) LinkVideoPlaylist(ctx context.Context, arg *LinkVideoPlaylistParams) error {
	_, err := q.db.Exec(ctx, linkVideoPlaylist, arg.VideoID, arg.PlaylistID, arg.Position)
	return err
}
