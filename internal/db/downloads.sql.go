package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const downloadColumns = `d.id, d.download_id, d.video_id, d.options, d.block_further, d.block_reason, d.created_at, d.updated_at`

func scanDownload(row interface{ Scan(...any) error }) (*Download, error) {
	var i Download
	err := row.Scan(
		&i.ID,
		&i.DownloadID,
		&i.VideoID,
		&i.Options,
		&i.BlockFurther,
		&i.BlockReason,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const getDownload = `-- name: GetDownload :one
SELECT ` + downloadColumns + ` FROM downloads d WHERE d.id = $1
`

func (q *Queries) GetDownload(ctx context.Context, id int64) (*Download, error) {
	return scanDownload(q.db.QueryRow(ctx, getDownload, id))
}

const getDownloadByDownloadID = `-- name: GetDownloadByDownloadID :one
SELECT ` + downloadColumns + ` FROM downloads d WHERE d.download_id = $1
`

func (q *Queries) GetDownloadByDownloadID(ctx context.Context, downloadID pgtype.UUID) (*Download, error) {
	return scanDownload(q.db.QueryRow(ctx, getDownloadByDownloadID, downloadID))
}

const getDownloadByVideoID = `-- name: GetDownloadByVideoID :one
SELECT ` + downloadColumns + `
FROM downloads d
JOIN videos v ON v.id = d.video_id
WHERE v.video_id = $1
`

func (q *Queries) GetDownloadByVideoID(ctx context.Context, videoID string) (*Download, error) {
	return scanDownload(q.db.QueryRow(ctx, getDownloadByVideoID, videoID))
}

const insertDownload = `-- name: InsertDownload :one
INSERT INTO downloads AS d (download_id, video_id, options)
VALUES ($1, $2, $3)
RETURNING ` + downloadColumns + `
`

type InsertDownloadParams struct {
	DownloadID pgtype.UUID `json:"download_id"`
	VideoID    int64       `json:"video_id"`
	Options    []byte      `json:"options"`
}

func (q *Queries) InsertDownload(ctx context.Context, arg *InsertDownloadParams) (*Download, error) {
	return scanDownload(q.db.QueryRow(ctx, insertDownload, arg.DownloadID, arg.VideoID, arg.Options))
}

// block_further never goes back to false once set.
const updateDownload = `-- name: UpdateDownload :one
UPDATE downloads AS d SET
    options       = $2,
    block_further = d.block_further OR $3,
    block_reason  = COALESCE($4, d.block_reason),
    updated_at    = now()
WHERE d.id = $1
RETURNING ` + downloadColumns + `
`

type UpdateDownloadParams struct {
	ID           int64   `json:"id"`
	Options      []byte  `json:"options"`
	BlockFurther bool    `json:"block_further"`
	BlockReason  *string `json:"block_reason"`
}

func (q *Queries) UpdateDownload(ctx context.Context, arg *UpdateDownloadParams) (*Download, error) {
	return scanDownload(q.db.QueryRow(ctx, updateDownload,
		arg.ID,
		arg.Options,
		arg.BlockFurther,
		arg.BlockReason,
	))
}
