package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const attemptColumns = `id, download_id, status, downloaded_bytes, total_bytes, eta, elapsed, speed, filename, tmpfilename, message, task_id, created_at, updated_at`

func scanAttempt(row interface{ Scan(...any) error }) (*DownloadAttempt, error) {
	var i DownloadAttempt
	err := row.Scan(
		&i.ID,
		&i.DownloadID,
		&i.Status,
		&i.DownloadedBytes,
		&i.TotalBytes,
		&i.Eta,
		&i.Elapsed,
		&i.Speed,
		&i.Filename,
		&i.Tmpfilename,
		&i.Message,
		&i.TaskID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const getAttempt = `-- name: GetAttempt :one
SELECT ` + attemptColumns + ` FROM download_attempts WHERE id = $1
`

func (q *Queries) GetAttempt(ctx context.Context, id int64) (*DownloadAttempt, error) {
	return scanAttempt(q.db.QueryRow(ctx, getAttempt, id))
}

const listAttemptsByDownload = `-- name: ListAttemptsByDownload :many
SELECT ` + attemptColumns + ` FROM download_attempts WHERE download_id = $1 ORDER BY id
`

func (q *Queries) ListAttemptsByDownload(ctx context.Context, downloadID int64) ([]*DownloadAttempt, error) {
	rows, err := q.db.Query(ctx, listAttemptsByDownload, downloadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*DownloadAttempt{}
	for rows.Next() {
		i, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertAttempt = `-- name: InsertAttempt :one
INSERT INTO download_attempts (download_id, status)
VALUES ($1, $2)
RETURNING ` + attemptColumns + `
`

type InsertAttemptParams struct {
	DownloadID int64         `json:"download_id"`
	Status     AttemptStatus `json:"status"`
}

func (q *Queries) InsertAttempt(ctx context.Context, arg *InsertAttemptParams) (*DownloadAttempt, error) {
	return scanAttempt(q.db.QueryRow(ctx, insertAttempt, arg.DownloadID, arg.Status))
}

// Terminal rows are never rewritten; zero rows affected means the attempt already
// reached Finished, Error or Canceled.
const updateAttempt = `-- name: UpdateAttempt :execrows
UPDATE download_attempts SET
    status           = $2,
    downloaded_bytes = $3,
    total_bytes      = $4,
    eta              = $5,
    elapsed          = $6,
    speed            = $7,
    filename         = $8,
    tmpfilename      = $9,
    message          = $10,
    updated_at       = now()
WHERE id = $1
  AND status NOT IN ('Finished', 'Error', 'Canceled')
`

type UpdateAttemptParams struct {
	ID              int64         `json:"id"`
	Status          AttemptStatus `json:"status"`
	DownloadedBytes *int64        `json:"downloaded_bytes"`
	TotalBytes      *int64        `json:"total_bytes"`
	Eta             *int64        `json:"eta"`
	Elapsed         *float64      `json:"elapsed"`
	Speed           *float64      `json:"speed"`
	Filename        *string       `json:"filename"`
	Tmpfilename     *string       `json:"tmpfilename"`
	Message         *string       `json:"message"`
}

func (q *Queries) UpdateAttempt(ctx context.Context, arg *UpdateAttemptParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateAttempt,
		arg.ID,
		arg.Status,
		arg.DownloadedBytes,
		arg.TotalBytes,
		arg.Eta,
		arg.Elapsed,
		arg.Speed,
		arg.Filename,
		arg.Tmpfilename,
		arg.Message,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const setAttemptTaskID = `-- name: SetAttemptTaskID :exec
UPDATE download_attempts SET task_id = $2, updated_at = now() WHERE id = $1
`

type SetAttemptTaskIDParams struct {
	ID     int64       `json:"id"`
	TaskID pgtype.UUID `json:"task_id"`
}

func (q *Queries) SetAttemptTaskID(ctx context.Context, arg *SetAttemptTaskIDParams) error {
	_, err := q.db.Exec(ctx, setAttemptTaskID, arg.ID, arg.TaskID)
	return err
}
