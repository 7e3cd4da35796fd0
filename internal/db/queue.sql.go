package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const queueJobColumns = `id, name, args, status, revoked, terminate, signal, attempts, last_error, created_at, started_at, finished_at, updated_at`

func scanQueueJob(row interface{ Scan(...any) error }) (*QueueJob, error) {
	var i QueueJob
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Args,
		&i.Status,
		&i.Revoked,
		&i.Terminate,
		&i.Signal,
		&i.Attempts,
		&i.LastError,
		&i.CreatedAt,
		&i.StartedAt,
		&i.FinishedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const insertQueueJob = `-- name: InsertQueueJob :one
INSERT INTO queue_jobs (id, name, args)
VALUES ($1, $2, $3)
RETURNING ` + queueJobColumns + `
`

type InsertQueueJobParams struct {
	ID   pgtype.UUID `json:"id"`
	Name string      `json:"name"`
	Args []byte      `json:"args"`
}

func (q *Queries) InsertQueueJob(ctx context.Context, arg *InsertQueueJobParams) (*QueueJob, error) {
	return scanQueueJob(q.db.QueryRow(ctx, insertQueueJob, arg.ID, arg.Name, arg.Args))
}

const getQueueJob = `-- name: GetQueueJob :one
SELECT ` + queueJobColumns + ` FROM queue_jobs WHERE id = $1
`

func (q *Queries) GetQueueJob(ctx context.Context, id pgtype.UUID) (*QueueJob, error) {
	return scanQueueJob(q.db.QueryRow(ctx, getQueueJob, id))
}

const dequeueQueueJob = `-- name: DequeueQueueJob :one
UPDATE queue_jobs SET
    status     = 'running',
    attempts   = attempts + 1,
    started_at = now(),
    updated_at = now()
WHERE id = (
    SELECT id FROM queue_jobs
    WHERE status = 'pending' AND NOT revoked AND name = ANY($1::text[])
    ORDER BY created_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + queueJobColumns + `
`

func (q *Queries) DequeueQueueJob(ctx context.Context, names []string) (*QueueJob, error) {
	return scanQueueJob(q.db.QueryRow(ctx, dequeueQueueJob, names))
}

const finishQueueJob = `-- name: FinishQueueJob :exec
UPDATE queue_jobs SET
    status      = CASE WHEN revoked THEN 'revoked' ELSE $2 END,
    last_error  = $3,
    finished_at = now(),
    updated_at  = now()
WHERE id = $1 AND status = 'running'
`

type FinishQueueJobParams struct {
	ID        pgtype.UUID    `json:"id"`
	Status    QueueJobStatus `json:"status"`
	LastError *string        `json:"last_error"`
}

func (q *Queries) FinishQueueJob(ctx context.Context, arg *FinishQueueJobParams) error {
	_, err := q.db.Exec(ctx, finishQueueJob, arg.ID, arg.Status, arg.LastError)
	return err
}

const requeueQueueJob = `-- name: RequeueQueueJob :exec
UPDATE queue_jobs SET
    status      = CASE WHEN revoked THEN 'revoked' ELSE 'pending' END,
    started_at  = NULL,
    finished_at = CASE WHEN revoked THEN now() ELSE NULL END,
    updated_at  = now()
WHERE id = $1 AND status = 'running'
`

func (q *Queries) RequeueQueueJob(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, requeueQueueJob, id)
	return err
}

const revokeQueueJob = `-- name: RevokeQueueJob :one
UPDATE queue_jobs SET
    status     = CASE WHEN status = 'pending' THEN 'revoked' ELSE status END,
    revoked    = true,
    terminate  = $2,
    signal     = $3,
    finished_at = CASE WHEN status = 'pending' THEN now() ELSE finished_at END,
    updated_at = now()
WHERE id = $1 AND status IN ('pending', 'running')
RETURNING ` + queueJobColumns + `
`

type RevokeQueueJobParams struct {
	ID        pgtype.UUID `json:"id"`
	Terminate bool        `json:"terminate"`
	Signal    *string     `json:"signal"`
}

func (q *Queries) RevokeQueueJob(ctx context.Context, arg *RevokeQueueJobParams) (*QueueJob, error) {
	return scanQueueJob(q.db.QueryRow(ctx, revokeQueueJob, arg.ID, arg.Terminate, arg.Signal))
}

const listRevokedRunningJobs = `-- name: ListRevokedRunningJobs :many
SELECT ` + queueJobColumns + ` FROM queue_jobs WHERE status = 'running' AND revoked
`

func (q *Queries) ListRevokedRunningJobs(ctx context.Context) ([]*QueueJob, error) {
	rows, err := q.db.Query(ctx, listRevokedRunningJobs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*QueueJob{}
	for rows.Next() {
		i, err := scanQueueJob(rows)
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

const recoverStuckQueueJobs = `-- name: RecoverStuckQueueJobs :execrows
UPDATE queue_jobs SET
    status      = 'failed',
    last_error  = 'worker restarted while job was running',
    finished_at = now(),
    updated_at  = now()
WHERE status = 'running' AND name = ANY($1::text[])
`

func (q *Queries) RecoverStuckQueueJobs(ctx context.Context, names []string) (int64, error) {
	result, err := q.db.Exec(ctx, recoverStuckQueueJobs, names)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listenQueueJobs = `-- name: ListenQueueJobs :exec
LISTEN queue_jobs
`

func (q *Queries) ListenQueueJobs(ctx context.Context) error {
	_, err := q.db.Exec(ctx, listenQueueJobs)
	return err
}

const listenQueueRevocations = `-- name: ListenQueueRevocations :exec
LISTEN queue_revocations
`

func (q *Queries) ListenQueueRevocations(ctx context.Context) error {
	_, err := q.db.Exec(ctx, listenQueueRevocations)
	return err
}
