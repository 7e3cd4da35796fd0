package db

import (
	"context"
)

const archiveEntryExists = `-- name: ArchiveEntryExists :one
SELECT EXISTS (SELECT 1 FROM download_archive WHERE archive_name = $1 AND entry = $2)
`

type ArchiveEntryParams struct {
	ArchiveName string `json:"archive_name"`
	Entry       string `json:"entry"`
}

func (q *Queries) ArchiveEntryExists(ctx context.Context, arg *ArchiveEntryParams) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, archiveEntryExists, arg.ArchiveName, arg.Entry).Scan(&exists)
	return exists, err
}

const insertArchiveEntry = `-- name: InsertArchiveEntry :exec
INSERT INTO download_archive (archive_name, entry) VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

func (q *Queries) InsertArchiveEntry(ctx context.Context, arg *ArchiveEntryParams) error {
	_, err := q.db.Exec(ctx, insertArchiveEntry, arg.ArchiveName, arg.Entry)
	return err
}

const deleteArchiveEntry = `-- name: DeleteArchiveEntry :exec
DELETE FROM download_archive WHERE archive_name = $1 AND entry = $2
`

func (q *Queries) DeleteArchiveEntry(ctx context.Context, arg *ArchiveEntryParams) error {
	_, err := q.db.Exec(ctx, deleteArchiveEntry, arg.ArchiveName, arg.Entry)
	return err
}

const listArchiveEntries = `-- name: ListArchiveEntries :many
SELECT entry FROM download_archive WHERE archive_name = $1 ORDER BY entry
`

func (q *Queries) ListArchiveEntries(ctx context.Context, archiveName string) ([]string, error) {
	rows, err := q.db.Query(ctx, listArchiveEntries, archiveName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []string{}
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, err
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
