package db

import (
	"context"
	"fmt"
)

// PostgresArchive is a download archive shared by every worker through the
// download_archive table. Entries are "<extractor> <video id>" strings.
type PostgresArchive struct {
	q *Queries
}

func NewPostgresArchive(q *Queries) *PostgresArchive {
	return &PostgresArchive{q: q}
}

func (a *PostgresArchive) Exists(ctx context.Context, name, entry string) (bool, error) {
	ok, err := a.q.ArchiveEntryExists(ctx, &ArchiveEntryParams{ArchiveName: name, Entry: entry})
	if err != nil {
		return false, fmt.Errorf("archive %s exists: %w", name, err)
	}
	return ok, nil
}

func (a *PostgresArchive) Add(ctx context.Context, name, entry string) error {
	if err := a.q.InsertArchiveEntry(ctx, &ArchiveEntryParams{ArchiveName: name, Entry: entry}); err != nil {
		return fmt.Errorf("archive %s add: %w", name, err)
	}
	return nil
}

func (a *PostgresArchive) Remove(ctx context.Context, name, entry string) error {
	if err := a.q.DeleteArchiveEntry(ctx, &ArchiveEntryParams{ArchiveName: name, Entry: entry}); err != nil {
		return fmt.Errorf("archive %s remove: %w", name, err)
	}
	return nil
}

func (a *PostgresArchive) List(ctx context.Context, name string) ([]string, error) {
	return a.q.ListArchiveEntries(ctx, name)
}
