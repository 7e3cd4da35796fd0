package application

import (
	"fmt"

	"thirdcoast.systems/fetchd/internal/config"
	"thirdcoast.systems/fetchd/internal/db"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

// OpenArchive returns the download archive backend named by YTDL_ARCHIVE_BACKEND.
// The memory backend does not survive restarts and is meant for development.
func OpenArchive(conf config.YtdlConfig, q *db.Queries) (ytdlp.Archive, error) {
	switch conf.ArchiveBackend {
	case "", "postgres":
		if q == nil {
			return nil, fmt.Errorf("postgres archive needs a database connection")
		}
		return db.NewPostgresArchive(q), nil
	case "file":
		return ytdlp.NewFileArchive(conf.ArchiveDir), nil
	case "memory":
		return ytdlp.NewSetArchive(), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", conf.ArchiveBackend)
	}
}
