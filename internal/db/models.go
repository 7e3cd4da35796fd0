package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type AttemptStatus string

const (
	AttemptStatusPending     AttemptStatus = "Pending"
	AttemptStatusDownloading AttemptStatus = "Downloading"
	AttemptStatusFinished    AttemptStatus = "Finished"
	AttemptStatusError       AttemptStatus = "Error"
	AttemptStatusCanceled    AttemptStatus = "Canceled"
)

type QueueJobStatus string

const (
	QueueJobStatusPending   QueueJobStatus = "pending"
	QueueJobStatusRunning   QueueJobStatus = "running"
	QueueJobStatusSucceeded QueueJobStatus = "succeeded"
	QueueJobStatusFailed    QueueJobStatus = "failed"
	QueueJobStatusRevoked   QueueJobStatus = "revoked"
)

type Video struct {
	ID         int64              `json:"id"`
	VideoID    string             `json:"video_id"`
	Name       string             `json:"name"`
	WebpageURL string             `json:"webpage_url"`
	Duration   *float64           `json:"duration"`
	Extractor  string             `json:"extractor"`
	Info       JSONMap            `json:"info"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
	UpdatedAt  pgtype.Timestamptz `json:"updated_at"`
}

type Playlist struct {
	ID         int64              `json:"id"`
	PlaylistID string             `json:"playlist_id"`
	Name       string             `json:"name"`
	WebpageURL string             `json:"webpage_url"`
	Extractor  string             `json:"extractor"`
	Info       JSONMap            `json:"info"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
	UpdatedAt  pgtype.Timestamptz `json:"updated_at"`
}

type Download struct {
	ID           int64              `json:"id"`
	DownloadID   pgtype.UUID        `json:"download_id"`
	VideoID      int64              `json:"video_id"`
	Options      []byte             `json:"options"`
	BlockFurther bool               `json:"block_further"`
	BlockReason  *string            `json:"block_reason"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type DownloadAttempt struct {
	ID              int64              `json:"id"`
	DownloadID      int64              `json:"download_id"`
	Status          AttemptStatus      `json:"status"`
	DownloadedBytes *int64             `json:"downloaded_bytes"`
	TotalBytes      *int64             `json:"total_bytes"`
	Eta             *int64             `json:"eta"`
	Elapsed         *float64           `json:"elapsed"`
	Speed           *float64           `json:"speed"`
	Filename        *string            `json:"filename"`
	Tmpfilename     *string            `json:"tmpfilename"`
	Message         *string            `json:"message"`
	TaskID          pgtype.UUID        `json:"task_id"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
	UpdatedAt       pgtype.Timestamptz `json:"updated_at"`
}

type QueueJob struct {
	ID         pgtype.UUID        `json:"id"`
	Name       string             `json:"name"`
	Args       []byte             `json:"args"`
	Status     QueueJobStatus     `json:"status"`
	Revoked    bool               `json:"revoked"`
	Terminate  bool               `json:"terminate"`
	Signal     *string            `json:"signal"`
	Attempts   int32              `json:"attempts"`
	LastError  *string            `json:"last_error"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
	StartedAt  pgtype.Timestamptz `json:"started_at"`
	FinishedAt pgtype.Timestamptz `json:"finished_at"`
	UpdatedAt  pgtype.Timestamptz `json:"updated_at"`
}

type DownloadArchive struct {
	ArchiveName string             `json:"archive_name"`
	Entry       string             `json:"entry"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}
