// Package queue is a small Postgres backed job queue. Jobs are rows in
// queue_jobs claimed with SKIP LOCKED; inserts and revocations are announced
// through NOTIFY so idle workers wake without waiting for the next poll.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/sys/unix"
	"thirdcoast.systems/fetchd/internal/db"
)

const (
	channelJobs        = "queue_jobs"
	channelRevocations = "queue_revocations"
)

// Queries is the subset of db.Queries the queue runs on.
type Queries interface {
	InsertQueueJob(ctx context.Context, arg *db.InsertQueueJobParams) (*db.QueueJob, error)
	GetQueueJob(ctx context.Context, id pgtype.UUID) (*db.QueueJob, error)
	DequeueQueueJob(ctx context.Context, names []string) (*db.QueueJob, error)
	FinishQueueJob(ctx context.Context, arg *db.FinishQueueJobParams) error
	RequeueQueueJob(ctx context.Context, id pgtype.UUID) error
	RevokeQueueJob(ctx context.Context, arg *db.RevokeQueueJobParams) (*db.QueueJob, error)
	ListRevokedRunningJobs(ctx context.Context) ([]*db.QueueJob, error)
	RecoverStuckQueueJobs(ctx context.Context, names []string) (int64, error)
}

// Job is a claimed queue entry handed to a HandlerFunc.
type Job struct {
	ID       uuid.UUID
	Name     string
	Args     json.RawMessage
	Attempts int
}

func jobFromRow(r *db.QueueJob) *Job {
	return &Job{
		ID:       db.FromUUID(r.ID),
		Name:     r.Name,
		Args:     json.RawMessage(r.Args),
		Attempts: int(r.Attempts),
	}
}

// Decode unmarshals the job arguments into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Args, v); err != nil {
		return fmt.Errorf("queue: decode %s args: %w", j.Name, err)
	}
	return nil
}

// HandlerFunc runs one job. A returned error marks the job failed; jobs are not retried.
type HandlerFunc func(ctx context.Context, job *Job) error

// RevokeOptions control how a revoked job that is already running is stopped.
// Without Terminate a running job is left to finish.
type RevokeOptions struct {
	Terminate bool
	// Signal is the name sent to the job's child process, e.g. "SIGUSR1". Empty means SIGTERM.
	Signal string
}

// RevokedError is the cancellation cause of a terminated job's context.
type RevokedError struct {
	JobID uuid.UUID
	Sig   os.Signal
}

func (e *RevokedError) Error() string {
	return fmt.Sprintf("queue: job %s revoked (%s)", e.JobID, e.Sig)
}

// Signal is read by process runners to pick the signal for the child.
func (e *RevokedError) Signal() os.Signal { return e.Sig }

// ParseSignal maps a signal name ("SIGUSR1", "usr1") to a signal. Unknown or
// empty names are SIGTERM.
func ParseSignal(name string) os.Signal {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return syscall.SIGTERM
	}
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if s := unix.SignalNum(name); s != 0 {
		return s
	}
	return syscall.SIGTERM
}
