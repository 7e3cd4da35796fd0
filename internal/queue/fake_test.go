package queue

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"thirdcoast.systems/fetchd/internal/db"
)

// memQueries mirrors the queue_jobs SQL semantics in memory.
type memQueries struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*db.QueueJob
	order     []uuid.UUID
	recovered []string
	finished  chan uuid.UUID
}

func newMemQueries() *memQueries {
	return &memQueries{
		jobs:     map[uuid.UUID]*db.QueueJob{},
		finished: make(chan uuid.UUID, 16),
	}
}

func (m *memQueries) InsertQueueJob(_ context.Context, arg *db.InsertQueueJobParams) (*db.QueueJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := db.FromUUID(arg.ID)
	j := &db.QueueJob{ID: arg.ID, Name: arg.Name, Args: arg.Args, Status: db.QueueJobStatusPending}
	m.jobs[id] = j
	m.order = append(m.order, id)
	c := *j
	return &c, nil
}

func (m *memQueries) GetQueueJob(_ context.Context, id pgtype.UUID) (*db.QueueJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[db.FromUUID(id)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := *j
	return &c, nil
}

func (m *memQueries) DequeueQueueJob(_ context.Context, names []string) (*db.QueueJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		j := m.jobs[id]
		if j.Status != db.QueueJobStatusPending || j.Revoked || !slices.Contains(names, j.Name) {
			continue
		}
		j.Status = db.QueueJobStatusRunning
		j.Attempts++
		c := *j
		return &c, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memQueries) FinishQueueJob(_ context.Context, arg *db.FinishQueueJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := db.FromUUID(arg.ID)
	j, ok := m.jobs[id]
	if !ok || j.Status != db.QueueJobStatusRunning {
		return nil
	}
	j.Status = arg.Status
	if j.Revoked {
		j.Status = db.QueueJobStatusRevoked
	}
	j.LastError = arg.LastError
	m.finished <- id
	return nil
}

func (m *memQueries) RequeueQueueJob(_ context.Context, id pgtype.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	jid := db.FromUUID(id)
	j, ok := m.jobs[jid]
	if !ok || j.Status != db.QueueJobStatusRunning {
		return nil
	}
	j.Status = db.QueueJobStatusPending
	if j.Revoked {
		j.Status = db.QueueJobStatusRevoked
	}
	m.finished <- jid
	return nil
}

func (m *memQueries) RevokeQueueJob(_ context.Context, arg *db.RevokeQueueJobParams) (*db.QueueJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[db.FromUUID(arg.ID)]
	if !ok || (j.Status != db.QueueJobStatusPending && j.Status != db.QueueJobStatusRunning) {
		return nil, pgx.ErrNoRows
	}
	if j.Status == db.QueueJobStatusPending {
		j.Status = db.QueueJobStatusRevoked
	}
	j.Revoked = true
	j.Terminate = arg.Terminate
	j.Signal = arg.Signal
	c := *j
	return &c, nil
}

func (m *memQueries) ListRevokedRunningJobs(_ context.Context) ([]*db.QueueJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*db.QueueJob
	for _, j := range m.jobs {
		if j.Status == db.QueueJobStatusRunning && j.Revoked {
			c := *j
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memQueries) RecoverStuckQueueJobs(_ context.Context, names []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovered = names
	return 0, nil
}

func (m *memQueries) job(id uuid.UUID) db.QueueJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}
