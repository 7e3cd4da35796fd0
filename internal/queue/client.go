package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"thirdcoast.systems/fetchd/internal/db"
)

// Client enqueues and revokes jobs.
type Client struct {
	q Queries
}

func NewClient(q Queries) *Client {
	return &Client{q: q}
}

// Enqueue stores a pending job with args encoded as JSON and returns its id.
func (c *Client) Enqueue(ctx context.Context, name string, args any) (uuid.UUID, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return uuid.Nil, fmt.Errorf("queue: encode %s args: %w", name, err)
	}
	id := uuid.New()
	if _, err := c.q.InsertQueueJob(ctx, &db.InsertQueueJobParams{
		ID:   db.UUID(id),
		Name: name,
		Args: b,
	}); err != nil {
		return uuid.Nil, fmt.Errorf("queue: insert %s: %w", name, err)
	}
	return id, nil
}

// Revoke stops a job. A pending job never runs; a running one is only
// interrupted with opts.Terminate. Finished or unknown jobs are ignored.
func (c *Client) Revoke(ctx context.Context, id uuid.UUID, opts RevokeOptions) error {
	var sig *string
	if opts.Signal != "" {
		sig = &opts.Signal
	}
	_, err := c.q.RevokeQueueJob(ctx, &db.RevokeQueueJobParams{
		ID:        db.UUID(id),
		Terminate: opts.Terminate,
		Signal:    sig,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("queue: revoke %s: %w", id, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*db.QueueJob, error) {
	return c.q.GetQueueJob(ctx, db.UUID(id))
}

// Running reports whether a worker has claimed the job. Unknown jobs are not
// running.
func (c *Client) Running(ctx context.Context, id uuid.UUID) (bool, error) {
	j, err := c.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return j.Status == db.QueueJobStatusRunning, nil
}
