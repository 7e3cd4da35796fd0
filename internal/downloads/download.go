package downloads

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Download is the per-video aggregate owning the attempt history.
// Attempts are append-only and ordered oldest first.
type Download struct {
	ID           int64           `json:"-"`
	DownloadID   uuid.UUID       `json:"download_id"`
	Video        Video           `json:"video"`
	Options      json.RawMessage `json:"options"`
	BlockFurther bool            `json:"block_further"`
	BlockReason  *string         `json:"block_reason"`
	Attempts     []*Attempt      `json:"attempts"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// LatestAttempt returns the newest attempt or nil.
func (d *Download) LatestAttempt() *Attempt {
	if len(d.Attempts) == 0 {
		return nil
	}
	return d.Attempts[len(d.Attempts)-1]
}

// CanStartNewAttempt is true with no attempts or when the latest failed or was canceled.
func (d *Download) CanStartNewAttempt() bool {
	a := d.LatestAttempt()
	return a == nil || a.IsFailed() || a.IsCanceled()
}

// StartNewAttempt appends a Pending attempt. Callers check CanStartNewAttempt first.
func (d *Download) StartNewAttempt() *Attempt {
	a := &Attempt{DownloadID: d.ID, Status: StatusPending}
	d.Attempts = append(d.Attempts, a)
	return a
}

func (d *Download) CountAttempts(status Status) int {
	n := 0
	for _, a := range d.Attempts {
		if a.Status.Is(status) {
			n++
		}
	}
	return n
}

// Block stops further attempts. With propagate the latest attempt is also
// marked as failed with the same reason; the returned error is that transition's.
func (d *Download) Block(reason string, when time.Time, propagate bool) error {
	msg := fmt.Sprintf("Blocked at %s: %s", formatWhen(when), reason)
	d.BlockFurther = true
	d.BlockReason = &msg

	if !propagate {
		return nil
	}
	if a := d.LatestAttempt(); a != nil {
		return a.SetError(reason, when)
	}
	return nil
}
