package downloads

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local runs without Postgres.
// Values are copied in and out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	videos    map[string]*Video
	downloads map[uuid.UUID]*Download
	attempts  map[int64]*Attempt
	playlists map[string]*Playlist
	infos     map[string]map[string]any
	locks     map[string]bool
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:    map[string]*Video{},
		downloads: map[uuid.UUID]*Download{},
		attempts:  map[int64]*Attempt{},
		playlists: map[string]*Playlist{},
		infos:     map[string]map[string]any{},
		locks:     map[string]bool{},
		now:       time.Now,
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func copyAttempt(a *Attempt) *Attempt {
	c := *a
	return &c
}

// snapshot is called with s.mu held.
func (s *MemoryStore) snapshot(d *Download) *Download {
	c := *d
	c.Options = append(json.RawMessage(nil), d.Options...)
	c.Attempts = nil
	for _, a := range d.Attempts {
		c.Attempts = append(c.Attempts, copyAttempt(s.attempts[a.ID]))
	}
	return &c
}

func (s *MemoryStore) GetDownload(_ context.Context, downloadID uuid.UUID) (*Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.downloads[downloadID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.snapshot(d), nil
}

func (s *MemoryStore) GetDownloadByVideo(_ context.Context, videoID string) (*Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.downloads {
		if d.Video.VideoID == videoID {
			return s.snapshot(d), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateDownload(_ context.Context, video *Video, options json.RawMessage) (*Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.downloads {
		if d.Video.VideoID == video.VideoID {
			return s.snapshot(d), nil
		}
	}
	now := s.now()
	d := &Download{
		ID:         s.id(),
		DownloadID: uuid.New(),
		Video:      *video,
		Options:    append(json.RawMessage(nil), options...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.downloads[d.DownloadID] = d
	return s.snapshot(d), nil
}

func (s *MemoryStore) SaveDownload(_ context.Context, d *Download) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.downloads[d.DownloadID]
	if !ok {
		return ErrNotFound
	}
	stored.Options = append(json.RawMessage(nil), d.Options...)
	if d.BlockFurther && !stored.BlockFurther {
		stored.BlockFurther = true
	}
	if d.BlockReason != nil {
		r := *d.BlockReason
		stored.BlockReason = &r
	}
	stored.UpdatedAt = s.now()
	d.BlockFurther = stored.BlockFurther
	d.BlockReason = stored.BlockReason
	return nil
}

func (s *MemoryStore) AddAttempt(_ context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owner *Download
	for _, d := range s.downloads {
		if d.ID == a.DownloadID {
			owner = d
		}
	}
	if owner == nil {
		return fmt.Errorf("add attempt: download %d: %w", a.DownloadID, ErrNotFound)
	}
	now := s.now()
	a.ID = s.id()
	a.CreatedAt, a.UpdatedAt = now, now
	s.attempts[a.ID] = copyAttempt(a)
	owner.Attempts = append(owner.Attempts, &Attempt{ID: a.ID})
	return nil
}

func (s *MemoryStore) SaveAttempt(_ context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.attempts[a.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.IsTerminal() {
		return fmt.Errorf("%w: attempt %d", ErrTerminal, a.ID)
	}
	c := copyAttempt(a)
	c.TaskID = stored.TaskID
	c.CreatedAt = stored.CreatedAt
	c.UpdatedAt = s.now()
	s.attempts[a.ID] = c
	return nil
}

func (s *MemoryStore) SetAttemptTask(_ context.Context, attemptID int64, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	stored.TaskID = taskID
	return nil
}

func (s *MemoryStore) GetAttempt(_ context.Context, attemptID int64) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAttempt(stored), nil
}

func (s *MemoryStore) GetVideo(_ context.Context, videoID string) (*Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[videoID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *v
	return &c, nil
}

func (s *MemoryStore) upsertVideo(v *Video, info map[string]any) {
	now := s.now()
	if existing, ok := s.videos[v.VideoID]; ok {
		v.ID, v.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		v.ID, v.CreatedAt = s.id(), now
	}
	v.UpdatedAt = now
	c := *v
	s.videos[v.VideoID] = &c
	if info != nil {
		s.infos[v.VideoID] = info
	}
}

func (s *MemoryStore) UpsertVideo(_ context.Context, v *Video, info map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertVideo(v, info)
	return nil
}

func (s *MemoryStore) UpsertPlaylist(_ context.Context, p *Playlist, info map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range p.Videos {
		s.upsertVideo(&p.Videos[i], nil)
	}
	now := s.now()
	if existing, ok := s.playlists[p.PlaylistID]; ok {
		p.ID, p.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		p.ID, p.CreatedAt = s.id(), now
	}
	p.UpdatedAt = now
	c := *p
	c.Videos = append([]Video(nil), p.Videos...)
	s.playlists[p.PlaylistID] = &c
	if info != nil {
		s.infos["playlist:"+p.PlaylistID] = info
	}
	return nil
}

// VideoInfo returns the stored raw info of a video, if any.
func (s *MemoryStore) VideoInfo(videoID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infos[videoID]
}

func (s *MemoryStore) Lock(_ context.Context, key string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] {
		return nil, ErrLocked
	}
	s.locks[key] = true
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.locks, key)
	}, nil
}
