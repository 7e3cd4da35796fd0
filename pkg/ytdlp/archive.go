package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Archive records which videos were already downloaded so they are skipped.
// name selects the archive; entry is "<extractor> <id>".
type Archive interface {
	Exists(ctx context.Context, name, entry string) (bool, error)
	Add(ctx context.Context, name, entry string) error
	Remove(ctx context.Context, name, entry string) error
}

// Lister is implemented by archives that can enumerate their entries.
type Lister interface {
	List(ctx context.Context, name string) ([]string, error)
}

// SetArchive keeps archives in memory.
type SetArchive struct {
	mu      sync.RWMutex
	entries map[string]map[string]struct{}
}

func NewSetArchive() *SetArchive {
	return &SetArchive{entries: map[string]map[string]struct{}{}}
}

func (a *SetArchive) Exists(_ context.Context, name, entry string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.entries[name][entry]
	return ok, nil
}

func (a *SetArchive) Add(_ context.Context, name, entry string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.entries[name]
	if !ok {
		set = map[string]struct{}{}
		a.entries[name] = set
	}
	set[entry] = struct{}{}
	return nil
}

func (a *SetArchive) Remove(_ context.Context, name, entry string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries[name], entry)
	return nil
}

// List returns the entries of name in sorted order.
func (a *SetArchive) List(_ context.Context, name string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.entries[name]))
	for e := range a.entries[name] {
		out = append(out, e)
	}
	sort.Strings(out)
	return out, nil
}

// FileArchive stores each archive as a yt-dlp compatible text file (one entry
// per line) under Dir. Access is serialised across processes with flock(2).
type FileArchive struct {
	Dir string
}

func NewFileArchive(dir string) *FileArchive {
	return &FileArchive{Dir: dir}
}

// Path resolves an archive name; absolute names are used as is.
func (a *FileArchive) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.Dir, filepath.Base(name))
}

func (a *FileArchive) open(name string, flag int, lock int) (*os.File, error) {
	path := a.Path(name)
	if flag&os.O_CREATE != 0 {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), lock); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return f, nil
}

func readEntries(r io.Reader) ([]string, error) {
	var entries []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			entries = append(entries, line)
		}
	}
	return entries, sc.Err()
}

func (a *FileArchive) Exists(_ context.Context, name, entry string) (bool, error) {
	f, err := a.open(name, os.O_RDONLY, unix.LOCK_SH)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	entries, err := readEntries(f)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e == entry {
			return true, nil
		}
	}
	return false, nil
}

// List returns the entries of name in file order.
func (a *FileArchive) List(_ context.Context, name string) ([]string, error) {
	f, err := a.open(name, os.O_RDONLY, unix.LOCK_SH)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readEntries(f)
}

func (a *FileArchive) Add(_ context.Context, name, entry string) error {
	f, err := a.open(name, os.O_RDWR|os.O_CREATE, unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := readEntries(f)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e == entry {
			return nil
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	_, err = f.WriteString(entry + "\n")
	return err
}

func (a *FileArchive) Remove(_ context.Context, name, entry string) error {
	f, err := a.open(name, os.O_RDWR, unix.LOCK_EX)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := readEntries(f)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, e := range entries {
		if e != entry {
			b.WriteString(e + "\n")
		}
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err = f.WriteAt([]byte(b.String()), 0)
	return err
}

// ArchivalClient skips urls whose archive entry already exists and records
// each successful download.
type ArchivalClient struct {
	*Client
	Archive Archive
	Name    string
}

func (c *ArchivalClient) Download(ctx context.Context, urls []string) error {
	log := c.logger()
	for _, u := range urls {
		info, err := c.ExtractInfo(ctx, u)
		if err != nil {
			return err
		}
		if info.Type == "playlist" {
			// Entries are archived one by one.
			entries, err := info.EntryInfos()
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err := c.downloadOne(ctx, e, e.WebpageURLOr(u)); err != nil {
					return err
				}
			}
			continue
		}
		if err := c.downloadOne(ctx, info, u); err != nil {
			return err
		}
	}
	log.Debug("ytdlp: archival download complete", "archive", c.Name, "urls", len(urls))
	return nil
}

func (c *ArchivalClient) downloadOne(ctx context.Context, info *Info, url string) error {
	entry := info.ArchiveID()
	exists, err := c.Archive.Exists(ctx, c.Name, entry)
	if err != nil {
		return err
	}
	if exists {
		c.logger().Info("ytdlp: already recorded in the archive", "archive", c.Name, "entry", entry)
		return nil
	}
	if err := c.Client.Download(ctx, []string{url}); err != nil {
		return err
	}
	return c.Archive.Add(ctx, c.Name, entry)
}
