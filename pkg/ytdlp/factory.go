package ytdlp

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Downloader is a configured extractor ready to download urls.
type Downloader interface {
	Download(ctx context.Context, urls []string) error
	Close() error
}

// Factory builds a Downloader from finalised options.
type Factory struct {
	// Path to yt-dlp; empty means PATH lookup.
	Path      string
	ExtraArgs []string
	WaitDelay time.Duration

	// Archive backs the download_archive option. When nil the option is ignored.
	Archive Archive
}

// New configures a client for opts. Inline cookie content is written to a
// temp file removed by Close. When a download archive is named and the factory
// has an Archive, the client checks and records entries around each download.
func (f *Factory) New(ctx context.Context, opts Options) (Downloader, error) {
	opts = opts.Clone()
	c := &Client{
		Path:      f.Path,
		Options:   opts,
		ExtraArgs: f.ExtraArgs,
		WaitDelay: f.WaitDelay,
	}

	if cookies := opts.String(OptCookies); cookies != "" {
		path, err := createTempCookiesFile(cookies)
		if err != nil {
			return nil, fmt.Errorf("ytdlp: create cookies file: %w", err)
		}
		c.tempFiles = append(c.tempFiles, path)
		opts[OptCookieFile] = path
	}
	delete(opts, OptCookies)

	if _, err := opts.Args(); err != nil {
		_ = c.Close()
		return nil, err
	}

	name := opts.DownloadArchive()
	if name == "" || f.Archive == nil {
		return c, nil
	}
	opts.Logger().Debug("ytdlp: using download archive", slog.String("archive", name))
	return &ArchivalClient{Client: c, Archive: f.Archive, Name: name}, nil
}
