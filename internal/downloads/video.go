package downloads

import (
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

type Video struct {
	ID         int64     `json:"-"`
	VideoID    string    `json:"video_id"`
	Name       string    `json:"name"`
	WebpageURL string    `json:"webpage_url"`
	Duration   *float64  `json:"duration"`
	Extractor  string    `json:"extractor"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Playlist struct {
	ID         int64     `json:"-"`
	PlaylistID string    `json:"playlist_id"`
	Name       string    `json:"name"`
	WebpageURL string    `json:"webpage_url"`
	Extractor  string    `json:"extractor"`
	Videos     []Video   `json:"videos"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var titlePolicy = bluemonday.StrictPolicy()

// cleanTitle strips markup from extractor supplied titles and NFC-normalises them.
func cleanTitle(s string) string {
	s = titlePolicy.Sanitize(norm.NFC.String(s))
	return strings.TrimSpace(html.UnescapeString(s))
}

func videoFromInfo(info *ytdlp.Info) Video {
	return Video{
		VideoID:    info.ID,
		Name:       cleanTitle(info.Title),
		WebpageURL: info.WebpageURL,
		Duration:   info.Duration,
		Extractor:  info.Extractor,
	}
}

func playlistFromInfo(info *ytdlp.Info) Playlist {
	return Playlist{
		PlaylistID: info.ID,
		Name:       cleanTitle(info.Title),
		WebpageURL: info.WebpageURL,
		Extractor:  info.Extractor,
	}
}
