// Package videoid validates YouTube video and playlist identifiers and maps
// them to and from URLs.
package videoid

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidVideoID    = errors.New("invalid video id")
	ErrInvalidPlaylistID = errors.New("invalid playlist id")
	ErrNotYouTube        = errors.New("not a youtube url or id not found")
)

var (
	videoIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,64}$`)
)

// youtubeHosts are the hosts treated as the same site. Key: input host.
var youtubeHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtu.be":                 true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

func ValidateVideoID(id string) error {
	if !videoIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidVideoID, id)
	}
	return nil
}

func ValidatePlaylistID(id string) error {
	if !playlistIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidPlaylistID, id)
	}
	return nil
}

func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

func PlaylistURL(playlistID string) string {
	return "https://www.youtube.com/playlist?list=" + url.QueryEscape(playlistID)
}

// IsYouTubeHost reports whether host (with or without port) is a YouTube alias.
func IsYouTubeHost(host string) bool {
	return youtubeHosts[normalizeHost(host)]
}

// Ref is what a user supplied reference points at. Either field may be empty.
type Ref struct {
	VideoID    string
	PlaylistID string
}

// Parse accepts a bare video id or a YouTube URL (watch, youtu.be, shorts,
// live, embed, playlist) and returns the ids it names.
func Parse(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, errors.New("empty reference")
	}
	if ValidateVideoID(raw) == nil {
		return Ref{VideoID: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Ref{}, err
	}
	if u.Host == "" {
		if u, err = url.Parse("https://" + raw); err != nil {
			return Ref{}, err
		}
	}

	host := normalizeHost(u.Host)
	if !youtubeHosts[host] {
		return Ref{}, ErrNotYouTube
	}

	var ref Ref
	if host == "youtu.be" {
		ref.VideoID = firstPathSegment(u.Path)
	} else if v := u.Query().Get("v"); v != "" {
		ref.VideoID = v
	} else {
		for _, prefix := range []string{"/shorts/", "/live/", "/embed/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				ref.VideoID = firstPathSegment(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	}
	ref.PlaylistID = u.Query().Get("list")

	if ref.VideoID != "" {
		if err := ValidateVideoID(ref.VideoID); err != nil {
			return Ref{}, err
		}
	}
	if ref.PlaylistID != "" {
		if err := ValidatePlaylistID(ref.PlaylistID); err != nil {
			return Ref{}, err
		}
	}
	if ref.VideoID == "" && ref.PlaylistID == "" {
		return Ref{}, ErrNotYouTube
	}
	return ref, nil
}

func normalizeHost(hostport string) string {
	h := strings.TrimSpace(strings.ToLower(hostport))
	if h == "" {
		return ""
	}
	// url.URL.Host may include port.
	if strings.Contains(h, ":") {
		if parsed, err := url.Parse("//" + h); err == nil && parsed.Hostname() != "" {
			h = parsed.Hostname()
		}
	}
	return strings.TrimSuffix(h, ".")
}

func firstPathSegment(p string) string {
	p = strings.TrimPrefix(strings.TrimSpace(p), "/")
	seg, _, _ := strings.Cut(p, "/")
	return strings.TrimSpace(seg)
}
