package ytdlp

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Options is a youtube-dl style option dictionary. Keys follow the Python
// library names (outtmpl, noplaylist, download_archive, ...), which is also the
// JSON shape stored for each download.
type Options map[string]any

const (
	OptLogger              = "logger"
	OptProgressHooks       = "progress_hooks"
	OptDownloadArchive     = "download_archive"
	OptOutputTemplate      = "outtmpl"
	OptNoPlaylist          = "noplaylist"
	OptProgressWithNewline = "progress_with_newline"
	OptCookies             = "cookies"
	OptCookieFile          = "cookiefile"
)

// Clone returns a shallow copy; the progress hook slice is copied too.
func (o Options) Clone() Options {
	c := make(Options, len(o))
	maps.Copy(c, o)
	if hooks := o.ProgressHooks(); hooks != nil {
		c[OptProgressHooks] = append([]ProgressHook(nil), hooks...)
	}
	return c
}

// Has reports whether key is present and non-nil.
func (o Options) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return s
}

func (o Options) Bool(key string) (value bool, ok bool) {
	b, ok := o[key].(bool)
	return b, ok
}

// Logger returns the bound logger or slog.Default.
func (o Options) Logger() *slog.Logger {
	if l, ok := o[OptLogger].(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

func (o Options) ProgressHooks() []ProgressHook {
	hooks, _ := o[OptProgressHooks].([]ProgressHook)
	return hooks
}

func (o Options) AddProgressHook(h ProgressHook) {
	o[OptProgressHooks] = append(o.ProgressHooks(), h)
}

// DownloadArchive is the archive name; empty when unset.
func (o Options) DownloadArchive() string {
	return o.String(OptDownloadArchive)
}

type argKind int

const (
	argValue argKind = iota
	argFlag
	argList
)

type argSpec struct {
	flag    string
	kind    argKind
	negated string // flag emitted for an explicit false
}

var argSpecs = map[string]argSpec{
	"format":              {flag: "-f"},
	OptOutputTemplate:     {flag: "-o"},
	"ratelimit":           {flag: "-r"},
	"retries":             {flag: "-R"},
	"username":            {flag: "-u"},
	"password":            {flag: "-p"},
	"videopassword":       {flag: "--video-password"},
	"ap_mso":              {flag: "--ap-mso"},
	"ap_username":         {flag: "--ap-username"},
	"ap_password":         {flag: "--ap-password"},
	OptCookieFile:         {flag: "--cookies"},
	"proxy":               {flag: "--proxy"},
	"subtitleslangs":      {flag: "--sub-langs", kind: argList},
	"merge_output_format": {flag: "--merge-output-format"},
	"playlist_items":      {flag: "--playlist-items"},
	"socket_timeout":      {flag: "--socket-timeout"},

	OptNoPlaylist:          {flag: "--no-playlist", kind: argFlag, negated: "--yes-playlist"},
	"writesubtitles":       {flag: "--write-subs", kind: argFlag},
	"writeautomaticsub":    {flag: "--write-auto-subs", kind: argFlag},
	"writethumbnail":       {flag: "--write-thumbnail", kind: argFlag},
	"writeinfojson":        {flag: "--write-info-json", kind: argFlag},
	"writedescription":     {flag: "--write-description", kind: argFlag},
	OptProgressWithNewline: {flag: "--newline", kind: argFlag},
	"restrictfilenames":    {flag: "--restrict-filenames", kind: argFlag},
	"nooverwrites":         {flag: "--no-overwrites", kind: argFlag},
	"continuedl":           {flag: "--continue", kind: argFlag, negated: "--no-continue"},
	"ignoreerrors":         {flag: "--ignore-errors", kind: argFlag},
	"geo_bypass":           {flag: "--geo-bypass", kind: argFlag, negated: "--no-geo-bypass"},
	"quiet":                {flag: "--quiet", kind: argFlag},
	"nopart":               {flag: "--no-part", kind: argFlag},
}

// authKeys are also applied to metadata-only commands.
var authKeys = []string{"username", "password", "videopassword", "ap_mso", "ap_username", "ap_password", OptCookieFile, "proxy", "socket_timeout"}

// Args translates the options to yt-dlp command line arguments. Keys without a
// command line equivalent (logger, progress_hooks, download_archive, ...) are skipped.
func (o Options) Args() ([]string, error) {
	return o.argsFor(slices.Sorted(maps.Keys(o)))
}

func (o Options) authArgs() ([]string, error) {
	return o.argsFor(authKeys)
}

func (o Options) argsFor(keys []string) ([]string, error) {
	var args []string
	for _, key := range keys {
		spec, ok := argSpecs[key]
		if !ok || !o.Has(key) {
			continue
		}
		v := o[key]

		switch spec.kind {
		case argFlag:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("ytdlp: option %s: expected bool, got %T", key, v)
			}
			if b {
				args = append(args, spec.flag)
			} else if spec.negated != "" {
				args = append(args, spec.negated)
			}
		case argList:
			s, err := listValue(v)
			if err != nil {
				return nil, fmt.Errorf("ytdlp: option %s: %w", key, err)
			}
			args = append(args, spec.flag, s)
		default:
			if key == OptOutputTemplate {
				// outtmpl may also be a {"default": ...} dictionary.
				if m, ok := v.(map[string]any); ok {
					v = m["default"]
				}
			}
			s, err := scalarValue(v)
			if err != nil {
				return nil, fmt.Errorf("ytdlp: option %s: %w", key, err)
			}
			args = append(args, spec.flag, s)
		}
	}
	return args, nil
}

func scalarValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

func listValue(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []string:
		return strings.Join(t, ","), nil
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			s, err := scalarValue(e)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("unsupported list type %T", v)
	}
}
