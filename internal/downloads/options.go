package downloads

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"thirdcoast.systems/fetchd/pkg/encryption"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

// RequestOptions are the extractor options a client may supply when starting a download.
type RequestOptions struct {
	Format            string   `json:"format,omitempty" validate:"omitempty,max=256"`
	OutputTemplate    string   `json:"outtmpl,omitempty" validate:"omitempty,max=1024,relpath"`
	RateLimit         string   `json:"ratelimit,omitempty" validate:"omitempty,max=32"`
	Retries           *int     `json:"retries,omitempty" validate:"omitempty,gte=0,lte=100"`
	Username          string   `json:"username,omitempty" validate:"omitempty,max=256"`
	Password          string   `json:"password,omitempty" validate:"omitempty,max=1024"`
	VideoPassword     string   `json:"videopassword,omitempty" validate:"omitempty,max=1024"`
	APMSO             string   `json:"ap_mso,omitempty" validate:"omitempty,max=128"`
	APUsername        string   `json:"ap_username,omitempty" validate:"omitempty,max=256"`
	APPassword        string   `json:"ap_password,omitempty" validate:"omitempty,max=1024"`
	Cookies           string   `json:"cookies,omitempty" validate:"omitempty,max=1048576"`
	Proxy             string   `json:"proxy,omitempty" validate:"omitempty,url"`
	WriteSubtitles    *bool    `json:"writesubtitles,omitempty"`
	WriteAutomaticSub *bool    `json:"writeautomaticsub,omitempty"`
	SubtitlesLangs    []string `json:"subtitleslangs,omitempty" validate:"omitempty,max=32,dive,min=1,max=32"`
	WriteThumbnail    *bool    `json:"writethumbnail,omitempty"`
	WriteInfoJSON     *bool    `json:"writeinfojson,omitempty"`
	MergeOutputFormat string   `json:"merge_output_format,omitempty" validate:"omitempty,oneof=mp4 mkv webm ogg flv mov avi"`
	RestrictFilenames *bool    `json:"restrictfilenames,omitempty"`
	NoOverwrites      *bool    `json:"nooverwrites,omitempty"`
	ContinueDL        *bool    `json:"continuedl,omitempty"`
	DownloadArchive   string   `json:"download_archive,omitempty" validate:"omitempty,max=128,excludesall=/\\"`
}

// sealedKeys are encrypted at rest in the download's stored options.
var sealedKeys = []string{"password", "videopassword", "ap_password", ytdlp.OptCookies}

// Sealer encrypts option credentials.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// Opener decrypts option credentials.
type Opener interface {
	Open(sealed string) (string, error)
}

// NewValidator returns a validator with the relpath rule registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("relpath", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		if filepath.IsAbs(p) {
			return false
		}
		for _, part := range strings.Split(filepath.ToSlash(p), "/") {
			if part == ".." {
				return false
			}
		}
		return true
	})
	return v
}

// Validate reports field errors wrapped in ErrInvalidOptions.
func (o *RequestOptions) Validate(v *validator.Validate) error {
	if err := v.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Seal renders the options as the JSON stored on the download, encrypting credentials.
func (o *RequestOptions) Seal(s Sealer) (json.RawMessage, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for _, k := range sealedKeys {
		v, ok := m[k].(string)
		if !ok || v == "" {
			continue
		}
		if s == nil {
			return nil, fmt.Errorf("seal %s: no key is configured", k)
		}
		sealed, err := s.Seal(v)
		if err != nil {
			return nil, fmt.Errorf("seal %s: %w", k, err)
		}
		m[k] = sealed
	}
	return json.Marshal(m)
}

// DecodeOptions parses stored options and opens sealed credentials.
func DecodeOptions(raw json.RawMessage, o Opener) (ytdlp.Options, error) {
	opts := ytdlp.Options{}
	if len(raw) == 0 || string(raw) == "null" {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	for _, k := range sealedKeys {
		v, ok := opts[k].(string)
		if !ok || !encryption.IsSealed(v) {
			continue
		}
		if o == nil {
			return nil, fmt.Errorf("decode options: %s is sealed and no key is configured", k)
		}
		plain, err := o.Open(v)
		if err != nil {
			return nil, fmt.Errorf("decode options: open %s: %w", k, err)
		}
		opts[k] = plain
	}
	return opts, nil
}
