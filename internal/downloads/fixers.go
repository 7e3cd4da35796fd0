package downloads

import (
	"path/filepath"

	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

// OutputPathFixer roots the output template under basePath, falling back to
// defaultTemplate when the options carry none.
func OutputPathFixer(basePath, defaultTemplate string) OptionsFixer {
	return func(opts ytdlp.Options) {
		tmpl := opts.String(ytdlp.OptOutputTemplate)
		if m, ok := opts[ytdlp.OptOutputTemplate].(map[string]any); ok {
			tmpl, _ = m["default"].(string)
		}
		if tmpl == "" {
			tmpl = defaultTemplate
		}
		if basePath != "" && !filepath.IsAbs(tmpl) {
			tmpl = filepath.Join(basePath, tmpl)
		}
		opts[ytdlp.OptOutputTemplate] = tmpl
	}
}

// ArchiveFixer sets the download archive when the options name none.
func ArchiveFixer(name string) OptionsFixer {
	return func(opts ytdlp.Options) {
		if name != "" && opts.DownloadArchive() == "" {
			opts[ytdlp.OptDownloadArchive] = name
		}
	}
}
