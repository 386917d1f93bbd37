package sources

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// hasAllowedExt reports whether path's extension is in exts. An empty exts
// list allows everything.
func hasAllowedExt(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// looksLikeText is a cheap binary-content guard: files containing a NUL
// byte, or that aren't valid UTF-8, are skipped rather than ingested as
// garbage text.
func looksLikeText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	probe := data
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	for _, b := range probe {
		if b == 0 {
			return false
		}
	}
	return utf8.Valid(probe)
}
