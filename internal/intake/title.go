package intake

import (
	"net/url"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// deriveTitle produces a human-readable job title from the source URL or
// path when the request did not supply one.
func deriveTitle(source string) string {
	base := sourceBasename(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Unknown Video"
	}
	return cases.Title(language.Und).String(title)
}

func sourceBasename(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}
	if strings.Contains(source, "://") {
		if u, err := url.Parse(source); err == nil && u.Path != "" {
			return filepath.Base(u.Path)
		}
	}
	return filepath.Base(source)
}

// sourceExt returns the staged filename extension for a source reference,
// falling back to .mp4 when the reference carries none worth keeping.
func sourceExt(source string) string {
	ext := filepath.Ext(sourceBasename(source))
	if ext == "" || len(ext) > 6 {
		return ".mp4"
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return ".mp4"
		}
	}
	return strings.ToLower(ext)
}
