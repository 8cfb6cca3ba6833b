package engine

import "strings"

// DefaultScale applies when a job specifies neither an explicit scale nor a
// target resolution and the configuration supplies no fallback.
const DefaultScale = 1.5

// ResolveScale picks a job's effective scale factor. An explicit positive
// scale always wins; otherwise a recognized target resolution decides, and
// jobs that specify neither use the fallback.
func ResolveScale(explicit float64, targetResolution string, fallback float64) float64 {
	if explicit > 0 {
		return explicit
	}
	switch strings.ToLower(strings.TrimSpace(targetResolution)) {
	case "2k", "1440p":
		return 2.0
	case "1080p":
		return 1.5
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultScale
}
