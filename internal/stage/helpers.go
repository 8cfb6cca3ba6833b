package stage

import (
	"fmt"
	"os"
	"strings"

	"github.com/703deuce/upscale/internal/services"
)

// RequireArtifact verifies that a file recorded by an earlier stage still
// exists on disk and returns its trimmed path. On failure it returns a
// services.ErrValidation suitable for stage Execute methods.
func RequireArtifact(stageName, path, what string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", services.Wrap(
			services.ErrValidation, stageName, "locate "+what,
			fmt.Sprintf("No %s recorded for this item; rerun the preceding stage", what), nil)
	}
	if _, err := os.Stat(trimmed); err != nil {
		return "", services.Wrap(
			services.ErrValidation, stageName, "locate "+what,
			fmt.Sprintf("Recorded %s is missing from disk", what), err)
	}
	return trimmed, nil
}

// RequireDir verifies that a directory recorded by an earlier stage exists.
func RequireDir(stageName, path, what string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", services.Wrap(
			services.ErrValidation, stageName, "locate "+what,
			fmt.Sprintf("No %s recorded for this item; rerun the preceding stage", what), nil)
	}
	info, err := os.Stat(trimmed)
	if err != nil {
		return "", services.Wrap(
			services.ErrValidation, stageName, "locate "+what,
			fmt.Sprintf("Recorded %s is missing from disk", what), err)
	}
	if !info.IsDir() {
		return "", services.Wrap(
			services.ErrValidation, stageName, "locate "+what,
			fmt.Sprintf("Recorded %s is not a directory", what), nil)
	}
	return trimmed, nil
}
