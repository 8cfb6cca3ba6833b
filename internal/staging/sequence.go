package staging

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// CountSequence counts the numbered frames in dir carrying the given prefix
// and verifies the indices run contiguously from 1. A gap is fatal for
// reassembly: ffmpeg would stop at the gap and silently drop every frame
// after it.
func CountSequence(dir, prefix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read sequence directory: %w", err)
	}

	indices := make([]int, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index, ok := sequenceIndex(entry.Name(), prefix)
		if !ok {
			continue
		}
		indices = append(indices, index)
	}

	if len(indices) == 0 {
		return 0, fmt.Errorf("no %s*%s frames in %s", prefix, FrameExt, dir)
	}

	sort.Ints(indices)
	for i, index := range indices {
		if index != i+1 {
			return 0, fmt.Errorf("frame sequence gap: expected %s, found %s",
				SequenceName(prefix, i+1), SequenceName(prefix, index))
		}
	}
	return len(indices), nil
}

func sequenceIndex(name, prefix string) (int, bool) {
	rest, found := strings.CutPrefix(name, prefix)
	if !found {
		return 0, false
	}
	numeric, found := strings.CutSuffix(rest, FrameExt)
	if !found || len(numeric) != indexDigits {
		return 0, false
	}
	index, err := strconv.Atoi(numeric)
	if err != nil || index <= 0 {
		return 0, false
	}
	return index, true
}
