package ffmpeg

import (
	"strconv"
	"strings"
	"time"
)

// Progress captures one block of ffmpeg's machine-readable progress stream.
type Progress struct {
	Frame   int64
	FPS     float64
	OutTime time.Duration
	Speed   string
	Done    bool
}

// applyProgressLine folds one key=value line into the accumulating progress
// block. A "progress=" line terminates the block: emit reports that the block
// is complete, done reports the final block of the run.
func applyProgressLine(p *Progress, line string) (done bool, emit bool) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return false, false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		if frame, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.Frame = frame
		}
	case "fps":
		if fps, err := strconv.ParseFloat(value, 64); err == nil {
			p.FPS = fps
		}
	case "out_time":
		if d, ok := parseClock(value); ok {
			p.OutTime = d
		}
	case "speed":
		p.Speed = value
	case "progress":
		return value == "end", true
	}
	return false, false
}

// parseClock converts ffmpeg's HH:MM:SS.micro clock into a duration.
func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, false
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, true
}
