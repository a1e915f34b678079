package hardware

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FileReader reads switch state from a plain-text control file, for running
// the daemon off-device. The file holds one line: "paused", "podcast N", or
// "music N" with N in 1..12. A missing file reads as paused, knob 1, so a
// fresh install starts silent.
type FileReader struct {
	path string
}

// NewFileReader creates a reader backed by the control file at path.
func NewFileReader(path string) *FileReader {
	return &FileReader{path: path}
}

// Read parses the control file into a Reading.
func (f *FileReader) Read() (Reading, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Reading{Mode: ModePaused, Knob: 1}, nil
	}
	if err != nil {
		return Reading{}, fmt.Errorf("read control file: %w", err)
	}
	return ParseReading(string(data))
}

// ParseReading parses a control line such as "podcast 3".
func ParseReading(s string) (Reading, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) == 0 {
		return Reading{Mode: ModePaused, Knob: 1}, nil
	}

	var mode Mode
	switch fields[0] {
	case "paused", "pause":
		mode = ModePaused
	case "podcast":
		mode = ModePodcast
	case "music":
		mode = ModeMusic
	default:
		return Reading{}, fmt.Errorf("unknown mode %q", fields[0])
	}

	knob := 1
	if len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return Reading{}, fmt.Errorf("invalid knob position %q", fields[1])
		}
		if n < 1 || n > KnobPositions {
			return Reading{}, fmt.Errorf("knob position %d out of range 1..%d", n, KnobPositions)
		}
		knob = n
	}

	return Reading{Mode: mode, Knob: knob}, nil
}

// StaticReader always reports the same reading. Used in tests and as the
// fallback when no control source is configured.
type StaticReader struct {
	Reading Reading
}

// Read returns the fixed reading.
func (s *StaticReader) Read() (Reading, error) {
	return s.Reading, nil
}
