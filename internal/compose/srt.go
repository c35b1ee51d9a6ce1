package compose

import (
	"fmt"
	"io"
	"strings"
	"time"

	"mediafactory/internal/script"
	"mediafactory/internal/textutil"
)

// Cue is one subtitle block.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Lines []string
}

// BuildCues places each section body on screen for its timing, wrapped at wrap characters.
func BuildCues(sections []script.Section, timings []time.Duration, wrap int) []Cue {
	cues := make([]Cue, 0, len(sections))
	var at time.Duration
	for i, section := range sections {
		if i >= len(timings) {
			break
		}
		end := at + timings[i]
		if lines := textutil.Wrap(section.Body, wrap); len(lines) > 0 {
			cues = append(cues, Cue{Start: at, End: end, Lines: lines})
		}
		at = end
	}
	return cues
}

// WriteSRT encodes cues in SubRip format.
func WriteSRT(w io.Writer, cues []Cue) error {
	if err := validateCues(cues); err != nil {
		return err
	}
	for i, cue := range cues {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), strings.Join(cue.Lines, "\n")); err != nil {
			return err
		}
	}
	return nil
}

// FormatTimestamp renders d as HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

func validateCues(cues []Cue) error {
	var last time.Duration
	for i, cue := range cues {
		switch {
		case cue.End <= cue.Start:
			return fmt.Errorf("cue %d ends before it starts", i+1)
		case cue.Start < last:
			return fmt.Errorf("cue %d overlaps the previous cue", i+1)
		case len(cue.Lines) == 0:
			return fmt.Errorf("cue %d has no text", i+1)
		}
		last = cue.End
	}
	return nil
}
