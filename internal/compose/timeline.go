package compose

import (
	"time"

	"mediafactory/internal/script"
	"mediafactory/internal/textutil"
)

// SectionTimings splits total across sections in proportion to the words in
// each heading and body. Every section counts at least one word, and the
// last section absorbs rounding so the timings sum to total exactly.
func SectionTimings(sections []script.Section, total time.Duration) []time.Duration {
	if len(sections) == 0 || total <= 0 {
		return nil
	}
	counts := make([]int, len(sections))
	sum := 0
	for i, section := range sections {
		n := textutil.WordCount(section.Body + " " + section.Heading)
		if n == 0 {
			n = 1
		}
		counts[i] = n
		sum += n
	}
	timings := make([]time.Duration, len(sections))
	var used time.Duration
	for i, n := range counts {
		if i == len(counts)-1 {
			timings[i] = total - used
			break
		}
		d := time.Duration(int64(total) * int64(n) / int64(sum)).Truncate(time.Millisecond)
		timings[i] = d
		used += d
	}
	return timings
}
