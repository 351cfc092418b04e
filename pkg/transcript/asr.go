package transcript

import (
	"strings"

	"github.com/mediabrief/mediabrief/pkg/stt"
)

// pauseGapSeconds is the silence length that starts a new segment when
// grouping oracle words.
const pauseGapSeconds = 1.0

// maxSegmentWords caps segment length so a pause-free speaker still
// produces readable spans.
const maxSegmentWords = 80

// GroupWords turns the oracle's word stream into segments, splitting at
// pauses and at a maximum word count.
func GroupWords(words []stt.Word) []Segment {
	if len(words) == 0 {
		return nil
	}

	var out []Segment
	start := words[0].Start
	var parts []string
	var lastEnd float64

	flush := func() {
		if len(parts) == 0 {
			return
		}
		out = append(out, Segment{
			StartSeconds:    start,
			Text:            strings.Join(parts, " "),
			DurationSeconds: lastEnd - start,
		})
		parts = nil
	}

	for _, w := range words {
		if len(parts) > 0 && (w.Start-lastEnd >= pauseGapSeconds || len(parts) >= maxSegmentWords) {
			flush()
			start = w.Start
		}
		parts = append(parts, w.Word)
		lastEnd = w.End
	}
	flush()
	return out
}
