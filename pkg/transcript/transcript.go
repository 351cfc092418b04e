// Package transcript produces timestamped transcripts for media content.
package transcript

import (
	"fmt"
	"strings"
)

// Source tags how a transcript was obtained.
type Source string

const (
	SourcePlatformNative Source = "platform_native"
	SourceOracleASR      Source = "oracle_asr"
	SourceAligned        Source = "aligned"
)

// Segment is one timed span of transcript text.
type Segment struct {
	StartSeconds    float64 `json:"start_seconds"`
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Speaker         string  `json:"speaker,omitempty"`
}

// Transcript is an ordered sequence of segments plus its provenance.
type Transcript struct {
	Segments []Segment `json:"segments"`
	Source   Source    `json:"source"`
	// Dense marks transcripts with very short entries (platform captions)
	// that need regrouping before presentation.
	Dense bool `json:"dense,omitempty"`
}

// Empty reports whether the transcript carries no text.
func (t *Transcript) Empty() bool {
	return t == nil || len(t.Segments) == 0
}

// Duration returns the end time of the last segment.
func (t *Transcript) Duration() float64 {
	if t.Empty() {
		return 0
	}
	last := t.Segments[len(t.Segments)-1]
	return last.StartSeconds + last.DurationSeconds
}

// FormatTimestamp renders seconds as [MM:SS] or [H:MM:SS].
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("[%d:%02d:%02d]", h, m, s)
	}
	return fmt.Sprintf("[%02d:%02d]", m, s)
}

// minWindowSeconds is the minimum span of one formatted transcript line
// when regrouping dense caption entries.
const minWindowSeconds = 30

// Format renders the transcript as timestamped lines. Dense transcripts are
// regrouped into windows of at least 30 continuous seconds; others keep
// their natural segment boundaries.
func (t *Transcript) Format() string {
	if t.Empty() {
		return ""
	}
	segments := t.Segments
	if t.Dense {
		segments = Regroup(segments, minWindowSeconds)
	}

	var sb strings.Builder
	for i, seg := range segments {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(FormatTimestamp(seg.StartSeconds))
		sb.WriteByte(' ')
		if seg.Speaker != "" {
			sb.WriteString(seg.Speaker)
			sb.WriteString(": ")
		}
		sb.WriteString(strings.TrimSpace(seg.Text))
	}
	return sb.String()
}

// Regroup merges consecutive segments into windows spanning at least
// minWindow seconds. The final window may be shorter.
func Regroup(segments []Segment, minWindow float64) []Segment {
	if len(segments) == 0 {
		return nil
	}
	var out []Segment
	current := Segment{StartSeconds: segments[0].StartSeconds}
	var texts []string
	var windowEnd float64

	flush := func() {
		if len(texts) == 0 {
			return
		}
		current.Text = strings.Join(texts, " ")
		current.DurationSeconds = windowEnd - current.StartSeconds
		out = append(out, current)
		texts = nil
	}

	for _, seg := range segments {
		if len(texts) > 0 && seg.StartSeconds-current.StartSeconds >= minWindow {
			flush()
			current = Segment{StartSeconds: seg.StartSeconds}
		}
		texts = append(texts, strings.TrimSpace(seg.Text))
		end := seg.StartSeconds + seg.DurationSeconds
		if end > windowEnd {
			windowEnd = end
		}
	}
	flush()
	return out
}
