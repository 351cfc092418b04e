package transcript

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/mediabrief/mediabrief/pkg/stt"
)

// AlignThreshold is the minimum Ratcliff/Obershelp similarity for a text
// segment to inherit timestamps from the oracle word stream.
const AlignThreshold = 0.75

// SpeakerSegment is one speaker-labelled span of a textual transcript.
type SpeakerSegment struct {
	Speaker string
	Text    string
}

// speakerLineRe matches "Jane Smith: said something" style labels.
var speakerLineRe = regexp.MustCompile(`^([A-Z][\w.'-]*(?:\s+[A-Z][\w.'-]*){0,3}):\s+(.+)$`)

// ParseSpeakerSegments splits a textual transcript into speaker-labelled
// segments. Paragraphs without a label continue the previous speaker.
func ParseSpeakerSegments(text string) []SpeakerSegment {
	var out []SpeakerSegment
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(strings.ReplaceAll(para, "\n", " "))
		if para == "" {
			continue
		}
		if m := speakerLineRe.FindStringSubmatch(para); m != nil {
			out = append(out, SpeakerSegment{Speaker: m[1], Text: m[2]})
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].Text += " " + para
		} else {
			out = append(out, SpeakerSegment{Text: para})
		}
	}
	return out
}

// Align assigns timestamps to textual segments by finding each segment's
// best match in the oracle word stream: a sliding window of equal token
// length compared with sequence similarity. Matches below the threshold
// are dropped; output preserves input order.
func Align(segments []SpeakerSegment, words []stt.Word, threshold float64) []Segment {
	if threshold <= 0 {
		threshold = AlignThreshold
	}
	wordTokens := make([]string, len(words))
	for i, w := range words {
		wordTokens[i] = normalizeToken(w.Word)
	}

	var out []Segment
	searchPos := 0
	for _, seg := range segments {
		segTokens := tokenize(seg.Text)
		if len(segTokens) == 0 {
			continue
		}
		start, end, ratio := bestWindow(segTokens, wordTokens, searchPos)
		if ratio < threshold {
			slog.Debug("Transcript segment not matched in audio",
				"speaker", seg.Speaker, "tokens", len(segTokens), "best_ratio", ratio)
			continue
		}
		out = append(out, Segment{
			StartSeconds:    words[start].Start,
			Text:            seg.Text,
			DurationSeconds: words[end-1].End - words[start].Start,
			Speaker:         seg.Speaker,
		})
		// Later segments occur later in the audio.
		searchPos = start + len(segTokens)/2
	}
	return out
}

// bestWindow slides a window of len(segTokens) across the word stream from
// searchPos, coarse stride first, then a fine pass around the best hit.
func bestWindow(segTokens, wordTokens []string, searchPos int) (start, end int, ratio float64) {
	winLen := len(segTokens)
	if winLen > len(wordTokens) {
		winLen = len(wordTokens)
	}
	if winLen == 0 || searchPos >= len(wordTokens) {
		return 0, 0, 0
	}
	limit := len(wordTokens) - winLen

	stride := winLen / 5
	if stride < 1 {
		stride = 1
	}

	bestStart, bestRatio := -1, 0.0
	score := func(pos int) float64 {
		return difflib.NewMatcher(segTokens, wordTokens[pos:pos+winLen]).Ratio()
	}

	for pos := searchPos; pos <= limit; pos += stride {
		if r := score(pos); r > bestRatio {
			bestRatio, bestStart = r, pos
		}
	}
	if bestStart < 0 {
		return 0, 0, 0
	}

	// Fine pass around the coarse best.
	lo, hi := bestStart-stride, bestStart+stride
	if lo < searchPos {
		lo = searchPos
	}
	if hi > limit {
		hi = limit
	}
	for pos := lo; pos <= hi; pos++ {
		if r := score(pos); r > bestRatio {
			bestRatio, bestStart = r, pos
		}
	}

	return bestStart, bestStart + winLen, bestRatio
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeToken(tok string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(tok), "")
}

func tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := normalizeToken(f); t != "" {
			out = append(out, t)
		}
	}
	return out
}
