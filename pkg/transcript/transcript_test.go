package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabrief/mediabrief/pkg/stt"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "[00:00]"},
		{7.9, "[00:07]"},
		{65, "[01:05]"},
		{600, "[10:00]"},
		{3599, "[59:59]"},
		{3600, "[1:00:00]"},
		{3725, "[1:02:05]"},
		{-3, "[00:00]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatTimestamp(tt.seconds))
		})
	}
}

func TestRegroup(t *testing.T) {
	// Dense caption-style entries, a few seconds each.
	var segments []Segment
	for i := 0; i < 40; i++ {
		segments = append(segments, Segment{
			StartSeconds:    float64(i) * 4,
			Text:            fmt.Sprintf("entry %d", i),
			DurationSeconds: 4,
		})
	}

	out := Regroup(segments, 30)
	require.NotEmpty(t, out)

	// Every window but the last spans at least the minimum.
	for i := 0; i < len(out)-1; i++ {
		span := out[i+1].StartSeconds - out[i].StartSeconds
		assert.GreaterOrEqual(t, span, 30.0, "window %d", i)
	}

	// No text lost.
	var joined []string
	for _, seg := range out {
		joined = append(joined, seg.Text)
	}
	all := strings.Join(joined, " ")
	for i := 0; i < 40; i++ {
		assert.Contains(t, all, fmt.Sprintf("entry %d", i))
	}

	assert.Equal(t, 0.0, out[0].StartSeconds)
}

func TestRegroupEmpty(t *testing.T) {
	assert.Nil(t, Regroup(nil, 30))
}

func TestFormatDenseVsNatural(t *testing.T) {
	dense := &Transcript{
		Segments: []Segment{
			{StartSeconds: 0, Text: "one", DurationSeconds: 3},
			{StartSeconds: 3, Text: "two", DurationSeconds: 3},
			{StartSeconds: 35, Text: "three", DurationSeconds: 3},
		},
		Source: SourcePlatformNative,
		Dense:  true,
	}
	formatted := dense.Format()
	lines := strings.Split(formatted, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[00:00] one two", lines[0])
	assert.Equal(t, "[00:35] three", lines[1])

	natural := &Transcript{
		Segments: []Segment{
			{StartSeconds: 12, Text: "we expect growth", Speaker: "Jane Doe"},
		},
		Source: SourceAligned,
	}
	assert.Equal(t, "[00:12] Jane Doe: we expect growth", natural.Format())
}

func TestGroupWords(t *testing.T) {
	words := []stt.Word{
		{Word: "hello", Start: 0.0, End: 0.4},
		{Word: "there", Start: 0.5, End: 0.9},
		// 2s pause.
		{Word: "welcome", Start: 2.9, End: 3.3},
		{Word: "back", Start: 3.4, End: 3.7},
	}

	out := GroupWords(words)
	require.Len(t, out, 2)
	assert.Equal(t, "hello there", out[0].Text)
	assert.Equal(t, 0.0, out[0].StartSeconds)
	assert.InDelta(t, 0.9, out[0].DurationSeconds, 1e-9)
	assert.Equal(t, "welcome back", out[1].Text)
	assert.Equal(t, 2.9, out[1].StartSeconds)
}

func TestGroupWordsMaxLength(t *testing.T) {
	// Continuous speech with no pauses still gets split.
	var words []stt.Word
	for i := 0; i < 200; i++ {
		start := float64(i) * 0.3
		words = append(words, stt.Word{Word: "word", Start: start, End: start + 0.25})
	}

	out := GroupWords(words)
	require.Greater(t, len(out), 1)
	for _, seg := range out {
		assert.LessOrEqual(t, len(strings.Fields(seg.Text)), maxSegmentWords)
	}
}

func TestParseSpeakerSegments(t *testing.T) {
	text := "Operator: Good morning and welcome to the call.\n\n" +
		"Jane Smith: Thank you. Revenue grew twelve percent this quarter.\n\n" +
		"We also expanded margins across every region.\n\n" +
		"John Q. Public: My question is about guidance."

	segments := ParseSpeakerSegments(text)
	require.Len(t, segments, 3)

	assert.Equal(t, "Operator", segments[0].Speaker)
	assert.Equal(t, "Jane Smith", segments[1].Speaker)
	// Unlabelled paragraph continues the previous speaker.
	assert.Contains(t, segments[1].Text, "expanded margins")
	assert.Equal(t, "John Q. Public", segments[2].Speaker)
}

func TestParseSpeakerSegmentsNoLabels(t *testing.T) {
	segments := ParseSpeakerSegments("just a plain paragraph\n\nand another one")
	require.Len(t, segments, 1)
	assert.Empty(t, segments[0].Speaker)
	assert.Contains(t, segments[0].Text, "and another one")
}

// wordStream builds an oracle word stream from sentences, 0.4s per word.
func wordStream(sentences ...string) []stt.Word {
	var words []stt.Word
	clock := 0.0
	for _, s := range sentences {
		for _, f := range strings.Fields(s) {
			words = append(words, stt.Word{Word: f, Start: clock, End: clock + 0.35})
			clock += 0.4
		}
		clock += 1.5
	}
	return words
}

func TestAlign(t *testing.T) {
	// The oracle heard roughly what the publisher transcript says, with
	// small recognition differences.
	words := wordStream(
		"good morning and welcome everyone to the quarterly earnings call",
		"thank you revenue grew twelve percent year over year driven by subscriptions",
		"our operating margin expanded to twenty four percent this quarter",
		"we now expect full year revenue at the high end of the prior range",
	)

	text := "Operator: Good morning, and welcome everyone to the quarterly earnings call.\n\n" +
		"Jane Smith: Thank you. Revenue grew 12 percent year over year, driven by subscriptions.\n\n" +
		"Jane Smith: Our operating margin expanded to 24 percent this quarter.\n\n" +
		"Jane Smith: We now expect full-year revenue at the high end of the prior range."

	segments := ParseSpeakerSegments(text)
	require.Len(t, segments, 4)

	aligned := Align(segments, words, AlignThreshold)
	require.GreaterOrEqual(t, len(aligned), 3, "most segments should match")

	// Order and timestamps are monotonic.
	for i := 1; i < len(aligned); i++ {
		assert.Greater(t, aligned[i].StartSeconds, aligned[i-1].StartSeconds)
	}
	assert.Equal(t, "Operator", aligned[0].Speaker)
	assert.Equal(t, 0.0, aligned[0].StartSeconds)
}

func TestAlignDropsUnmatched(t *testing.T) {
	words := wordStream("completely unrelated audio about cooking pasta at home tonight")

	segments := []SpeakerSegment{
		{Speaker: "Jane Smith", Text: "Revenue grew twelve percent driven by enterprise subscriptions this quarter"},
	}
	aligned := Align(segments, words, AlignThreshold)
	assert.Empty(t, aligned)
}

func TestAlignNoWords(t *testing.T) {
	segments := []SpeakerSegment{{Text: "hello world"}}
	assert.Empty(t, Align(segments, nil, AlignThreshold))
}

type fakeCaptions struct {
	transcript *Transcript
	err        error
}

func (f *fakeCaptions) Fetch(_ context.Context, _ string) (*Transcript, error) {
	return f.transcript, f.err
}

type fakeASR struct {
	words    []stt.Word
	err      error
	urlCalls int
}

func (f *fakeASR) TranscribeURL(_ context.Context, _ string) (*stt.Transcription, error) {
	f.urlCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Transcription{Words: f.words}, nil
}

func (f *fakeASR) TranscribeFile(_ context.Context, _, _ string) (*stt.Transcription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Transcription{Words: f.words}, nil
}

func TestAcquirerPrefersCaptions(t *testing.T) {
	captions := &fakeCaptions{transcript: &Transcript{
		Segments: []Segment{{Text: "from captions"}},
		Source:   SourcePlatformNative,
	}}
	asr := &fakeASR{}
	a := NewAcquirer(captions, asr)

	out, err := a.Acquire(context.Background(), Request{VideoID: "abc123def45", AudioURL: "https://example.com/a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, SourcePlatformNative, out.Source)
	assert.Zero(t, asr.urlCalls)
}

func TestAcquirerFallsBackToASR(t *testing.T) {
	captions := &fakeCaptions{err: ErrNoCaptions}
	asr := &fakeASR{words: []stt.Word{
		{Word: "hello", Start: 0, End: 0.4},
		{Word: "world", Start: 0.5, End: 0.9},
	}}
	a := NewAcquirer(captions, asr)

	out, err := a.Acquire(context.Background(), Request{VideoID: "abc123def45", AudioURL: "https://example.com/a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, SourceOracleASR, out.Source)
	require.Len(t, out.Segments, 1)
	assert.Equal(t, "hello world", out.Segments[0].Text)
}

func TestAcquirerAlignsCompanionText(t *testing.T) {
	asr := &fakeASR{words: wordStream("revenue grew twelve percent year over year driven by subscriptions")}
	a := NewAcquirer(nil, asr)

	out, err := a.Acquire(context.Background(), Request{
		AudioURL:      "https://example.com/call.mp3",
		CompanionText: "Jane Smith: Revenue grew 12 percent year over year, driven by subscriptions.",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceAligned, out.Source)
	require.Len(t, out.Segments, 1)
	assert.Equal(t, "Jane Smith", out.Segments[0].Speaker)
}

func TestAcquirerAllStrategiesExhausted(t *testing.T) {
	a := NewAcquirer(&fakeCaptions{err: ErrNoCaptions}, &fakeASR{err: errors.New("oracle down")})

	out, err := a.Acquire(context.Background(), Request{VideoID: "abc123def45", AudioURL: "https://example.com/a.mp3"})
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestAcquirerNothingToWorkWith(t *testing.T) {
	a := NewAcquirer(nil, nil)
	out, err := a.Acquire(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, out.Empty())
}
