package transcript

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mediabrief/mediabrief/pkg/stt"
)

// CaptionFetcher pulls platform-native caption tracks.
type CaptionFetcher interface {
	Fetch(ctx context.Context, videoID string) (*Transcript, error)
}

// Transcriber is the speech-to-text oracle, satisfied by stt.Client.
type Transcriber interface {
	TranscribeURL(ctx context.Context, audioURL string) (*stt.Transcription, error)
	TranscribeFile(ctx context.Context, path, contentType string) (*stt.Transcription, error)
}

// Request describes the media a transcript is wanted for.
type Request struct {
	// VideoID is the platform video id when the content is a YouTube watch.
	VideoID string
	// AudioURL is a remote audio asset the oracle can fetch.
	AudioURL string
	// AudioPath is a local audio file, preferred over AudioURL when set.
	AudioPath        string
	AudioContentType string
	// CompanionText is a textual transcript recovered from the publisher;
	// when present it is aligned against the audio instead of running
	// plain recognition.
	CompanionText string
}

// Acquirer tries the transcript strategies in preference order.
type Acquirer struct {
	captions CaptionFetcher
	asr      Transcriber
	log      *slog.Logger
}

// NewAcquirer wires the strategies.
func NewAcquirer(captions CaptionFetcher, asr Transcriber) *Acquirer {
	return &Acquirer{
		captions: captions,
		asr:      asr,
		log:      slog.With("component", "transcript"),
	}
}

// Acquire returns the best available transcript, or an empty transcript
// when every strategy is exhausted; downstream then treats the content as
// text-only. The error return is reserved for context cancellation.
func (a *Acquirer) Acquire(ctx context.Context, req Request) (*Transcript, error) {
	// Platform-native captions.
	if req.VideoID != "" && a.captions != nil {
		t, err := a.captions.Fetch(ctx, req.VideoID)
		if err == nil && !t.Empty() {
			return t, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil && !errors.Is(err, ErrNoCaptions) {
			a.log.Warn("Caption fetch failed, falling through", "video_id", req.VideoID, "error", err)
		}
	}

	// Publisher transcript + audio: align instead of re-recognizing.
	if req.CompanionText != "" && (req.AudioURL != "" || req.AudioPath != "") {
		t, err := a.align(ctx, req)
		if err == nil && !t.Empty() {
			return t, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			a.log.Warn("Alignment failed, falling through", "error", err)
		}
	}

	// Raw recognition on the audio.
	if req.AudioURL != "" || req.AudioPath != "" {
		t, err := a.recognize(ctx, req)
		if err == nil && !t.Empty() {
			return t, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			a.log.Warn("Speech recognition failed", "error", err)
		}
	}

	return &Transcript{}, nil
}

func (a *Acquirer) transcribe(ctx context.Context, req Request) (*stt.Transcription, error) {
	if req.AudioPath != "" {
		return a.asr.TranscribeFile(ctx, req.AudioPath, req.AudioContentType)
	}
	return a.asr.TranscribeURL(ctx, req.AudioURL)
}

func (a *Acquirer) align(ctx context.Context, req Request) (*Transcript, error) {
	tr, err := a.transcribe(ctx, req)
	if err != nil {
		return nil, err
	}
	textSegments := ParseSpeakerSegments(req.CompanionText)
	aligned := Align(textSegments, tr.Words, AlignThreshold)
	if len(aligned) > 0 {
		a.log.Info("Aligned publisher transcript",
			"segments", len(textSegments), "matched", len(aligned))
	}
	return &Transcript{Segments: aligned, Source: SourceAligned}, nil
}

func (a *Acquirer) recognize(ctx context.Context, req Request) (*Transcript, error) {
	tr, err := a.transcribe(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Transcript{Segments: GroupWords(tr.Words), Source: SourceOracleASR}, nil
}
