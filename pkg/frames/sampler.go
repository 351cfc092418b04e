// Package frames samples representative still frames from video content.
package frames

import (
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"os"

	"github.com/corona10/goimagehash"

	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/storage"
	"github.com/mediabrief/mediabrief/pkg/transcript"
)

// minSpacingSeconds keeps sampled frames at least this far apart.
const minSpacingSeconds = 30

// Uploader is the slice of the storage client the sampler needs.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	PublicURL(bucket, key string) string
	FramesBucket() string
}

// Sampler extracts, filters, and uploads video frames.
type Sampler struct {
	uploader Uploader
	detector *Detector
	log      *slog.Logger
}

// NewSampler wires the frame sampler.
func NewSampler(uploader Uploader, detector *Detector) *Sampler {
	return &Sampler{
		uploader: uploader,
		detector: detector,
		log:      slog.With("component", "frames"),
	}
}

// Selected is one frame that passed the content filters, still on local disk.
type Selected struct {
	Path    string
	Seconds int
	Hash    string
}

// Selection holds selected frames and owns their temp directory.
type Selection struct {
	Frames []Selected
	dir    string
}

// Cleanup removes the selection's temp directory. Safe on nil.
func (s *Selection) Cleanup() {
	if s == nil || s.dir == "" {
		return
	}
	os.RemoveAll(s.dir)
}

// Select extracts scene-change frames from the video and keeps those that
// pass spacing and content filters. Upload happens separately once the
// owning article id is known.
func (s *Sampler) Select(ctx context.Context, videoPath string) (*Selection, error) {
	dir, err := os.MkdirTemp("", "mediabrief-frames-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create frame dir: %w", err)
	}
	sel := &Selection{dir: dir}

	candidates, err := extractScenes(ctx, videoPath, dir)
	if err != nil {
		s.log.Warn("Scene detection failed, falling back to interval sampling", "error", err)
		candidates = nil
	}
	if len(candidates) == 0 {
		if candidates, err = extractInterval(ctx, videoPath, dir); err != nil {
			sel.Cleanup()
			return nil, err
		}
	}

	spaced := enforceSpacing(candidates, minSpacingSeconds)
	for _, cand := range spaced {
		if ctx.Err() != nil {
			sel.Cleanup()
			return nil, ctx.Err()
		}
		frame, ok, err := s.inspect(cand)
		if err != nil {
			s.log.Warn("Failed to inspect frame", "seconds", cand.Seconds, "error", err)
			continue
		}
		if ok {
			sel.Frames = append(sel.Frames, frame)
		}
	}

	s.log.Info("Selected video frames", "candidates", len(candidates), "kept", len(sel.Frames))
	return sel, nil
}

// Upload pushes the selected frames to the frames bucket under the article
// id and returns their records in timestamp order.
func (s *Sampler) Upload(ctx context.Context, sel *Selection, articleID int64) ([]models.Frame, error) {
	bucket := s.uploader.FramesBucket()
	out := make([]models.Frame, 0, len(sel.Frames))
	for _, frame := range sel.Frames {
		f, err := os.Open(frame.Path)
		if err != nil {
			return out, err
		}
		key := storage.FrameKey(articleID, frame.Seconds)
		err = s.uploader.Upload(ctx, bucket, key, f, "image/jpeg")
		f.Close()
		if err != nil {
			return out, fmt.Errorf("failed to upload frame: %w", err)
		}

		ts := float64(frame.Seconds)
		out = append(out, models.Frame{
			StoragePath:      key,
			URL:              s.uploader.PublicURL(bucket, key),
			TimestampSeconds: ts,
			TimeFormatted:    transcript.FormatTimestamp(ts),
			PerceptualHash:   frame.Hash,
		})
	}
	return out, nil
}

// Sample selects and uploads in one pass, for callers that already know
// the article id.
func (s *Sampler) Sample(ctx context.Context, videoPath string, articleID int64) ([]models.Frame, error) {
	sel, err := s.Select(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	defer sel.Cleanup()
	return s.Upload(ctx, sel, articleID)
}

// inspect decodes, filters, and hashes one candidate frame.
func (s *Sampler) inspect(cand candidate) (Selected, bool, error) {
	f, err := os.Open(cand.Path)
	if err != nil {
		return Selected{}, false, err
	}
	img, err := jpeg.Decode(f)
	f.Close()
	if err != nil {
		return Selected{}, false, fmt.Errorf("failed to decode frame: %w", err)
	}

	if a := s.detector.analyze(img); !a.keep() {
		s.log.Debug("Frame filtered out", "seconds", cand.Seconds,
			"face", a.FaceFraction, "upper_body", a.UpperBodyFraction, "edges", a.EdgeDensity)
		return Selected{}, false, nil
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return Selected{}, false, fmt.Errorf("failed to hash frame: %w", err)
	}

	return Selected{Path: cand.Path, Seconds: int(cand.Seconds), Hash: hash.ToString()}, true, nil
}

// enforceSpacing drops candidates closer than minSpacing seconds to the
// previously kept one. Candidates arrive in timestamp order.
func enforceSpacing(candidates []candidate, minSpacing float64) []candidate {
	var out []candidate
	last := -minSpacing
	for _, c := range candidates {
		if c.Seconds-last < minSpacing && len(out) > 0 {
			continue
		}
		out = append(out, c)
		last = c.Seconds
	}
	return out
}
