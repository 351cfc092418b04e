package frames

import (
	"fmt"
	"image"
	"log/slog"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// minDetectionQuality is the pigo cluster score below which detections are
// ignored.
const minDetectionQuality = 5.0

// Detector runs pigo cascades over extracted frames. Either cascade may be
// absent; the corresponding filter is then skipped.
type Detector struct {
	face      *pigo.Pigo
	upperBody *pigo.Pigo
	log       *slog.Logger
}

// NewDetector loads the cascade files. Empty paths disable the respective
// detector rather than failing.
func NewDetector(faceCascadePath, upperBodyCascadePath string) (*Detector, error) {
	d := &Detector{log: slog.With("component", "frames")}

	var err error
	if d.face, err = loadCascade(faceCascadePath); err != nil {
		return nil, fmt.Errorf("failed to load face cascade: %w", err)
	}
	if d.upperBody, err = loadCascade(upperBodyCascadePath); err != nil {
		return nil, fmt.Errorf("failed to load upper-body cascade: %w", err)
	}

	if d.face == nil && d.upperBody == nil {
		d.log.Warn("No detection cascades configured, frame filtering uses edge density only")
	}
	return d, nil
}

func loadCascade(path string) (*pigo.Pigo, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return pigo.NewPigo().Unpack(data)
}

// analyze computes the detection fractions and edge density for one frame.
func (d *Detector) analyze(img image.Image) analysis {
	gray := toGray(img)
	b := gray.Bounds()
	rows, cols := b.Dy(), b.Dx()
	imageArea := float64(rows * cols)

	params := pigo.CascadeParams{
		MinSize:     rows / 10,
		MaxSize:     rows,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	return analysis{
		FaceFraction:      largestDetectionFraction(d.face, params, imageArea),
		UpperBodyFraction: largestDetectionFraction(d.upperBody, params, imageArea),
		EdgeDensity:       sobelEdgeDensity(gray),
	}
}

func largestDetectionFraction(classifier *pigo.Pigo, params pigo.CascadeParams, imageArea float64) float64 {
	if classifier == nil || imageArea == 0 {
		return 0
	}
	dets := classifier.RunCascade(params, 0.0)
	dets = classifier.ClusterDetections(dets, 0.2)

	var best float64
	for _, det := range dets {
		if det.Q < minDetectionQuality {
			continue
		}
		area := float64(det.Scale) * float64(det.Scale)
		if frac := area / imageArea; frac > best {
			best = frac
		}
	}
	return best
}
