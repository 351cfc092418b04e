package frames

import (
	"image"
)

// Filter thresholds. A frame is dropped when it is mostly a talking head
// (large face or upper body with little visual structure) or when it
// carries too little detail to be worth keeping.
const (
	maxUpperBodyFraction = 0.15
	minEdgeWithFace      = 0.11
	maxFaceFraction      = 0.20
	minEdgeDensity       = 0.05
)

// analysis is everything the keep decision needs about one frame.
type analysis struct {
	FaceFraction      float64
	UpperBodyFraction float64
	EdgeDensity       float64
}

// keep applies the content filters in order.
func (a analysis) keep() bool {
	if a.UpperBodyFraction > maxUpperBodyFraction {
		return false
	}
	if a.FaceFraction > 0 && a.EdgeDensity < minEdgeWithFace {
		return false
	}
	if a.FaceFraction > maxFaceFraction {
		return false
	}
	return a.EdgeDensity > minEdgeDensity
}

// sobelEdgeDensity returns the fraction of pixels whose Sobel gradient
// magnitude exceeds a fixed threshold, on the grayscale image.
func sobelEdgeDensity(gray *image.Gray) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	const threshold = 100

	at := func(x, y int) int {
		return int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
	}

	edges := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			if gx+gy > threshold {
				edges++
			}
		}
	}
	return float64(edges) / float64((w-2)*(h-2))
}

// toGray converts any decoded image to grayscale.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}
