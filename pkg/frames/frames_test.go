package frames

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforceSpacing(t *testing.T) {
	candidates := []candidate{
		{Seconds: 0},
		{Seconds: 5},
		{Seconds: 31},
		{Seconds: 45},
		{Seconds: 62},
		{Seconds: 200},
	}

	kept := enforceSpacing(candidates, 30)
	require.Len(t, kept, 4)
	assert.Equal(t, 0.0, kept[0].Seconds)
	assert.Equal(t, 31.0, kept[1].Seconds)
	assert.Equal(t, 62.0, kept[2].Seconds)
	assert.Equal(t, 200.0, kept[3].Seconds)

	for i := 1; i < len(kept); i++ {
		assert.GreaterOrEqual(t, kept[i].Seconds-kept[i-1].Seconds, 30.0)
	}
}

func TestEnforceSpacingEmpty(t *testing.T) {
	assert.Empty(t, enforceSpacing(nil, 30))
}

func TestKeepDecision(t *testing.T) {
	tests := []struct {
		name string
		a    analysis
		keep bool
	}{
		{"slide with detail", analysis{EdgeDensity: 0.12}, true},
		{"nearly blank frame", analysis{EdgeDensity: 0.02}, false},
		{"talking head fills frame", analysis{UpperBodyFraction: 0.4, EdgeDensity: 0.2}, false},
		{"face over plain background", analysis{FaceFraction: 0.05, EdgeDensity: 0.08}, false},
		{"large face close-up", analysis{FaceFraction: 0.35, EdgeDensity: 0.3}, false},
		{"small face over busy chart", analysis{FaceFraction: 0.04, EdgeDensity: 0.18}, true},
		{"upper body just under limit", analysis{UpperBodyFraction: 0.14, EdgeDensity: 0.15}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.keep, tt.a.keep())
		})
	}
}

func TestSobelEdgeDensity(t *testing.T) {
	// Flat image has no edges.
	flat := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}
	assert.Equal(t, 0.0, sobelEdgeDensity(flat))

	// Checkerboard is nearly all edges.
	checker := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x+y)%2 == 0 {
				checker.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	assert.Greater(t, sobelEdgeDensity(checker), 0.5)

	// Half-and-half image has one vertical edge line.
	split := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 32; x < 64; x++ {
			split.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	density := sobelEdgeDensity(split)
	assert.Greater(t, density, 0.0)
	assert.Less(t, density, 0.1)
}

func TestSobelEdgeDensityTinyImage(t *testing.T) {
	assert.Equal(t, 0.0, sobelEdgeDensity(image.NewGray(image.Rect(0, 0, 2, 2))))
}

func TestAnalyzeWithoutCascades(t *testing.T) {
	d, err := NewDetector("", "")
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, 32, 32))
	a := d.analyze(img)
	assert.Zero(t, a.FaceFraction)
	assert.Zero(t, a.UpperBodyFraction)
}
