package colorgan_go

import (
	"image"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestChannelsRoundTrip(t *testing.T) {
	rand.Seed(1337)
	height, width := 8, 8
	rgb := make([]float64, 3*height*width)
	for i := range rgb {
		rgb[i] = rand.Float64()
	}
	luma, chroma, err := SplitChannels(rgb)
	if err != nil {
		t.Fatalf("Can't split channels: %v", err)
	}
	if len(luma) != height*width || len(chroma) != 2*height*width {
		t.Fatalf("Expected %d luminance and %d chrominance values, but got %d and %d", height*width, 2*height*width, len(luma), len(chroma))
	}
	restored, err := MergeChannels(luma, chroma)
	if err != nil {
		t.Fatalf("Can't merge channels: %v", err)
	}
	if !floats.EqualApprox(rgb, restored, 1e-12) {
		t.Errorf("Expected round-trip to reproduce original image within tolerance")
	}
}

func TestSplitChannelsRejectsMalformedInput(t *testing.T) {
	if _, _, err := SplitChannels(make([]float64, 10)); err == nil {
		t.Errorf("Expected error for input not divisible into 3 planes")
	}
	if _, _, err := SplitChannels(nil); err == nil {
		t.Errorf("Expected error for empty input")
	}
	if _, err := MergeChannels(make([]float64, 4), make([]float64, 4)); err == nil {
		t.Errorf("Expected error for chrominance planes of wrong size")
	}
}

func TestComparisonPanelLayout(t *testing.T) {
	batchSize, height, width := 2, 4, 4
	luma := UniformRandDense(batchSize, 1, height, width)
	realChroma := UniformRandDense(batchSize, 2, height, width)
	fakeChroma := UniformRandDense(batchSize, 2, height, width)
	panel, err := ComparisonPanel(luma, realChroma, fakeChroma, 1, height, width)
	if err != nil {
		t.Fatalf("Can't render comparison panel: %v", err)
	}
	wantBounds := image.Rect(0, 0, 3*width+2*2, height)
	if panel.Bounds() != wantBounds {
		t.Errorf("Expected panel bounds %v, but got %v", wantBounds, panel.Bounds())
	}
}

func TestComparisonPanelRejectsOutOfBoundsSample(t *testing.T) {
	luma := UniformRandDense(1, 1, 4, 4)
	chroma := UniformRandDense(1, 2, 4, 4)
	if _, err := ComparisonPanel(luma, chroma, chroma, 5, 4, 4); err == nil {
		t.Errorf("Expected error for sample index out of bounds")
	}
}

func TestRenderRGBBounds(t *testing.T) {
	height, width := 3, 5
	img, err := RenderRGB(make([]float64, 3*height*width), height, width)
	if err != nil {
		t.Fatalf("Can't render RGB image: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, width, height) {
		t.Errorf("Expected bounds %v, but got %v", image.Rect(0, 0, width, height), img.Bounds())
	}
	if _, err := RenderRGB(make([]float64, 7), height, width); err == nil {
		t.Errorf("Expected error for wrong value count")
	}
}
