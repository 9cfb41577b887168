package colorgan_go

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Full-range BT.601 luma coefficients. The pair of transforms below is exactly
// invertible in floating point.
const (
	lumaRed   = 0.299
	lumaGreen = 0.587
	lumaBlue  = 0.114
)

// SplitChannels Decompose planar RGB image (3*h*w values in [0;1], plane order R,G,B)
// into one luminance plane (h*w values) and two chrominance planes (2*h*w values, order Cb,Cr).
func SplitChannels(rgb []float64) ([]float64, []float64, error) {
	if len(rgb) == 0 || len(rgb)%3 != 0 {
		return nil, nil, fmt.Errorf("RGB image must hold 3 planes, but got %d values", len(rgb))
	}
	planeSize := len(rgb) / 3
	luma := make([]float64, planeSize)
	chroma := make([]float64, 2*planeSize)
	for i := 0; i < planeSize; i++ {
		r := rgb[i]
		g := rgb[planeSize+i]
		b := rgb[2*planeSize+i]
		y := lumaRed*r + lumaGreen*g + lumaBlue*b
		luma[i] = y
		chroma[i] = (b - y) / (2.0 * (1.0 - lumaBlue))
		chroma[planeSize+i] = (r - y) / (2.0 * (1.0 - lumaRed))
	}
	return luma, chroma, nil
}

// MergeChannels Inverse of SplitChannels: reassemble planar RGB image from one
// luminance plane and two chrominance planes.
func MergeChannels(luma, chroma []float64) ([]float64, error) {
	if len(chroma) != 2*len(luma) {
		return nil, fmt.Errorf("Chrominance planes must hold 2*%d values, but got %d", len(luma), len(chroma))
	}
	planeSize := len(luma)
	rgb := make([]float64, 3*planeSize)
	for i := 0; i < planeSize; i++ {
		y := luma[i]
		cb := chroma[i]
		cr := chroma[planeSize+i]
		r := y + 2.0*(1.0-lumaRed)*cr
		b := y + 2.0*(1.0-lumaBlue)*cb
		g := (y - lumaRed*r - lumaBlue*b) / lumaGreen
		rgb[i] = r
		rgb[planeSize+i] = g
		rgb[2*planeSize+i] = b
	}
	return rgb, nil
}

func clampByte(v float64) uint8 {
	if v <= 0.0 {
		return 0
	}
	if v >= 1.0 {
		return 255
	}
	return uint8(v*255.0 + 0.5)
}

func drawPlanarRGB(img *image.RGBA, rgb []float64, offsetX, height, width int) {
	planeSize := height * width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			img.SetRGBA(offsetX+x, y, color.RGBA{
				R: clampByte(rgb[i]),
				G: clampByte(rgb[planeSize+i]),
				B: clampByte(rgb[2*planeSize+i]),
				A: 255,
			})
		}
	}
}

func sampleLuma(luma *tensor.Dense, sample, height, width int) ([]float64, error) {
	data, ok := luma.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Luminance batch must be of type float64")
	}
	planeSize := height * width
	if (sample+1)*planeSize > len(data) {
		return nil, fmt.Errorf("Sample #%d is out of bounds for luminance batch of %d values", sample, len(data))
	}
	return data[sample*planeSize : (sample+1)*planeSize], nil
}

func sampleChroma(chroma *tensor.Dense, sample, height, width int) ([]float64, error) {
	data, ok := chroma.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Chrominance batch must be of type float64")
	}
	planeSize := height * width
	if (sample+1)*2*planeSize > len(data) {
		return nil, fmt.Errorf("Sample #%d is out of bounds for chrominance batch of %d values", sample, len(data))
	}
	return data[sample*2*planeSize : (sample+1)*2*planeSize], nil
}

// RenderRGB Render planar RGB image (3*height*width values in [0;1]) into a drawable image
func RenderRGB(rgb []float64, height, width int) (image.Image, error) {
	if len(rgb) != 3*height*width {
		return nil, fmt.Errorf("RGB image must hold %d values, but got %d", 3*height*width, len(rgb))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	drawPlanarRGB(img, rgb, 0, height, width)
	return img, nil
}

// ComparisonPanel Render side-by-side comparison of grayscale input, real colorization
// and generated colorization for a single sample of a batch.
//
// luma - (batch, 1, h, w) luminance batch
// realChroma, fakeChroma - (batch, 2, h, w) chrominance batches
// sample - index of the sample within the batch
//
func ComparisonPanel(luma, realChroma, fakeChroma *tensor.Dense, sample, height, width int) (image.Image, error) {
	const gap = 2
	lumaPlane, err := sampleLuma(luma, sample, height, width)
	if err != nil {
		return nil, errors.Wrap(err, "Can't extract luminance sample")
	}
	realPlanes, err := sampleChroma(realChroma, sample, height, width)
	if err != nil {
		return nil, errors.Wrap(err, "Can't extract real chrominance sample")
	}
	fakePlanes, err := sampleChroma(fakeChroma, sample, height, width)
	if err != nil {
		return nil, errors.Wrap(err, "Can't extract generated chrominance sample")
	}
	grayRGB := make([]float64, 3*height*width)
	for i, y := range lumaPlane {
		grayRGB[i] = y
		grayRGB[height*width+i] = y
		grayRGB[2*height*width+i] = y
	}
	realRGB, err := MergeChannels(lumaPlane, realPlanes)
	if err != nil {
		return nil, errors.Wrap(err, "Can't merge real colorization")
	}
	fakeRGB, err := MergeChannels(lumaPlane, fakePlanes)
	if err != nil {
		return nil, errors.Wrap(err, "Can't merge generated colorization")
	}
	img := image.NewRGBA(image.Rect(0, 0, 3*width+2*gap, height))
	drawPlanarRGB(img, grayRGB, 0, height, width)
	drawPlanarRGB(img, realRGB, width+gap, height, width)
	drawPlanarRGB(img, fakeRGB, 2*(width+gap), height, width)
	return img, nil
}

// SavePanel Save rendered panel to a PNG file
func SavePanel(img image.Image, fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't create panel file '%s'", fname))
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return errors.Wrap(err, "Can't encode panel to PNG")
	}
	return nil
}
