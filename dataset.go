package colorgan_go

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"gorgonia.org/tensor"
)

// ColorSet Training set of grayscale samples paired with their chrominance channels.
//
// Luma - (NumSamples, 1, Height, Width) luminance channel
// Chroma - (NumSamples, 2, Height, Width) chrominance channels
//
type ColorSet struct {
	Luma       *tensor.Dense
	Chroma     *tensor.Dense
	NumSamples int
	Height     int
	Width      int
}

// ReadArrayFile Read a NumPy array file into a flat float64 slice plus its shape.
// Both float64 ('<f8') and float32 ('<f4') payloads are accepted.
func ReadArrayFile(path string) ([]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, fmt.Sprintf("Can't open array file '%s'", path))
	}
	defer f.Close()
	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, errors.Wrap(err, fmt.Sprintf("Can't read header of array file '%s'", path))
	}
	shape := r.Header.Descr.Shape
	switch r.Header.Descr.Type {
	case "<f8", ">f8", "f8":
		var data []float64
		if err := r.Read(&data); err != nil {
			return nil, nil, errors.Wrap(err, fmt.Sprintf("Can't read float64 payload of array file '%s'", path))
		}
		return data, shape, nil
	case "<f4", ">f4", "f4":
		var data []float32
		if err := r.Read(&data); err != nil {
			return nil, nil, errors.Wrap(err, fmt.Sprintf("Can't read float32 payload of array file '%s'", path))
		}
		converted := make([]float64, len(data))
		for i := range data {
			converted[i] = float64(data[i])
		}
		return converted, shape, nil
	default:
		return nil, nil, fmt.Errorf("Array file '%s' has unsupported dtype '%s'", path, r.Header.Descr.Type)
	}
}

// LoadColorSet Load luminance and chrominance arrays from two NumPy files.
//
// Files may be flat (n*h*w and n*2*h*w elements) or shaped ((n,1,h,w) and (n,2,h,w));
// only the element counts are validated against the provided resolution. When limit > 0,
// only the first limit samples are kept.
func LoadColorSet(lumaPath, chromaPath string, height, width, limit int) (*ColorSet, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("Resolution must be positive, but got %dx%d", height, width)
	}
	lumaData, _, err := ReadArrayFile(lumaPath)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read luminance array")
	}
	chromaData, _, err := ReadArrayFile(chromaPath)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read chrominance array")
	}
	sampleSize := height * width
	if len(lumaData) == 0 || len(lumaData)%sampleSize != 0 {
		return nil, fmt.Errorf("Luminance array of %d elements doesn't fit resolution %dx%d", len(lumaData), height, width)
	}
	if len(chromaData)%(2*sampleSize) != 0 {
		return nil, fmt.Errorf("Chrominance array of %d elements doesn't fit resolution 2x%dx%d", len(chromaData), height, width)
	}
	numSamples := len(lumaData) / sampleSize
	if chromaSamples := len(chromaData) / (2 * sampleSize); chromaSamples != numSamples {
		return nil, fmt.Errorf("Luminance array holds %d samples but chrominance array holds %d samples", numSamples, chromaSamples)
	}
	if limit > 0 && limit < numSamples {
		numSamples = limit
		lumaData = lumaData[:numSamples*sampleSize]
		chromaData = chromaData[:numSamples*2*sampleSize]
	}
	return &ColorSet{
		Luma:       tensor.New(tensor.WithShape(numSamples, 1, height, width), tensor.WithBacking(lumaData)),
		Chroma:     tensor.New(tensor.WithShape(numSamples, 2, height, width), tensor.WithBacking(chromaData)),
		NumSamples: numSamples,
		Height:     height,
		Width:      width,
	}, nil
}

// Batch Return copies of luminance and chrominance samples in range [start;end)
func (set *ColorSet) Batch(start, end int) (*tensor.Dense, *tensor.Dense, error) {
	if start < 0 || end > set.NumSamples || start >= end {
		return nil, nil, fmt.Errorf("Batch range [%d;%d) is out of bounds for %d samples", start, end, set.NumSamples)
	}
	lumaSlice, err := set.Luma.Slice(SlicerOneStep{StartIdx: start, EndIdx: end})
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't slice luminance batch")
	}
	chromaSlice, err := set.Chroma.Slice(SlicerOneStep{StartIdx: start, EndIdx: end})
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't slice chrominance batch")
	}
	luma := lumaSlice.Materialize().(*tensor.Dense)
	chroma := chromaSlice.Materialize().(*tensor.Dense)
	batchSize := end - start
	if err := luma.Reshape(batchSize, 1, set.Height, set.Width); err != nil {
		return nil, nil, errors.Wrap(err, "Can't reshape luminance batch")
	}
	if err := chroma.Reshape(batchSize, 2, set.Height, set.Width); err != nil {
		return nil, nil, errors.Wrap(err, "Can't reshape chrominance batch")
	}
	return luma, chroma, nil
}
