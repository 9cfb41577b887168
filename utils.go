package colorgan_go

import (
	"fmt"
	"math"
	"math/rand"

	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense of provided shape filled with normally distributed float64 values
func NormRandDense(shape ...int) *tensor.Dense {
	total := 1
	for _, s := range shape {
		total *= s
	}
	data := make([]float64, total)
	for i := range data {
		data[i] = rand.NormFloat64()
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// UniformRandDense Return reference to tensor.Dense of provided shape filled with pseudo-random float64 values in range [0.0,1.0)
func UniformRandDense(shape ...int) *tensor.Dense {
	total := 1
	for _, s := range shape {
		total *= s
	}
	data := make([]float64, total)
	for i := range data {
		data[i] = rand.Float64()
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// SlicerOneStep Just iterator with step size = 1
type SlicerOneStep struct {
	StartIdx, EndIdx int
}

func (s SlicerOneStep) Start() int { return s.StartIdx }
func (s SlicerOneStep) End() int   { return s.EndIdx }
func (s SlicerOneStep) Step() int  { return 1 }

// InterpolateBatch Return per-sample convex combination eps*real + (1-eps)*fake
// where eps is drawn uniformly in [0,1) for every sample of the batch.
//
// real, fake - tensors of identical shape with the batch on axis 0
// uniform - source of mixing coefficients
//
func InterpolateBatch(real, fake *tensor.Dense, uniform *rng.UniformGenerator) (*tensor.Dense, error) {
	if !real.Shape().Eq(fake.Shape()) {
		return nil, fmt.Errorf("Real and fake batches must have same shape, but got %v and %v", real.Shape(), fake.Shape())
	}
	realData, ok := real.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Real batch must be of type float64")
	}
	fakeData, ok := fake.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Fake batch must be of type float64")
	}
	batchSize := real.Shape()[0]
	sampleSize := len(realData) / batchSize
	mixed := make([]float64, len(realData))
	for i := 0; i < batchSize; i++ {
		eps := uniform.Float64()
		for j := i * sampleSize; j < (i+1)*sampleSize; j++ {
			mixed[j] = eps*realData[j] + (1.0-eps)*fakeData[j]
		}
	}
	return tensor.New(tensor.WithShape(real.Shape()...), tensor.WithBacking(mixed)), nil
}

// PerturbBatch Return a copy of the batch with every sample nudged by epsilon
// along its own random unit direction, so the per-sample L2 distance between
// input and output is exactly epsilon.
//
// batch - tensor with the batch on axis 0
// epsilon - step length
// gaussian - source of direction components (normalized per sample)
//
func PerturbBatch(batch *tensor.Dense, epsilon float64, gaussian *rng.GaussianGenerator) (*tensor.Dense, error) {
	if epsilon <= 0.0 {
		return nil, fmt.Errorf("Perturbation step must be positive, but got %f", epsilon)
	}
	data, ok := batch.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("Batch must be of type float64")
	}
	batchSize := batch.Shape()[0]
	sampleSize := len(data) / batchSize
	nudged := make([]float64, len(data))
	direction := make([]float64, sampleSize)
	for i := 0; i < batchSize; i++ {
		norm := 0.0
		for j := range direction {
			direction[j] = gaussian.Gaussian(0.0, 1.0)
			norm += direction[j] * direction[j]
		}
		norm = math.Sqrt(norm)
		if norm == 0.0 {
			direction[0] = 1.0
			norm = 1.0
		}
		for j := range direction {
			nudged[i*sampleSize+j] = data[i*sampleSize+j] + epsilon*direction[j]/norm
		}
	}
	return tensor.New(tensor.WithShape(batch.Shape()...), tensor.WithBacking(nudged)), nil
}

// PlotLoss Plot chart for recorded loss values over training steps
func PlotLoss(values []float64, fname string) error {
	lineData := make(plotter.XYs, len(values))
	for i := range values {
		lineData[i].X = float64(i)
		lineData[i].Y = values[i]
	}
	line, err := plotter.NewLine(lineData)
	if err != nil {
		return errors.Wrap(err, "Can't init new line")
	}
	p := plot.New()
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	p.Add(line)
	// Save the plot to a PNG file.
	if err := p.Save(4*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}
