package colorgan_go

import (
	"math"
	"testing"

	rng "github.com/leesper/go_rng"
	"gorgonia.org/tensor"
)

func TestInterpolateBatch(t *testing.T) {
	batchSize, channels, height, width := 3, 3, 4, 4
	realBatch := UniformRandDense(batchSize, channels, height, width)
	fakeBatch := UniformRandDense(batchSize, channels, height, width)
	uniform := rng.NewUniformGenerator(1337)

	mixed, err := InterpolateBatch(realBatch, fakeBatch, uniform)
	if err != nil {
		t.Fatalf("Can't interpolate batches: %v", err)
	}
	if !mixed.Shape().Eq(realBatch.Shape()) {
		t.Fatalf("Expected mixed shape %v, but got %v", realBatch.Shape(), mixed.Shape())
	}
	realData := realBatch.Data().([]float64)
	fakeData := fakeBatch.Data().([]float64)
	mixedData := mixed.Data().([]float64)
	for i := range mixedData {
		lower := math.Min(realData[i], fakeData[i])
		upper := math.Max(realData[i], fakeData[i])
		if mixedData[i] < lower-1e-12 || mixedData[i] > upper+1e-12 {
			t.Errorf("Expected element #%d in [%v;%v], but got %v", i, lower, upper, mixedData[i])
		}
	}

	// Same mixing coefficient must apply to every element of a sample
	sampleSize := channels * height * width
	for i := 0; i < batchSize; i++ {
		var eps float64
		seen := false
		for j := i * sampleSize; j < (i+1)*sampleSize; j++ {
			if realData[j] == fakeData[j] {
				continue
			}
			current := (mixedData[j] - fakeData[j]) / (realData[j] - fakeData[j])
			if !seen {
				eps = current
				seen = true
				continue
			}
			if math.Abs(current-eps) > 1e-9 {
				t.Errorf("Expected single mixing coefficient for sample #%d, but got %v and %v", i, eps, current)
			}
		}
	}
}

func TestInterpolateBatchRejectsShapeMismatch(t *testing.T) {
	uniform := rng.NewUniformGenerator(1337)
	realBatch := UniformRandDense(2, 3, 4, 4)
	fakeBatch := UniformRandDense(2, 3, 4, 8)
	if _, err := InterpolateBatch(realBatch, fakeBatch, uniform); err == nil {
		t.Errorf("Expected error for batches of different shapes")
	}
}

func TestPerturbBatch(t *testing.T) {
	batchSize, channels, height, width := 3, 3, 4, 4
	epsilon := 0.01
	batch := UniformRandDense(batchSize, channels, height, width)
	gaussian := rng.NewGaussianGenerator(1337)

	nudged, err := PerturbBatch(batch, epsilon, gaussian)
	if err != nil {
		t.Fatalf("Can't perturb batch: %v", err)
	}
	if !nudged.Shape().Eq(batch.Shape()) {
		t.Fatalf("Expected nudged shape %v, but got %v", batch.Shape(), nudged.Shape())
	}
	data := batch.Data().([]float64)
	nudgedData := nudged.Data().([]float64)
	sampleSize := channels * height * width
	for i := 0; i < batchSize; i++ {
		distance := 0.0
		for j := i * sampleSize; j < (i+1)*sampleSize; j++ {
			diff := nudgedData[j] - data[j]
			distance += diff * diff
		}
		distance = math.Sqrt(distance)
		if math.Abs(distance-epsilon) > 1e-9 {
			t.Errorf("Expected sample #%d at distance %v, but got %v", i, epsilon, distance)
		}
	}

	if _, err := PerturbBatch(batch, 0.0, gaussian); err == nil {
		t.Errorf("Expected error for zero step length")
	}
}

func TestRandDenseShapes(t *testing.T) {
	wantShape := tensor.Shape{2, 3, 4, 4}
	if got := NormRandDense(2, 3, 4, 4).Shape(); !got.Eq(wantShape) {
		t.Errorf("Expected shape %v, but got %v", wantShape, got)
	}
	sampled := UniformRandDense(2, 3, 4, 4)
	if got := sampled.Shape(); !got.Eq(wantShape) {
		t.Errorf("Expected shape %v, but got %v", wantShape, got)
	}
	for _, v := range sampled.Data().([]float64) {
		if v < 0.0 || v >= 1.0 {
			t.Errorf("Expected uniform values in [0;1), but got %v", v)
		}
	}
}
