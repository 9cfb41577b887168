package colorgan_go

import (
	"math"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func evalActivation(t *testing.T, activation ActivationFunc, input []float64, opts ...Options) []float64 {
	g := gorgonia.NewGraph()
	in := gorgonia.NewVector(g, gorgonia.Float64, gorgonia.WithShape(len(input)), gorgonia.WithName("in"), gorgonia.WithValue(tensor.New(tensor.WithShape(len(input)), tensor.WithBacking(input))))
	out, err := activation(in, opts...)
	if err != nil {
		t.Fatalf("Can't apply activation: %v", err)
	}
	var outValue gorgonia.Value
	gorgonia.Read(out, &outValue)
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("Can't run VM: %v", err)
	}
	vm.Reset()
	return outValue.Data().([]float64)
}

func TestLeakyRectify(t *testing.T) {
	got := evalActivation(t, LeakyRectify, []float64{-1.0, 0.0, 2.0})
	want := []float64{-0.2, 0.0, 2.0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Expected %v at #%d, but got %v", want[i], i, got[i])
		}
	}
}

func TestLeakyRectifyCustomSlope(t *testing.T) {
	got := evalActivation(t, LeakyRectify, []float64{-2.0, 3.0}, Options{Alpha: 0.01})
	want := []float64{-0.02, 3.0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Expected %v at #%d, but got %v", want[i], i, got[i])
		}
	}
}
