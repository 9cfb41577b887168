package colorgan_go

import (
	"fmt"
	"reflect"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestColorGeneratorShapeContract(t *testing.T) {
	cases := []struct {
		batchSize int
		height    int
		width     int
	}{
		{1, 8, 8},
		{2, 16, 16},
		{2, 32, 24},
		{4, 32, 32},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%dx%dx%d", c.batchSize, c.height, c.width), func(t *testing.T) {
			g := gorgonia.NewGraph()
			generator := NewColorGenerator(g, 4, 0.0)
			input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(c.batchSize, 1, c.height, c.width), gorgonia.WithName("generator_input"))
			out, err := generator.Fwd(input, c.batchSize)
			if err != nil {
				t.Fatalf("Can't initialize feedforward: %v", err)
			}
			wantShape := tensor.Shape{c.batchSize, 2, c.height, c.width}
			if !out.Shape().Eq(wantShape) {
				t.Errorf("Expected output shape %v, but got %v", wantShape, out.Shape())
			}
		})
	}
}

func TestColorGeneratorDeterministicForward(t *testing.T) {
	batchSize, height, width := 2, 16, 16
	g := gorgonia.NewGraph()
	generator := NewColorGenerator(g, 4, 0.0)
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, 1, height, width), gorgonia.WithName("generator_input"))
	out, err := generator.Fwd(input, batchSize)
	if err != nil {
		t.Fatalf("Can't initialize feedforward: %v", err)
	}
	var outValue gorgonia.Value
	gorgonia.Read(out, &outValue)
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	luma := NormRandDense(batchSize, 1, height, width)
	runForward := func() []float64 {
		if err := gorgonia.Let(input, luma); err != nil {
			t.Fatalf("Can't init input value: %v", err)
		}
		if err := vm.RunAll(); err != nil {
			t.Fatalf("Can't run VM: %v", err)
		}
		vm.Reset()
		data := outValue.Data().([]float64)
		copied := make([]float64, len(data))
		copy(copied, data)
		return copied
	}
	first := runForward()
	second := runForward()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected bit-identical forward passes for fixed weights and input")
	}
}

func TestColorGeneratorLearnablesNamedUniquely(t *testing.T) {
	g := gorgonia.NewGraph()
	generator := NewColorGenerator(g, 4, 0.0)
	seen := make(map[string]bool)
	for _, node := range generator.Learnables() {
		if node.Name() == "" {
			t.Fatalf("Learnable node without name")
		}
		if seen[node.Name()] {
			t.Errorf("Duplicated learnable node name '%s'", node.Name())
		}
		seen[node.Name()] = true
	}
}
