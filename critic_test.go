package colorgan_go

import (
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestCriticScoreShape(t *testing.T) {
	batchSize, height, width := 3, 16, 16
	g := gorgonia.NewGraph()
	critic := NewCritic(g, 3, 4)
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, 3, height, width), gorgonia.WithName("critic_input"))
	score, err := critic.Fwd(input, batchSize)
	if err != nil {
		t.Fatalf("Can't initialize feedforward: %v", err)
	}
	wantShape := tensor.Shape{batchSize, 1}
	if !score.Shape().Eq(wantShape) {
		t.Errorf("Expected score shape %v, but got %v", wantShape, score.Shape())
	}
}

func TestCriticSharedWeightsAcrossForwards(t *testing.T) {
	batchSize, height, width := 2, 16, 16
	g := gorgonia.NewGraph()
	critic := NewCritic(g, 3, 4)
	inputA := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, 3, height, width), gorgonia.WithName("critic_input_a"))
	inputB := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, 3, height, width), gorgonia.WithName("critic_input_b"))
	scoreA, err := critic.Fwd(inputA, batchSize)
	if err != nil {
		t.Fatalf("Can't initialize first feedforward: %v", err)
	}
	scoreB, err := critic.Fwd(inputB, batchSize)
	if err != nil {
		t.Fatalf("Can't initialize second feedforward: %v", err)
	}
	if len(critic.Learnables()) != 4*2+3*2+2 {
		t.Errorf("Expected %d learnables, but got %d", 4*2+3*2+2, len(critic.Learnables()))
	}

	var valueA, valueB gorgonia.Value
	gorgonia.Read(scoreA, &valueA)
	gorgonia.Read(scoreB, &valueB)
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	// Same sample fed through both forward instantiations must score identically
	sample := NormRandDense(batchSize, 3, height, width)
	if err := gorgonia.Let(inputA, sample); err != nil {
		t.Fatalf("Can't init first input value: %v", err)
	}
	if err := gorgonia.Let(inputB, sample.Clone().(*tensor.Dense)); err != nil {
		t.Fatalf("Can't init second input value: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatalf("Can't run VM: %v", err)
	}
	vm.Reset()
	dataA := valueA.Data().([]float64)
	dataB := valueB.Data().([]float64)
	for i := range dataA {
		if dataA[i] != dataB[i] {
			t.Errorf("Expected identical scores for shared weights, but got %v and %v at #%d", dataA[i], dataB[i], i)
		}
	}
}
