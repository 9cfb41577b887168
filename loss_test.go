package colorgan_go

import (
	"math"
	"math/rand"
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func evalPenalty(t *testing.T, scores, perturbedScores []float64, epsilon float64) (float64, float64) {
	g := gorgonia.NewGraph()
	n := len(scores)
	score := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(n, 1), gorgonia.WithName("interp_score"), gorgonia.WithValue(tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(scores))))
	perturbed := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(n, 1), gorgonia.WithName("perturbed_score"), gorgonia.WithValue(tensor.New(tensor.WithShape(n, 1), tensor.WithBacking(perturbedScores))))
	penalty, r1, err := GradientPenalty(score, perturbed, epsilon)
	if err != nil {
		t.Fatalf("Can't define gradient penalty: %v", err)
	}
	var penaltyValue, r1Value gorgonia.Value
	gorgonia.Read(penalty, &penaltyValue)
	gorgonia.Read(r1, &r1Value)
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("Can't run VM: %v", err)
	}
	vm.Reset()
	return penaltyValue.Data().(float64), r1Value.Data().(float64)
}

func TestGradientPenaltyZeroForUnitSlope(t *testing.T) {
	// A score rising by exactly epsilon along the nudge gives slope 1 for
	// every sample, so the penalty must vanish and R1 must equal 1.
	epsilon := 0.01
	scores := []float64{0.5, -1.0, 3.0}
	perturbedScores := []float64{0.5 + epsilon, -1.0 + epsilon, 3.0 + epsilon}
	penalty, r1 := evalPenalty(t, scores, perturbedScores, epsilon)
	if math.Abs(penalty) > 1e-12 {
		t.Errorf("Expected zero penalty for unit slope, but got %v", penalty)
	}
	if math.Abs(r1-1.0) > 1e-12 {
		t.Errorf("Expected R1 = 1 for unit slope, but got %v", r1)
	}
}

func TestGradientPenaltyZeroForNegativeUnitSlope(t *testing.T) {
	// Slope magnitude matters, not its sign
	epsilon := 0.01
	scores := []float64{2.0, 0.0}
	perturbedScores := []float64{2.0 - epsilon, 0.0 - epsilon}
	penalty, r1 := evalPenalty(t, scores, perturbedScores, epsilon)
	if math.Abs(penalty) > 1e-12 {
		t.Errorf("Expected zero penalty for slope of magnitude 1, but got %v", penalty)
	}
	if math.Abs(r1-1.0) > 1e-12 {
		t.Errorf("Expected R1 = 1 for slope of magnitude 1, but got %v", r1)
	}
}

func TestGradientPenaltyKnownValue(t *testing.T) {
	// Slopes are 3 and 0: penalty = ((3-1)^2 + (0-1)^2) / 2, R1 = (9 + 0) / 2
	epsilon := 0.1
	scores := []float64{1.0, -2.0}
	perturbedScores := []float64{1.3, -2.0}
	penalty, r1 := evalPenalty(t, scores, perturbedScores, epsilon)
	if math.Abs(penalty-2.5) > 1e-9 {
		t.Errorf("Expected penalty 2.5, but got %v", penalty)
	}
	if math.Abs(r1-4.5) > 1e-9 {
		t.Errorf("Expected R1 = 4.5, but got %v", r1)
	}
}

func TestGradientPenaltyNonNegative(t *testing.T) {
	rand.Seed(1337)
	for i := 0; i < 5; i++ {
		scores := make([]float64, 4)
		perturbedScores := make([]float64, 4)
		for j := range scores {
			scores[j] = rand.NormFloat64()
			perturbedScores[j] = rand.NormFloat64()
		}
		penalty, r1 := evalPenalty(t, scores, perturbedScores, 0.01)
		if penalty < 0.0 {
			t.Errorf("Expected non-negative penalty, but got %v", penalty)
		}
		if r1 < 0.0 {
			t.Errorf("Expected non-negative R1 penalty, but got %v", r1)
		}
	}
}

func TestGradientPenaltyRejectsNonPositiveStep(t *testing.T) {
	g := gorgonia.NewGraph()
	score := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 1), gorgonia.WithName("interp_score"))
	perturbed := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 1), gorgonia.WithName("perturbed_score"))
	if _, _, err := GradientPenalty(score, perturbed, 0.0); err == nil {
		t.Errorf("Expected error for zero perturbation step")
	}
}

func TestWassersteinCriticLoss(t *testing.T) {
	g := gorgonia.NewGraph()
	realScore := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 1), gorgonia.WithName("real_score"), gorgonia.WithValue(tensor.New(tensor.WithShape(2, 1), tensor.WithBacking([]float64{1.0, 3.0}))))
	fakeScore := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 1), gorgonia.WithName("fake_score"), gorgonia.WithValue(tensor.New(tensor.WithShape(2, 1), tensor.WithBacking([]float64{0.5, 0.5}))))
	loss, err := WassersteinCriticLoss(realScore, fakeScore)
	if err != nil {
		t.Fatalf("Can't define Wasserstein critic loss: %v", err)
	}
	var lossValue gorgonia.Value
	gorgonia.Read(loss, &lossValue)
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("Can't run VM: %v", err)
	}
	vm.Reset()
	// mean(real) - mean(fake) = 2.0 - 0.5
	if got := lossValue.Data().(float64); math.Abs(got-1.5) > 1e-12 {
		t.Errorf("Expected loss 1.5, but got %v", got)
	}
}

func TestCrossEntropyLossSumReduction(t *testing.T) {
	g := gorgonia.NewGraph()
	probs := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 2), gorgonia.WithName("probs"), gorgonia.WithValue(tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float64{0.5, 0.5}))))
	oneHot := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 2), gorgonia.WithName("one_hot"), gorgonia.WithValue(tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float64{1.0, 0.0}))))
	loss, err := CrossEntropyLoss(probs, oneHot, LossReductionSum)
	if err != nil {
		t.Fatalf("Can't define cross entropy loss: %v", err)
	}
	var lossValue gorgonia.Value
	gorgonia.Read(loss, &lossValue)
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("Can't run VM: %v", err)
	}
	vm.Reset()
	// -log(0.5) for the single hot class
	if got := lossValue.Data().(float64); math.Abs(got-math.Log(2.0)) > 1e-12 {
		t.Errorf("Expected loss ln(2), but got %v", got)
	}
}

func TestL1LossMeanReduction(t *testing.T) {
	g := gorgonia.NewGraph()
	a := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("a"), gorgonia.WithValue(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{1.0, 2.0, 3.0, 4.0}))))
	b := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(2, 2), gorgonia.WithName("b"), gorgonia.WithValue(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{2.0, 0.0, 3.0, 8.0}))))
	loss, err := L1Loss(a, b)
	if err != nil {
		t.Fatalf("Can't define L1 loss: %v", err)
	}
	var lossValue gorgonia.Value
	gorgonia.Read(loss, &lossValue)
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("Can't run VM: %v", err)
	}
	vm.Reset()
	// (1 + 2 + 0 + 4) / 4
	if got := lossValue.Data().(float64); math.Abs(got-1.75) > 1e-12 {
		t.Errorf("Expected loss 1.75, but got %v", got)
	}
}
