package colorgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

// CrossEntropyLoss See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// Default reduction is 'mean'
func CrossEntropyLoss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	log, err := gorgonia.Log(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A)")
	}
	neg, err := gorgonia.Neg(log)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	hprod, err := gorgonia.HadamardProd(neg, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*B)")
	}
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(hprod)
	case LossReductionMean:
		return gorgonia.Mean(hprod)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// L1Loss See ref. https://en.wikipedia.org/wiki/Least_absolute_deviations
// Default reduction is 'mean'
func L1Loss(a, b *gorgonia.Node, reduction ...LossReduction) (*gorgonia.Node, error) {
	sub, err := gorgonia.Sub(a, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A-B)")
	}
	abs, err := gorgonia.Abs(sub)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do |x|")
	}
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return gorgonia.Sum(abs)
	case LossReductionMean:
		return gorgonia.Mean(abs)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// WassersteinCriticLoss Critic part of the Wasserstein objective computed as
// mean(realScore) - mean(fakeScore). See ref. https://arxiv.org/abs/1701.07875
func WassersteinCriticLoss(realScore, fakeScore *gorgonia.Node) (*gorgonia.Node, error) {
	meanReal, err := gorgonia.Mean(realScore)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(real)")
	}
	meanFake, err := gorgonia.Mean(fakeScore)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do mean(fake)")
	}
	return gorgonia.Sub(meanReal, meanFake)
}

// GradientPenalty Regularization terms constraining the critic's score slope
// around interpolated samples. See ref. https://arxiv.org/abs/1704.00028
//
// The slope is estimated with a finite difference between the scores of a
// sample and the same sample nudged by epsilon along a random unit direction
// (see PerturbBatch): slope = (C(x + eps*d) - C(x)) / eps. Both resulting
// terms depend on the critic's weights through the two score nodes only, so a
// single symbolic differentiation of the total loss covers them.
//
// score, perturbedScore - critic's output nodes of shape (batchSize, 1)
// epsilon - step length the perturbed sample was produced with
//
// Returns two nodes: mean((|slope| - 1)^2) and the R1-style mean(slope^2).
// Both are non-negative; the first one is zero when the estimated slope
// magnitude is 1 everywhere.
func GradientPenalty(score, perturbedScore *gorgonia.Node, epsilon float64) (*gorgonia.Node, *gorgonia.Node, error) {
	if epsilon <= 0.0 {
		return nil, nil, fmt.Errorf("Perturbation step must be positive, but got %f", epsilon)
	}
	diff, err := gorgonia.Sub(perturbedScore, score)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do (perturbed-score)")
	}
	// Unnamed scalar value nodes of the same dtype hash identically in
	// gorgonia v0.9, so the graph would dedup this node and oneScalar below
	// into a single node; distinct names keep them separate.
	invEpsScalar := gorgonia.NewScalar(score.Graph(), score.Dtype(), gorgonia.WithName("gp_inv_epsilon"), gorgonia.WithValue(1.0/epsilon))
	slope, err := gorgonia.Mul(invEpsScalar, diff)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't scale score difference by 1/epsilon")
	}
	magnitude, err := gorgonia.Abs(slope)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do |x|")
	}
	oneScalar := gorgonia.NewScalar(score.Graph(), score.Dtype(), gorgonia.WithName("gp_one"), gorgonia.WithValue(1.0))
	deviation, err := gorgonia.Sub(magnitude, oneScalar)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do (x-1)")
	}
	deviationSqr, err := gorgonia.Square(deviation)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do (x-1)^2")
	}
	penalty, err := gorgonia.Mean(deviationSqr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't average gradient penalty")
	}
	slopeSqr, err := gorgonia.Square(slope)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do (x^2)")
	}
	r1, err := gorgonia.Mean(slopeSqr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't average squared slope")
	}
	return penalty, r1, nil
}
