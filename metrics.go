package colorgan_go

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Classifier Frozen convolutional classifier used for evaluation metrics only.
// Weights are expected to be restored from a checkpoint via Learnables(); this
// package never trains them.
type Classifier struct {
	graph *gorgonia.ExprGraph
	net   *Network
	input *gorgonia.Node
	probs gorgonia.Value
	vm    gorgonia.VM

	batchSize int
	classes   int
}

// NewClassifier Constructor for Classifier
//
// batchSize - fixed batch size of scored batches
// height, width - spatial resolution of scored RGB images; both must be divisible by 4
// classes - number of output classes
//
func NewClassifier(batchSize, height, width, classes int) (*Classifier, error) {
	if height%4 != 0 || width%4 != 0 {
		return nil, fmt.Errorf("Classifier resolution must be divisible by 4, but got %dx%d", height, width)
	}
	g := gorgonia.NewGraph()
	layers := []*Layer{
		{
			WeightNode: gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(16, 3, 3, 3), gorgonia.WithName("classifier_conv1_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
			BiasNode:   gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 16, 1, 1), gorgonia.WithName("classifier_conv1_b"), gorgonia.WithInit(gorgonia.Zeroes())),
			Activation: Rectify,
			Type:       LayerConvolutional,
			KernelHeight: 3, KernelWidth: 3,
			Padding: []int{1, 1}, Stride: []int{1, 1}, Dilation: []int{1, 1},
		},
		{
			Activation:   NoActivation,
			Type:         LayerMaxpool,
			KernelHeight: 2, KernelWidth: 2,
			Padding: []int{0, 0}, Stride: []int{2, 2},
		},
		{
			WeightNode: gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(32, 16, 3, 3), gorgonia.WithName("classifier_conv2_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
			BiasNode:   gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, 32, 1, 1), gorgonia.WithName("classifier_conv2_b"), gorgonia.WithInit(gorgonia.Zeroes())),
			Activation: Rectify,
			Type:       LayerConvolutional,
			KernelHeight: 3, KernelWidth: 3,
			Padding: []int{1, 1}, Stride: []int{1, 1}, Dilation: []int{1, 1},
		},
		{
			Activation:   NoActivation,
			Type:         LayerMaxpool,
			KernelHeight: 2, KernelWidth: 2,
			Padding: []int{0, 0}, Stride: []int{2, 2},
		},
		{
			Activation: NoActivation,
			Type:       LayerFlatten,
		},
		{
			WeightNode: gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(classes, 32*(height/4)*(width/4)), gorgonia.WithName("classifier_linear_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
			BiasNode:   gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, classes), gorgonia.WithName("classifier_linear_b"), gorgonia.WithInit(gorgonia.Zeroes())),
			Activation: Softmax,
			Type:       LayerLinear,
		},
	}
	c := &Classifier{
		graph:     g,
		net:       &Network{Name: "classifier", Layers: layers},
		batchSize: batchSize,
		classes:   classes,
	}
	c.input = gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(batchSize, 3, height, width), gorgonia.WithName("classifier_input"))
	if err := c.net.Fwd(c.input, batchSize); err != nil {
		return nil, errors.Wrap(err, "Can't initialize classifier feedforward")
	}
	gorgonia.Read(c.net.Out(), &c.probs)
	c.vm = gorgonia.NewTapeMachine(g)
	return c, nil
}

// Learnables Returns learnables nodes (for checkpoint restoring)
func (c *Classifier) Learnables() gorgonia.Nodes {
	return c.net.Learnables()
}

// Close Release tape machine resources
func (c *Classifier) Close() error {
	return c.vm.Close()
}

// Predict Run a batch of (batchSize, 3, h, w) RGB images through the classifier
// and return per-class probabilities of shape (batchSize, classes)
func (c *Classifier) Predict(batch *tensor.Dense) (*tensor.Dense, error) {
	if err := gorgonia.Let(c.input, batch); err != nil {
		return nil, errors.Wrap(err, "Can't init classifier input value")
	}
	if err := c.vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run classifier VM")
	}
	c.vm.Reset()
	dense, ok := c.probs.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("Classifier output is not a dense tensor")
	}
	return dense.Clone().(*tensor.Dense), nil
}

// InceptionScore Mean and standard deviation of per-sample Kullback-Leibler
// divergence from the uniform class distribution.
//
// probs - (n, classes) per-class probabilities
//
// KL divergence is non-negative, so the mean is non-negative for any
// non-degenerate distribution. Zero probabilities propagate NaN through the
// logarithm, same as the reference recipe.
func InceptionScore(probs *tensor.Dense) (float64, float64, error) {
	if probs.Dims() != 2 {
		return 0, 0, fmt.Errorf("Probabilities must have two dimensions, but got %d", probs.Dims())
	}
	data, ok := probs.Data().([]float64)
	if !ok {
		return 0, 0, fmt.Errorf("Probabilities must be of type float64")
	}
	numSamples := probs.Shape()[0]
	classes := probs.Shape()[1]
	divergences := make([]float64, numSamples)
	for i := 0; i < numSamples; i++ {
		kl := 0.0
		for j := 0; j < classes; j++ {
			p := data[i*classes+j]
			kl += p * math.Log(p*float64(classes))
		}
		divergences[i] = kl
	}
	return stat.Mean(divergences, nil), stat.StdDev(divergences, nil), nil
}

// FrechetDistance Simplified Fréchet-style distance between feature statistics of
// real and generated sets: sum over features of squared mean difference plus squared
// standard deviation difference. The covariance-trace term of the standard metric
// is omitted, same as the reference recipe.
//
// realFeatures, genFeatures - (n, features) and (m, features) matrices
//
func FrechetDistance(realFeatures, genFeatures *tensor.Dense) (float64, error) {
	if realFeatures.Dims() != 2 || genFeatures.Dims() != 2 {
		return 0, fmt.Errorf("Feature sets must have two dimensions, but got %d and %d", realFeatures.Dims(), genFeatures.Dims())
	}
	features := realFeatures.Shape()[1]
	if genFeatures.Shape()[1] != features {
		return 0, fmt.Errorf("Feature sets must agree on feature count, but got %d and %d", features, genFeatures.Shape()[1])
	}
	realData, ok := realFeatures.Data().([]float64)
	if !ok {
		return 0, fmt.Errorf("Real feature set must be of type float64")
	}
	genData, ok := genFeatures.Data().([]float64)
	if !ok {
		return 0, fmt.Errorf("Generated feature set must be of type float64")
	}
	distance := 0.0
	realColumn := make([]float64, realFeatures.Shape()[0])
	genColumn := make([]float64, genFeatures.Shape()[0])
	for j := 0; j < features; j++ {
		for i := range realColumn {
			realColumn[i] = realData[i*features+j]
		}
		for i := range genColumn {
			genColumn[i] = genData[i*features+j]
		}
		meanDiff := stat.Mean(realColumn, nil) - stat.Mean(genColumn, nil)
		stdDiff := stat.StdDev(realColumn, nil) - stat.StdDev(genColumn, nil)
		distance += meanDiff*meanDiff + stdDiff*stdDiff
	}
	return distance, nil
}
