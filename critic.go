package colorgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// criticBlock Stride-2 convolution with optional batch normalization
type criticBlock struct {
	Conv      *convParams
	ScaleNode *gorgonia.Node
	ShiftNode *gorgonia.Node
}

func newCriticBlock(g *gorgonia.ExprGraph, name string, inChannels, outChannels int, normalize bool) *criticBlock {
	block := &criticBlock{
		Conv: newConvParams(g, name+"_conv", inChannels, outChannels, 4, []int{1, 1}, []int{2, 2}),
	}
	if normalize {
		block.ScaleNode = gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, outChannels, 1, 1), gorgonia.WithName(name+"_scale"), gorgonia.WithInit(gorgonia.Ones()))
		block.ShiftNode = gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, outChannels, 1, 1), gorgonia.WithName(name+"_shift"), gorgonia.WithInit(gorgonia.Zeroes()))
	}
	return block
}

func (block *criticBlock) learnables() gorgonia.Nodes {
	out := block.Conv.learnables()
	if block.ScaleNode != nil {
		out = append(out, block.ScaleNode, block.ShiftNode)
	}
	return out
}

// normalize2D Batch normalization composed from graph primitives.
// Statistics are taken over batch and spatial axes; scale and shift are learnable.
func normalize2D(input, scale, shift *gorgonia.Node, epsilon float64) (*gorgonia.Node, error) {
	channels := input.Shape()[1]
	mean, err := gorgonia.Mean(input, 0, 2, 3)
	if err != nil {
		return nil, errors.Wrap(err, "Can't compute per-channel mean")
	}
	meanReshaped, err := gorgonia.Reshape(mean, tensor.Shape{1, channels, 1, 1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape per-channel mean")
	}
	centered, err := gorgonia.BroadcastSub(input, meanReshaped, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrap(err, "Can't subtract per-channel mean")
	}
	squared, err := gorgonia.Square(centered)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	variance, err := gorgonia.Mean(squared, 0, 2, 3)
	if err != nil {
		return nil, errors.Wrap(err, "Can't compute per-channel variance")
	}
	epsilonScalar := gorgonia.NewScalar(input.Graph(), input.Dtype(), gorgonia.WithValue(epsilon))
	varianceStable, err := gorgonia.Add(variance, epsilonScalar)
	if err != nil {
		return nil, errors.Wrap(err, "Can't add epsilon to per-channel variance")
	}
	stddev, err := gorgonia.Sqrt(varianceStable)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do sqrt(x)")
	}
	stddevReshaped, err := gorgonia.Reshape(stddev, tensor.Shape{1, channels, 1, 1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape per-channel stddev")
	}
	normed, err := gorgonia.BroadcastHadamardDiv(centered, stddevReshaped, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrap(err, "Can't divide centered input by stddev")
	}
	scaled, err := gorgonia.BroadcastHadamardProd(normed, scale, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrap(err, "Can't scale normalized input")
	}
	shifted, err := gorgonia.BroadcastAdd(scaled, shift, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrap(err, "Can't shift normalized input")
	}
	return shifted, nil
}

// Critic Patch-style scorer of (chrominance, luminance) stacks.
//
// Four stride-2 convolutional blocks (no normalization on the first one to preserve
// input scale) with leaky rectification, then global average pooling over spatial
// axes and a linear projection to one scalar per sample.
//
// Fwd may be called multiple times on the same graph; every call shares the same
// weight nodes, which the adversarial objective relies on for scoring real, fake,
// interpolated and perturbed samples with one set of parameters.
type Critic struct {
	blocks     [4]*criticBlock
	projWeight *gorgonia.Node
	projBias   *gorgonia.Node

	out        *gorgonia.Node
	learnables gorgonia.Nodes
}

// NewCritic Constructor for Critic
//
// g - target expression graph
// inChannels - channel count of scored samples (chrominance + luminance)
// baseChannels - channel count of the first block; later blocks double it
//
func NewCritic(g *gorgonia.ExprGraph, inChannels, baseChannels int) *Critic {
	c := baseChannels
	net := &Critic{}
	net.blocks[0] = newCriticBlock(g, "critic_block1", inChannels, c, false)
	net.blocks[1] = newCriticBlock(g, "critic_block2", c, 2*c, true)
	net.blocks[2] = newCriticBlock(g, "critic_block3", 2*c, 4*c, true)
	net.blocks[3] = newCriticBlock(g, "critic_block4", 4*c, 8*c, true)
	net.projWeight = gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 8*c), gorgonia.WithName("critic_proj_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	net.projBias = gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, 1), gorgonia.WithName("critic_proj_b"), gorgonia.WithInit(gorgonia.Zeroes()))

	net.learnables = make(gorgonia.Nodes, 0, 4*4+2)
	for i := range net.blocks {
		net.learnables = append(net.learnables, net.blocks[i].learnables()...)
	}
	net.learnables = append(net.learnables, net.projWeight, net.projBias)
	return net
}

// Out Returns reference to output node of the most recent Fwd call
func (net *Critic) Out() *gorgonia.Node {
	return net.out
}

// Learnables Returns learnables nodes
func (net *Critic) Learnables() gorgonia.Nodes {
	return net.learnables
}

// Fwd Initializates feedforward for provided input and returns the score node of shape (batchSize, 1)
//
// input - Input node of shape (batchSize, channels, H, W)
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *Critic) Fwd(input *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	lastActivated := input
	for i := range net.blocks {
		convolved, err := net.blocks[i].Conv.Fwd(lastActivated)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't feedforward convolution of Critic's block #%d", i))
		}
		if net.blocks[i].ScaleNode != nil {
			convolved, err = normalize2D(convolved, net.blocks[i].ScaleNode, net.blocks[i].ShiftNode, 1e-5)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Can't normalize output of Critic's block #%d", i))
			}
		}
		activated, err := LeakyRectify(convolved)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't apply activation function to non-activated output of Critic's block #%d", i))
		}
		lastActivated = activated
	}

	// Global average pooling over spatial axes. Spatial axes are flattened
	// first: the reduce engine mishandles multi-axis reduction of unit-sized
	// trailing axes, and the last feature map degenerates to 1x1 for 16x16 input.
	blockShape := lastActivated.Shape()
	spatialSize := blockShape[2] * blockShape[3]
	flattened, err := gorgonia.Reshape(lastActivated, tensor.Shape{blockShape[0], blockShape[1], spatialSize})
	if err != nil {
		return nil, errors.Wrap(err, "Can't flatten spatial axes of Critic's last block")
	}
	var pooled *gorgonia.Node
	if spatialSize == 1 {
		pooled, err = gorgonia.Reshape(flattened, tensor.Shape{blockShape[0], blockShape[1]})
	} else {
		pooled, err = gorgonia.Mean(flattened, 2)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Can't pool output of Critic's last block")
	}

	// Linear projection to a single scalar per sample
	tOp, err := gorgonia.Transpose(net.projWeight)
	if err != nil {
		return nil, errors.Wrap(err, "Can't transpose weights of Critic's projection")
	}
	projected, err := gorgonia.Mul(pooled, tOp)
	if err != nil {
		return nil, errors.Wrap(err, "Can't multiply pooled output and weights of Critic's projection")
	}
	var score *gorgonia.Node
	if batchSize < 2 {
		score, err = gorgonia.Add(projected, net.projBias)
	} else {
		score, err = gorgonia.BroadcastAdd(projected, net.projBias, nil, []byte{0})
	}
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't add bias [batch_size = %d] to Critic's projection", batchSize))
	}
	net.out = score
	return score, nil
}
