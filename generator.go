package colorgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// convParams Weight+Bias combo of a single convolution
type convParams struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	Kernel     int
	Padding    []int
	Stride     []int
}

func newConvParams(g *gorgonia.ExprGraph, name string, inChannels, outChannels, kernel int, padding, stride []int) *convParams {
	return &convParams{
		WeightNode: gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(outChannels, inChannels, kernel, kernel), gorgonia.WithName(name+"_w"), gorgonia.WithInit(gorgonia.GlorotN(1.0))),
		BiasNode:   gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(1, outChannels, 1, 1), gorgonia.WithName(name+"_b"), gorgonia.WithInit(gorgonia.Zeroes())),
		Kernel:     kernel,
		Padding:    padding,
		Stride:     stride,
	}
}

// Fwd Convolves input by kernel and adds bias (no activation)
func (p *convParams) Fwd(input *gorgonia.Node) (*gorgonia.Node, error) {
	conv, err := gorgonia.Conv2d(input, p.WeightNode, tensor.Shape{p.Kernel, p.Kernel}, p.Padding, p.Stride, []int{1, 1})
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't convolve[2D] input by kernel '%s'", p.WeightNode.Name()))
	}
	withBias, err := gorgonia.BroadcastAdd(conv, p.BiasNode, nil, []byte{0, 2, 3})
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't add bias '%s' to convolved input", p.BiasNode.Name()))
	}
	return withBias, nil
}

func (p *convParams) learnables() gorgonia.Nodes {
	return gorgonia.Nodes{p.WeightNode, p.BiasNode}
}

// residualParams Two 3x3 convolutions with a projected identity shortcut
type residualParams struct {
	Conv1 *convParams
	Conv2 *convParams
	Proj  *convParams
}

func newResidualParams(g *gorgonia.ExprGraph, name string, inChannels, outChannels int) *residualParams {
	return &residualParams{
		Conv1: newConvParams(g, name+"_conv1", inChannels, outChannels, 3, []int{1, 1}, []int{1, 1}),
		Conv2: newConvParams(g, name+"_conv2", outChannels, outChannels, 3, []int{1, 1}, []int{1, 1}),
		Proj:  newConvParams(g, name+"_proj", inChannels, outChannels, 1, []int{0, 0}, []int{1, 1}),
	}
}

// Fwd Feedforwards input through conv->relu->conv and adds projected shortcut
func (p *residualParams) Fwd(input *gorgonia.Node) (*gorgonia.Node, error) {
	first, err := p.Conv1.Fwd(input)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward first convolution of residual block")
	}
	firstActivated, err := gorgonia.Rectify(first)
	if err != nil {
		return nil, errors.Wrap(err, "Can't apply activation function to first convolution of residual block")
	}
	second, err := p.Conv2.Fwd(firstActivated)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward second convolution of residual block")
	}
	shortcut, err := p.Proj.Fwd(input)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward shortcut projection of residual block")
	}
	summed, err := gorgonia.Add(second, shortcut)
	if err != nil {
		return nil, errors.Wrap(err, "Can't add shortcut to second convolution of residual block")
	}
	return gorgonia.Rectify(summed)
}

func (p *residualParams) learnables() gorgonia.Nodes {
	out := make(gorgonia.Nodes, 0, 6)
	out = append(out, p.Conv1.learnables()...)
	out = append(out, p.Conv2.learnables()...)
	out = append(out, p.Proj.learnables()...)
	return out
}

// ColorGenerator Encoder-decoder network predicting two chrominance channels from one luminance channel.
//
// Three encoding stages halve spatial resolution (2x2 maxpool) before a residual block;
// decoding stages double it back (2x upsampling), concatenating the matching encoder
// stage output before a residual block. The last decoding stage concatenates the raw
// luminance input. Dropout is applied after every encoding stage and the bridge.
//
// Input must be (batch, 1, H, W) with H and W divisible by 8; output is (batch, 2, H, W).
type ColorGenerator struct {
	enc    [3]*residualParams
	bridge *residualParams
	dec    [3]*residualParams
	head   *convParams

	dropoutRate float64
	out         *gorgonia.Node
	learnables  gorgonia.Nodes
}

// NewColorGenerator Constructor for ColorGenerator
//
// g - target expression graph
// baseChannels - channel count of the shallowest stage; deeper stages double it
// dropoutRate - dropout probability after encoding stages and bridge; 0 disables dropout
//
func NewColorGenerator(g *gorgonia.ExprGraph, baseChannels int, dropoutRate float64) *ColorGenerator {
	c := baseChannels
	net := &ColorGenerator{dropoutRate: dropoutRate}
	net.enc[0] = newResidualParams(g, "generator_enc1", 1, c)
	net.enc[1] = newResidualParams(g, "generator_enc2", c, 2*c)
	net.enc[2] = newResidualParams(g, "generator_enc3", 2*c, 4*c)
	net.bridge = newResidualParams(g, "generator_bridge", 4*c, 8*c)
	net.dec[0] = newResidualParams(g, "generator_dec1", 8*c+2*c, 4*c)
	net.dec[1] = newResidualParams(g, "generator_dec2", 4*c+c, 2*c)
	net.dec[2] = newResidualParams(g, "generator_dec3", 2*c+1, c)
	net.head = newConvParams(g, "generator_head", c, 2, 1, []int{0, 0}, []int{1, 1})

	net.learnables = make(gorgonia.Nodes, 0, 8*6+2)
	for i := range net.enc {
		net.learnables = append(net.learnables, net.enc[i].learnables()...)
	}
	net.learnables = append(net.learnables, net.bridge.learnables()...)
	for i := range net.dec {
		net.learnables = append(net.learnables, net.dec[i].learnables()...)
	}
	net.learnables = append(net.learnables, net.head.learnables()...)
	return net
}

// Out Returns reference to output node
func (net *ColorGenerator) Out() *gorgonia.Node {
	return net.out
}

// Learnables Returns learnables nodes
func (net *ColorGenerator) Learnables() gorgonia.Nodes {
	return net.learnables
}

func (net *ColorGenerator) dropout(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	if net.dropoutRate <= 0.0 {
		return input, nil
	}
	layer := &Layer{Activation: NoActivation, Type: LayerDropout, Probability: net.dropoutRate}
	return layer.Fwd(batchSize, input)
}

// Fwd Initializates feedforward for provided input and returns the output node
//
// input - Input node of shape (batchSize, 1, H, W)
// batchSize - batch size
//
func (net *ColorGenerator) Fwd(input *gorgonia.Node, batchSize int) (*gorgonia.Node, error) {
	skips := make([]*gorgonia.Node, 0, 3)
	skips = append(skips, input)

	pool := &Layer{Activation: NoActivation, Type: LayerMaxpool, KernelHeight: 2, KernelWidth: 2, Padding: []int{0, 0}, Stride: []int{2, 2}}
	upsample := &Layer{Activation: NoActivation, Type: LayerUpsample, UpsampleScale: 2}

	// Encoding stages: maxpool then residual block then dropout
	lastActivated := input
	for i := range net.enc {
		pooled, err := pool.Fwd(batchSize, lastActivated)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't maxpool[2D] input of Generator's encoding stage #%d", i))
		}
		blockOut, err := net.enc[i].Fwd(pooled)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't feedforward residual block of Generator's encoding stage #%d", i))
		}
		blockOut, err = net.dropout(batchSize, blockOut)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't apply dropout to Generator's encoding stage #%d", i))
		}
		gorgonia.WithName(fmt.Sprintf("generator_enc_activated_%d", i))(blockOut)
		skips = append(skips, blockOut)
		lastActivated = blockOut
	}

	// Bridge
	bridgeOut, err := net.bridge.Fwd(lastActivated)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward residual block of Generator's bridge")
	}
	bridgeOut, err = net.dropout(batchSize, bridgeOut)
	if err != nil {
		return nil, errors.Wrap(err, "Can't apply dropout to Generator's bridge")
	}
	gorgonia.WithName("generator_bridge_activated")(bridgeOut)
	lastActivated = bridgeOut

	// Decoding stages: upsample, concatenate matching encoder output, residual block.
	// skips[2] and skips[1] match the first two decoding resolutions; skips[0] is the raw input.
	for i := range net.dec {
		upsampled, err := upsample.Fwd(batchSize, lastActivated)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't upsample[2D] input of Generator's decoding stage #%d", i))
		}
		concatenated, err := gorgonia.Concat(1, upsampled, skips[len(skips)-2-i])
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't concatenate skip connection of Generator's decoding stage #%d", i))
		}
		blockOut, err := net.dec[i].Fwd(concatenated)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't feedforward residual block of Generator's decoding stage #%d", i))
		}
		gorgonia.WithName(fmt.Sprintf("generator_dec_activated_%d", i))(blockOut)
		lastActivated = blockOut
	}

	// 1x1 projection to two chrominance channels
	headOut, err := net.head.Fwd(lastActivated)
	if err != nil {
		return nil, errors.Wrap(err, "Can't feedforward 1x1 projection of Generator's head")
	}
	gorgonia.WithName("generator_out")(headOut)
	net.out = headOut
	return headOut, nil
}
