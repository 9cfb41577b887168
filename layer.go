package colorgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunction combo
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int

	UpsampleScale int
	Probability   float64
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerConvolutional
	LayerMaxpool
	LayerUpsample
	LayerDropout
)

var (
	allowedNoWeights = []LayerType{LayerMaxpool, LayerFlatten, LayerUpsample, LayerDropout}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Initializates feedforward of single layer for provided input (activation function is not applied)
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied to bias node
// input - Input node
//
func (layer *Layer) Fwd(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	if layer.WeightNode == nil && !noWeightsAllowed(layer.Type) {
		return nil, fmt.Errorf("Layer of type '%d' must have non-nil weight node", layer.Type)
	}
	nonActivated := &gorgonia.Node{}
	var err error
	switch layer.Type {
	case LayerLinear:
		tOp, err := gorgonia.Transpose(layer.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights of linear layer")
		}
		nonActivated, err = gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights of linear layer")
		}
		if layer.BiasNode != nil {
			if batchSize < 2 {
				nonActivated, err = gorgonia.Add(nonActivated, layer.BiasNode)
				if err != nil {
					return nil, errors.Wrap(err, "Can't add bias to non-activated output of linear layer")
				}
			} else {
				nonActivated, err = gorgonia.BroadcastAdd(nonActivated, layer.BiasNode, nil, []byte{0})
				if err != nil {
					return nil, errors.Wrap(err, fmt.Sprintf("Can't add [in broadcast term with batch_size = %d] bias to non-activated output of linear layer", batchSize))
				}
			}
		}
	case LayerConvolutional:
		nonActivated, err = gorgonia.Conv2d(input, layer.WeightNode, tensor.Shape{layer.KernelHeight, layer.KernelWidth}, layer.Padding, layer.Stride, layer.Dilation)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel of convolutional layer")
		}
		if layer.BiasNode != nil {
			nonActivated, err = gorgonia.BroadcastAdd(nonActivated, layer.BiasNode, nil, []byte{0, 2, 3})
			if err != nil {
				return nil, errors.Wrap(err, "Can't add bias to non-activated output of convolutional layer")
			}
		}
	case LayerMaxpool:
		nonActivated, err = gorgonia.MaxPool2D(input, tensor.Shape{layer.KernelHeight, layer.KernelWidth}, layer.Padding, layer.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't maxpool[2D] input by kernel of maxpool layer")
		}
	case LayerUpsample:
		nonActivated, err = gorgonia.Upsample2D(input, layer.UpsampleScale)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't upsample[2D] input with scale = %d", layer.UpsampleScale))
		}
	case LayerDropout:
		nonActivated, err = gorgonia.Dropout(input, layer.Probability)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't apply dropout with probability = %f", layer.Probability))
		}
	case LayerFlatten:
		nonActivated, err = gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input of flatten layer")
		}
	default:
		return nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", layer.Type)
	}
	return nonActivated, nil
}
