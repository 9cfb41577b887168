package colorgan_go

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// ActivationFunc Just an alias to Gorgonia'a api_gen.go - https://github.com/gorgonia/gorgonia/blob/master/api_gen.go#L1
type ActivationFunc func(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)

func NoActivation(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) { return a, nil }
func Rectify(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error)      { return gorgonia.Rectify(a) }
func Softmax(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) {
	for i := range opts {
		// Check if axis option is provided
		// First i-th option with provided field 'Axis' would be considered for use.
		if len(opts[i].Axis) > 0 {
			return gorgonia.SoftMax(a, opts[i].Axis...)
		}
	}
	return gorgonia.SoftMax(a)
}

// LeakyRectify Leaky version of Rectify composed as relu(x) - alpha*relu(-x).
// Default slope is 0.2. Custom slope can be provided via Options.Alpha.
func LeakyRectify(a *gorgonia.Node, opts ...Options) (*gorgonia.Node, error) {
	alpha := 0.2
	for i := range opts {
		if opts[i].Alpha != 0.0 {
			alpha = opts[i].Alpha
			break
		}
	}
	pos, err := gorgonia.Rectify(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do relu(x)")
	}
	neg, err := gorgonia.Neg(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	negRectified, err := gorgonia.Rectify(neg)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do relu(-x)")
	}
	alphaScalar := gorgonia.NewScalar(a.Graph(), a.Dtype(), gorgonia.WithValue(alpha))
	scaled, err := gorgonia.Mul(alphaScalar, negRectified)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do alpha*relu(-x)")
	}
	return gorgonia.Sub(pos, scaled)
}

// Options Struct for holding options for certain activation functions.
type Options struct {
	Axis  []int
	Alpha float64
}
