package colorgan_go

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// SaveWeights Snapshot values of provided learnable nodes to a file.
// Nodes are keyed by their graph names, so names must be unique and stable
// across program runs for the snapshot to be loadable.
func SaveWeights(fname string, learnables gorgonia.Nodes) error {
	snapshot := make(map[string]*tensor.Dense, len(learnables))
	for _, node := range learnables {
		value := node.Value()
		if value == nil {
			return fmt.Errorf("Learnable node '%s' has no value to snapshot", node.Name())
		}
		dense, ok := value.(*tensor.Dense)
		if !ok {
			return fmt.Errorf("Learnable node '%s' holds non-dense value", node.Name())
		}
		if _, ok := snapshot[node.Name()]; ok {
			return fmt.Errorf("Learnable node name '%s' is duplicated", node.Name())
		}
		snapshot[node.Name()] = dense
	}
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't create checkpoint file '%s'", fname))
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(snapshot); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't encode checkpoint file '%s'", fname))
	}
	return nil
}

// LoadWeights Restore values of provided learnable nodes from a file produced by SaveWeights.
// Target nodes must come from an identically constructed network: every node name
// must be present in the snapshot with a matching shape.
func LoadWeights(fname string, learnables gorgonia.Nodes) error {
	f, err := os.Open(fname)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't open checkpoint file '%s'", fname))
	}
	defer f.Close()
	snapshot := make(map[string]*tensor.Dense)
	if err := gob.NewDecoder(f).Decode(&snapshot); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't decode checkpoint file '%s'", fname))
	}
	for _, node := range learnables {
		dense, ok := snapshot[node.Name()]
		if !ok {
			return fmt.Errorf("Checkpoint file '%s' has no entry for learnable node '%s'", fname, node.Name())
		}
		if !dense.Shape().Eq(node.Shape()) {
			return fmt.Errorf("Checkpoint entry '%s' has shape %v, but node expects %v", node.Name(), dense.Shape(), node.Shape())
		}
		if err := gorgonia.Let(node, dense); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't assign checkpoint entry '%s' to node", node.Name()))
		}
	}
	return nil
}
