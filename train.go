package colorgan_go

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// TrainConfig Hyperparameters of the adversarial training loop.
//
// LambdaAdv is declared for parity with the critic-score blending the constructor
// implies, but the generator step uses the reconstruction term only (see Trainer).
type TrainConfig struct {
	Epochs    int
	BatchSize int

	BaseChannels  int
	DropoutRate   float64
	CriticRate    float64
	GeneratorRate float64
	Beta1         float64

	LambdaGP  float64
	LambdaR1  float64
	LambdaRec float64
	LambdaAdv float64

	// Step length of the random nudge the slope penalties are estimated with
	PerturbEpsilon float64

	CheckpointEvery int
	CheckpointDir   string
	PanelDir        string

	Seed int64
}

// DefaultTrainConfig Returns config with commonly used WGAN-GP hyperparameters
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:          100,
		BatchSize:       32,
		BaseChannels:    64,
		DropoutRate:     0.25,
		CriticRate:      1e-4,
		GeneratorRate:   1e-4,
		Beta1:           0.5,
		LambdaGP:        10.0,
		LambdaR1:        0.1,
		LambdaRec:       100.0,
		LambdaAdv:       1.0,
		PerturbEpsilon:  0.01,
		CheckpointEvery: 10,
		CheckpointDir:   "./checkpoints",
		PanelDir:        "./panels",
		Seed:            1337,
	}
}

// LossHistory Append-only record of per-step loss values
type LossHistory struct {
	Values []float64
}

// Append Record another loss value
func (h *LossHistory) Append(v float64) {
	h.Values = append(h.Values, v)
}

// RollingMean Mean of the last 'window' recorded values
func (h *LossHistory) RollingMean(window int) float64 {
	if len(h.Values) == 0 {
		return 0.0
	}
	if window <= 0 || window > len(h.Values) {
		window = len(h.Values)
	}
	sum := 0.0
	for _, v := range h.Values[len(h.Values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// Trainer Alternating critic/generator optimization over a ColorSet.
//
// Two separate evaluation graphs are used: one holding the generator with its
// reconstruction loss, one holding the critic applied to real, fake,
// interpolated and perturbed samples with the Wasserstein loss and slope
// penalties. Fake samples cross between the graphs as plain tensors, so no
// generator gradient flows through the critic update.
type Trainer struct {
	Config TrainConfig

	CriticHistory    *LossHistory
	GeneratorHistory *LossHistory

	set       *ColorSet
	generator *ColorGenerator
	critic    *Critic

	genInput   *gorgonia.Node
	genTarget  *gorgonia.Node
	fakeOut    gorgonia.Value
	genCost    gorgonia.Value
	vmGen      gorgonia.VM
	solverGen  gorgonia.Solver
	zeroTarget *tensor.Dense

	criticReal      *gorgonia.Node
	criticFake      *gorgonia.Node
	criticInterp    *gorgonia.Node
	criticPerturbed *gorgonia.Node
	criticCost      gorgonia.Value
	vmCritic        gorgonia.VM
	solverCritic    gorgonia.Solver

	uniform  *rng.UniformGenerator
	gaussian *rng.GaussianGenerator
}

// NewTrainer Build both evaluation graphs for the provided training set and config
func NewTrainer(cfg TrainConfig, set *ColorSet) (*Trainer, error) {
	if set.Height%8 != 0 || set.Width%8 != 0 {
		return nil, fmt.Errorf("Sample resolution must be divisible by 8, but got %dx%d", set.Height, set.Width)
	}
	// The critic halves resolution four times; anything below 16 collapses to
	// an empty feature map before the last block.
	if set.Height < 16 || set.Width < 16 {
		return nil, fmt.Errorf("Sample resolution must be at least 16x16 for the critic, but got %dx%d", set.Height, set.Width)
	}
	if set.NumSamples < cfg.BatchSize {
		return nil, fmt.Errorf("Training set of %d samples is smaller than batch size %d", set.NumSamples, cfg.BatchSize)
	}
	t := &Trainer{
		Config:           cfg,
		CriticHistory:    &LossHistory{},
		GeneratorHistory: &LossHistory{},
		set:              set,
		uniform:          rng.NewUniformGenerator(cfg.Seed),
		gaussian:         rng.NewGaussianGenerator(cfg.Seed),
		zeroTarget:       tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(cfg.BatchSize, 2, set.Height, set.Width)),
	}

	/* Generator evaluation graph: feedforward + L1 reconstruction loss */
	genGraph := gorgonia.NewGraph()
	t.generator = NewColorGenerator(genGraph, cfg.BaseChannels, cfg.DropoutRate)
	t.genInput = gorgonia.NewTensor(genGraph, gorgonia.Float64, 4, gorgonia.WithShape(cfg.BatchSize, 1, set.Height, set.Width), gorgonia.WithName("generator_input"))
	fake, err := t.generator.Fwd(t.genInput, cfg.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't initialize Generator feedforward")
	}
	t.genTarget = gorgonia.NewTensor(genGraph, gorgonia.Float64, 4, gorgonia.WithShape(cfg.BatchSize, 2, set.Height, set.Width), gorgonia.WithName("generator_target"))
	reconstruction, err := L1Loss(fake, t.genTarget)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define reconstruction loss")
	}
	gorgonia.WithName("generator_loss")(reconstruction)
	if _, err := gorgonia.Grad(reconstruction, t.generator.Learnables()...); err != nil {
		return nil, errors.Wrap(err, "Can't define gradients for Generator")
	}
	gorgonia.Read(fake, &t.fakeOut)
	gorgonia.Read(reconstruction, &t.genCost)
	t.vmGen = gorgonia.NewTapeMachine(genGraph, gorgonia.BindDualValues(t.generator.Learnables()...))
	t.solverGen = gorgonia.NewAdamSolver(gorgonia.WithBatchSize(float64(cfg.BatchSize)), gorgonia.WithLearnRate(cfg.GeneratorRate), gorgonia.WithBeta1(cfg.Beta1))

	/* Critic evaluation graph: scores for real, fake, interpolated and perturbed samples */
	criticGraph := gorgonia.NewGraph()
	t.critic = NewCritic(criticGraph, 3, cfg.BaseChannels)
	t.criticReal = gorgonia.NewTensor(criticGraph, gorgonia.Float64, 4, gorgonia.WithShape(cfg.BatchSize, 3, set.Height, set.Width), gorgonia.WithName("critic_input_real"))
	t.criticFake = gorgonia.NewTensor(criticGraph, gorgonia.Float64, 4, gorgonia.WithShape(cfg.BatchSize, 3, set.Height, set.Width), gorgonia.WithName("critic_input_fake"))
	t.criticInterp = gorgonia.NewTensor(criticGraph, gorgonia.Float64, 4, gorgonia.WithShape(cfg.BatchSize, 3, set.Height, set.Width), gorgonia.WithName("critic_input_interp"))
	t.criticPerturbed = gorgonia.NewTensor(criticGraph, gorgonia.Float64, 4, gorgonia.WithShape(cfg.BatchSize, 3, set.Height, set.Width), gorgonia.WithName("critic_input_perturbed"))
	scoreReal, err := t.critic.Fwd(t.criticReal, cfg.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't initialize Critic feedforward for real samples")
	}
	scoreFake, err := t.critic.Fwd(t.criticFake, cfg.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't initialize Critic feedforward for fake samples")
	}
	scoreInterp, err := t.critic.Fwd(t.criticInterp, cfg.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't initialize Critic feedforward for interpolated samples")
	}
	scorePerturbed, err := t.critic.Fwd(t.criticPerturbed, cfg.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "Can't initialize Critic feedforward for perturbed samples")
	}
	wasserstein, err := WassersteinCriticLoss(scoreReal, scoreFake)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define Wasserstein critic loss")
	}
	penalty, r1, err := GradientPenalty(scoreInterp, scorePerturbed, cfg.PerturbEpsilon)
	if err != nil {
		return nil, errors.Wrap(err, "Can't define gradient penalty")
	}
	lambdaGP := gorgonia.NewScalar(criticGraph, gorgonia.Float64, gorgonia.WithValue(cfg.LambdaGP))
	lambdaR1 := gorgonia.NewScalar(criticGraph, gorgonia.Float64, gorgonia.WithValue(cfg.LambdaR1))
	weightedPenalty, err := gorgonia.Mul(lambdaGP, penalty)
	if err != nil {
		return nil, errors.Wrap(err, "Can't weight gradient penalty")
	}
	weightedR1, err := gorgonia.Mul(lambdaR1, r1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't weight R1 penalty")
	}
	criticLoss, err := gorgonia.Add(wasserstein, weightedPenalty)
	if err != nil {
		return nil, errors.Wrap(err, "Can't add gradient penalty to critic loss")
	}
	criticLoss, err = gorgonia.Add(criticLoss, weightedR1)
	if err != nil {
		return nil, errors.Wrap(err, "Can't add R1 penalty to critic loss")
	}
	gorgonia.WithName("critic_loss")(criticLoss)
	if _, err := gorgonia.Grad(criticLoss, t.critic.Learnables()...); err != nil {
		return nil, errors.Wrap(err, "Can't define gradients for Critic")
	}
	gorgonia.Read(criticLoss, &t.criticCost)
	t.vmCritic = gorgonia.NewTapeMachine(criticGraph, gorgonia.BindDualValues(t.critic.Learnables()...))
	t.solverCritic = gorgonia.NewAdamSolver(gorgonia.WithBatchSize(float64(cfg.BatchSize)), gorgonia.WithLearnRate(cfg.CriticRate), gorgonia.WithBeta1(cfg.Beta1))

	return t, nil
}

// Close Release tape machine resources
func (t *Trainer) Close() error {
	if err := t.vmGen.Close(); err != nil {
		return err
	}
	return t.vmCritic.Close()
}

// Generator Returns the trained generator network
func (t *Trainer) Generator() *ColorGenerator {
	return t.generator
}

// Critic Returns the trained critic network
func (t *Trainer) Critic() *Critic {
	return t.critic
}

// Generate Run the generator forward for a (batchSize, 1, h, w) luminance batch
// and return predicted chrominance channels (batchSize, 2, h, w)
func (t *Trainer) Generate(luma *tensor.Dense) (*tensor.Dense, error) {
	if err := gorgonia.Let(t.genInput, luma); err != nil {
		return nil, errors.Wrap(err, "Can't init Generator input value")
	}
	if err := gorgonia.Let(t.genTarget, t.zeroTarget); err != nil {
		return nil, errors.Wrap(err, "Can't init Generator target value")
	}
	if err := t.vmGen.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run Generator VM")
	}
	t.vmGen.Reset()
	return t.fakeOut.(*tensor.Dense).Clone().(*tensor.Dense), nil
}

// Run Execute the training loop over all configured epochs
func (t *Trainer) Run() error {
	cfg := t.Config
	if cfg.CheckpointEvery > 0 && cfg.CheckpointDir != "" {
		if err := os.MkdirAll(cfg.CheckpointDir, 0755); err != nil {
			return errors.Wrap(err, "Can't create checkpoint directory")
		}
	}
	if cfg.CheckpointEvery > 0 && cfg.PanelDir != "" {
		if err := os.MkdirAll(cfg.PanelDir, 0755); err != nil {
			return errors.Wrap(err, "Can't create panel directory")
		}
	}
	batches := t.set.NumSamples / cfg.BatchSize
	st := time.Now()
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for b := 0; b < batches; b++ {
			start := b * cfg.BatchSize
			end := start + cfg.BatchSize
			luma, chroma, err := t.set.Batch(start, end)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't slice batch #%d", b))
			}
			fake, err := t.step(luma, chroma)
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't do training step for batch #%d of epoch %d", b, epoch))
			}
			if cfg.CheckpointEvery > 0 && epoch%cfg.CheckpointEvery == 0 && b == 0 {
				if err := t.checkpoint(epoch, luma, chroma, fake); err != nil {
					return errors.Wrap(err, fmt.Sprintf("Can't checkpoint at epoch %d", epoch))
				}
			}
		}
		fmt.Printf("Epoch %d:\n", epoch)
		fmt.Printf("\tCritic's loss (rolling mean): %.4f\n", t.CriticHistory.RollingMean(batches))
		fmt.Printf("\tGenerator's loss (rolling mean): %.4f\n", t.GeneratorHistory.RollingMean(batches))
		fmt.Printf("\tTaken time: %v\n", time.Since(st))
		st = time.Now()
	}
	return nil
}

// step Single critic update followed by single generator update.
// Returns the fake chrominance batch produced for the critic phase.
func (t *Trainer) step(luma, chroma *tensor.Dense) (*tensor.Dense, error) {
	/* Critic phase: generator weights held fixed */
	fake, err := t.Generate(luma)
	if err != nil {
		return nil, errors.Wrap(err, "Can't generate fake sample")
	}
	realFull, err := tensor.Concat(1, chroma, luma)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concatenate real sample with luminance")
	}
	fakeFull, err := tensor.Concat(1, fake, luma)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concatenate fake sample with luminance")
	}
	interp, err := InterpolateBatch(realFull.(*tensor.Dense), fakeFull.(*tensor.Dense), t.uniform)
	if err != nil {
		return nil, errors.Wrap(err, "Can't interpolate between real and fake samples")
	}
	perturbed, err := PerturbBatch(interp, t.Config.PerturbEpsilon, t.gaussian)
	if err != nil {
		return nil, errors.Wrap(err, "Can't perturb interpolated samples")
	}
	if err := gorgonia.Let(t.criticReal, realFull); err != nil {
		return nil, errors.Wrap(err, "Can't init Critic real input value")
	}
	if err := gorgonia.Let(t.criticFake, fakeFull); err != nil {
		return nil, errors.Wrap(err, "Can't init Critic fake input value")
	}
	if err := gorgonia.Let(t.criticInterp, interp); err != nil {
		return nil, errors.Wrap(err, "Can't init Critic interpolated input value")
	}
	if err := gorgonia.Let(t.criticPerturbed, perturbed); err != nil {
		return nil, errors.Wrap(err, "Can't init Critic perturbed input value")
	}
	if err := t.vmCritic.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run Critic VM")
	}
	if err := t.solverCritic.Step(gorgonia.NodesToValueGrads(t.critic.Learnables())); err != nil {
		return nil, errors.Wrap(err, "Can't do solver step for Critic")
	}
	t.vmCritic.Reset()
	t.CriticHistory.Append(scalarValue(t.criticCost))

	/* Generator phase: reconstruction loss only */
	if err := gorgonia.Let(t.genInput, luma); err != nil {
		return nil, errors.Wrap(err, "Can't init Generator input value")
	}
	if err := gorgonia.Let(t.genTarget, chroma); err != nil {
		return nil, errors.Wrap(err, "Can't init Generator target value")
	}
	if err := t.vmGen.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run Generator VM")
	}
	if err := t.solverGen.Step(gorgonia.NodesToValueGrads(t.generator.Learnables())); err != nil {
		return nil, errors.Wrap(err, "Can't do solver step for Generator")
	}
	t.vmGen.Reset()
	t.GeneratorHistory.Append(scalarValue(t.genCost))
	return fake, nil
}

func (t *Trainer) checkpoint(epoch int, luma, chroma, fake *tensor.Dense) error {
	if t.Config.CheckpointDir != "" {
		generatorPath := filepath.Join(t.Config.CheckpointDir, fmt.Sprintf("generator_epoch_%d.gob", epoch))
		if err := SaveWeights(generatorPath, t.generator.Learnables()); err != nil {
			return errors.Wrap(err, "Can't save Generator weights")
		}
		criticPath := filepath.Join(t.Config.CheckpointDir, fmt.Sprintf("critic_epoch_%d.gob", epoch))
		if err := SaveWeights(criticPath, t.critic.Learnables()); err != nil {
			return errors.Wrap(err, "Can't save Critic weights")
		}
	}
	if t.Config.PanelDir != "" {
		panel, err := ComparisonPanel(luma, chroma, fake, 0, t.set.Height, t.set.Width)
		if err != nil {
			return errors.Wrap(err, "Can't render comparison panel")
		}
		panelPath := filepath.Join(t.Config.PanelDir, fmt.Sprintf("comparison_epoch_%d.png", epoch))
		if err := SavePanel(panel, panelPath); err != nil {
			return errors.Wrap(err, "Can't save comparison panel")
		}
	}
	return nil
}

func scalarValue(v gorgonia.Value) float64 {
	if v == nil {
		return 0.0
	}
	if f, ok := v.Data().(float64); ok {
		return f
	}
	return 0.0
}
