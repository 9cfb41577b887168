package main

import (
	"flag"
	"fmt"
	"math/rand"

	colorgan "github.com/LdDl/colorgan-go"
	"gorgonia.org/tensor"
)

var (
	imgHeight    = 32
	imgWidth     = 32
	numSamples   = 5000
	numOfEpochs  = 100
	batchSize    = 32
	baseChannels = 64
	dropoutRate  = 0.25
	evalBatches  = 8
	classes      = 10
)

func main() {
	lumaPath := flag.String("luma", "./data/luma.npy", "Path to luminance channels array file")
	chromaPath := flag.String("chroma", "./data/chroma.npy", "Path to chrominance channels array file")
	classifierPath := flag.String("classifier", "", "Path to pretrained classifier weights for evaluation metrics (optional)")
	outputFolder := flag.String("out", "./output", "Folder for checkpoints, panels and loss charts")
	flag.Parse()

	// Initialize seed with constant value to reproduce results
	rand.Seed(1337)

	trainSet, err := colorgan.LoadColorSet(*lumaPath, *chromaPath, imgHeight, imgWidth, numSamples)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Loaded %d samples of %dx%d\n", trainSet.NumSamples, trainSet.Height, trainSet.Width)

	cfg := colorgan.DefaultTrainConfig()
	cfg.Epochs = numOfEpochs
	cfg.BatchSize = batchSize
	cfg.BaseChannels = baseChannels
	cfg.DropoutRate = dropoutRate
	cfg.CheckpointDir = fmt.Sprintf("%s/checkpoints", *outputFolder)
	cfg.PanelDir = fmt.Sprintf("%s/panels", *outputFolder)

	trainer, err := colorgan.NewTrainer(cfg, trainSet)
	if err != nil {
		panic(err)
	}
	defer trainer.Close()

	if err := trainer.Run(); err != nil {
		panic(err)
	}

	// Plot recorded losses
	err = colorgan.PlotLoss(trainer.CriticHistory.Values, fmt.Sprintf("%s/critic_loss.png", *outputFolder))
	if err != nil {
		panic(err)
	}
	err = colorgan.PlotLoss(trainer.GeneratorHistory.Values, fmt.Sprintf("%s/generator_loss.png", *outputFolder))
	if err != nil {
		panic(err)
	}

	if *classifierPath == "" {
		fmt.Println("No classifier weights provided, skipping evaluation metrics")
		return
	}

	/* Evaluation metrics: Inception Score for real and generated sets + Fréchet-style distance */
	classifier, err := colorgan.NewClassifier(batchSize, imgHeight, imgWidth, classes)
	if err != nil {
		panic(err)
	}
	defer classifier.Close()
	if err := colorgan.LoadWeights(*classifierPath, classifier.Learnables()); err != nil {
		panic(err)
	}

	var realProbs, genProbs *tensor.Dense
	for b := 0; b < evalBatches; b++ {
		start := b * batchSize
		end := start + batchSize
		if end > trainSet.NumSamples {
			break
		}
		luma, chroma, err := trainSet.Batch(start, end)
		if err != nil {
			panic(err)
		}
		fakeChroma, err := trainer.Generate(luma)
		if err != nil {
			panic(err)
		}
		realRGB, err := mergeBatch(luma, chroma)
		if err != nil {
			panic(err)
		}
		genRGB, err := mergeBatch(luma, fakeChroma)
		if err != nil {
			panic(err)
		}
		realBatchProbs, err := classifier.Predict(realRGB)
		if err != nil {
			panic(err)
		}
		genBatchProbs, err := classifier.Predict(genRGB)
		if err != nil {
			panic(err)
		}
		if realProbs == nil {
			realProbs = realBatchProbs
			genProbs = genBatchProbs
			continue
		}
		stackedReal, err := realProbs.Vstack(realBatchProbs)
		if err != nil {
			panic(err)
		}
		realProbs = stackedReal
		stackedGen, err := genProbs.Vstack(genBatchProbs)
		if err != nil {
			panic(err)
		}
		genProbs = stackedGen
	}

	realMean, realStd, err := colorgan.InceptionScore(realProbs)
	if err != nil {
		panic(err)
	}
	genMean, genStd, err := colorgan.InceptionScore(genProbs)
	if err != nil {
		panic(err)
	}
	distance, err := colorgan.FrechetDistance(realProbs, genProbs)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Inception Score [real]: mean = %.4f, std = %.4f\n", realMean, realStd)
	fmt.Printf("Inception Score [generated]: mean = %.4f, std = %.4f\n", genMean, genStd)
	fmt.Printf("Fréchet-style distance: %.4f\n", distance)
}

// mergeBatch Reassemble (b, 3, h, w) RGB batch from luminance and chrominance batches
func mergeBatch(luma, chroma *tensor.Dense) (*tensor.Dense, error) {
	lumaData := luma.Data().([]float64)
	chromaData := chroma.Data().([]float64)
	b := luma.Shape()[0]
	planeSize := imgHeight * imgWidth
	merged := make([]float64, b*3*planeSize)
	for i := 0; i < b; i++ {
		rgb, err := colorgan.MergeChannels(lumaData[i*planeSize:(i+1)*planeSize], chromaData[i*2*planeSize:(i+1)*2*planeSize])
		if err != nil {
			return nil, err
		}
		copy(merged[i*3*planeSize:(i+1)*3*planeSize], rgb)
	}
	return tensor.New(tensor.WithShape(b, 3, imgHeight, imgWidth), tensor.WithBacking(merged)), nil
}
