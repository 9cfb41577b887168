package main

import (
	"flag"
	"fmt"
	"os"

	colorgan "github.com/LdDl/colorgan-go"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	imgHeight = 32
	imgWidth  = 32
)

func main() {
	lumaPath := flag.String("luma", "./data/luma.npy", "Path to luminance channels array file")
	weightsPath := flag.String("weights", "./output/checkpoints/generator_epoch_90.gob", "Path to generator weights")
	outputFolder := flag.String("out", "./colorized", "Folder for colorized PNG images")
	baseChannels := flag.Int("channels", 64, "Base channel count the checkpointed generator was built with")
	limit := flag.Int("n", 16, "How many samples to colorize")
	flag.Parse()

	lumaData, _, err := colorgan.ReadArrayFile(*lumaPath)
	if err != nil {
		panic(err)
	}
	planeSize := imgHeight * imgWidth
	numSamples := len(lumaData) / planeSize
	if numSamples == 0 {
		panic(fmt.Errorf("array file '%s' holds no %dx%d samples", *lumaPath, imgHeight, imgWidth))
	}
	if *limit > 0 && *limit < numSamples {
		numSamples = *limit
	}
	lumaBatch := tensor.New(tensor.WithShape(numSamples, 1, imgHeight, imgWidth), tensor.WithBacking(lumaData[:numSamples*planeSize]))

	/* Build generator in evaluation mode (no dropout) and restore checkpointed weights */
	g := gorgonia.NewGraph()
	generator := colorgan.NewColorGenerator(g, *baseChannels, 0.0)
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4, gorgonia.WithShape(numSamples, 1, imgHeight, imgWidth), gorgonia.WithName("generator_input"))
	out, err := generator.Fwd(input, numSamples)
	if err != nil {
		panic(err)
	}
	var chromaOut gorgonia.Value
	gorgonia.Read(out, &chromaOut)
	if err := colorgan.LoadWeights(*weightsPath, generator.Learnables()); err != nil {
		panic(err)
	}
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	if err := gorgonia.Let(input, lumaBatch); err != nil {
		panic(err)
	}
	if err := vm.RunAll(); err != nil {
		panic(err)
	}
	vm.Reset()

	if err := os.MkdirAll(*outputFolder, 0755); err != nil {
		panic(err)
	}
	chromaData := chromaOut.(*tensor.Dense).Data().([]float64)
	for i := 0; i < numSamples; i++ {
		rgb, err := colorgan.MergeChannels(lumaData[i*planeSize:(i+1)*planeSize], chromaData[i*2*planeSize:(i+1)*2*planeSize])
		if err != nil {
			panic(err)
		}
		img, err := colorgan.RenderRGB(rgb, imgHeight, imgWidth)
		if err != nil {
			panic(err)
		}
		if err := colorgan.SavePanel(img, fmt.Sprintf("%s/colorized_%d.png", *outputFolder, i)); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Colorized %d samples into %s\n", numSamples, *outputFolder)
}
