// tabnet-infer: runs a saved model over CSV or JSON input
//
// Usage:
//
//	tabnet-infer --model=iris.json --input=samples.csv --header
//	tabnet-infer --model=bcw.pb --input=sample.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"tabnet/dataset"
	"tabnet/nn"
	"tabnet/utils"
)

var (
	modelFile = flag.String("model", "", "Saved model file (.json or .pb)")
	inputFile = flag.String("input", "", "Input file: CSV of feature rows, or JSON sample / array of samples")
	statsFile = flag.String("stats", "", "Feature statistics written by tabnet-train -normalize")
	header    = flag.Bool("header", false, "Skip the first CSV row")
	verbose   = flag.Bool("verbose", false, "Verbose output")
	topK      = flag.Int("topk", 3, "Top predictions to show for multi-class outputs")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *modelFile == "" || *inputFile == "" {
		return fmt.Errorf("both -model and -input are required")
	}
	net, err := utils.LoadModel(*modelFile)
	if err != nil {
		return err
	}
	log("loaded %s: %d -> %d units", *modelFile, net.InputUnits(), net.OutputUnits())

	samples, err := readSamples(net.InputUnits())
	if err != nil {
		return err
	}
	if *statsFile != "" {
		samples, err = applyStats(samples)
		if err != nil {
			return err
		}
	}

	preds, err := net.PredictBatch(samples)
	if err != nil {
		return err
	}
	for i, p := range preds {
		fmt.Printf("%d: %s\n", i, describe(p))
	}
	return nil
}

func readSamples(inputUnits int) ([][]float64, error) {
	if strings.EqualFold(filepath.Ext(*inputFile), ".json") {
		data, err := os.ReadFile(*inputFile)
		if err != nil {
			return nil, err
		}
		samples, batch, err := nn.DecodeSamples(data)
		if err != nil {
			return nil, err
		}
		log("decoded %d sample(s), batch=%v", len(samples), batch)
		return samples, nil
	}
	f, err := os.Open(*inputFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lines, err := dataset.GetInputs(f, inputUnits, *header)
	if err != nil {
		return nil, err
	}
	return lines.Features(), nil
}

func applyStats(samples [][]float64) ([][]float64, error) {
	data, err := os.ReadFile(*statsFile)
	if err != nil {
		return nil, err
	}
	var s dataset.Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}
	lines := make(dataset.Lines, len(samples))
	for i, x := range samples {
		if len(x) != len(s.Mean) {
			return nil, fmt.Errorf("%w: sample %d has %d features, stats cover %d",
				nn.ErrShapeMismatch, i, len(x), len(s.Mean))
		}
		lines[i] = dataset.Line{Inputs: x}
	}
	return s.Normalize(lines).Features(), nil
}

// describe formats one prediction: the raw value for single outputs, the
// top-k classes otherwise.
func describe(p []float64) string {
	if len(p) == 1 {
		return fmt.Sprintf("%.6f", p[0])
	}
	vals := append([]float64(nil), p...)
	idx := make([]int, len(vals))
	floats.Argsort(vals, idx)

	k := min(*topK, len(idx))
	parts := make([]string, 0, k)
	for i := 0; i < k; i++ {
		j := len(idx) - 1 - i
		parts = append(parts, fmt.Sprintf("class %d (%.4f)", idx[j], vals[j]))
	}
	return strings.Join(parts, ", ")
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[INFER] "+format+"\n", args...)
	}
}
