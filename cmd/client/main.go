// tabnet-client: drives a tabnet-server over stdin/stdout
//
// Trains a model on a CSV table remotely, streams epoch progress to stderr and
// saves the resulting snapshot locally.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/rand"

	"tabnet/bridge"
	"tabnet/dataset"
	"tabnet/nn"
	"tabnet/train"
	"tabnet/utils"
)

var (
	dataFile     = flag.String("data", "", "Training CSV file (features, then targets)")
	archStr      = flag.String("arch", "", `Architecture, e.g. "4 8:relu 1:sigmoid"`)
	loss         = flag.String("loss", "binaryCrossentropy", "Loss function")
	header       = flag.Bool("header", false, "Skip the first CSV row")
	epochs       = flag.Int("epochs", 20, "Training epochs")
	batchSize    = flag.Int("batch", 32, "Mini-batch size")
	learningRate = flag.Float64("lr", 0.001, "Learning rate")
	valSplit     = flag.Float64("val", 0.2, "Validation fraction")
	seed         = flag.Uint64("seed", 42, "Random seed")
	outputFile   = flag.String("output", "", "Save the trained model here (.json or .pb)")
	verbose      = flag.Bool("verbose", false, "Verbose output")
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
	specs, err := utils.ParseArchitecture(*archStr)
	if err != nil {
		return err
	}
	cfg := nn.ConfigFromLayers(specs)
	cfg.TrainingConfig.Loss = *loss

	f, err := os.Open(*dataFile)
	if err != nil {
		return err
	}
	lines, err := dataset.GetLines(f, specs[0].Units, specs[len(specs)-1].Units, *header)
	f.Close()
	if err != nil {
		return err
	}
	trainLines, valLines := lines.Split(*valSplit, rand.NewSource(*seed))

	client := bridge.NewClient(os.Stdin, os.Stdout)
	closed := false
	defer func() {
		// The first error has already been returned; this only ends the session.
		if !closed {
			_ = client.Close()
		}
	}()
	log("Starting training (%d rows)...", len(lines))
	start := time.Now()
	hist, err := client.Train(bridge.TrainRequest{
		Model:        cfg,
		Seed:         *seed,
		Features:     trainLines.Features(),
		Labels:       trainLines.Targets(),
		ValFeatures:  valLines.Features(),
		ValLabels:    valLines.Targets(),
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *learningRate,
	}, func(rec train.EpochRecord) {
		log("Epoch %d/%d | Loss: %.6f | Acc: %.4f", rec.Epoch, *epochs, rec.Loss, rec.Accuracy)
	})
	if err != nil {
		return err
	}
	log("Training complete: %d epochs (%.2fs)", hist.Len(), time.Since(start).Seconds())

	if *outputFile != "" {
		saved, err := client.Save()
		if err != nil {
			return err
		}
		data, err := utils.EncodeModel(saved, utils.FormatFor(*outputFile))
		if err != nil {
			return err
		}
		if err := os.WriteFile(*outputFile, data, 0644); err != nil {
			return err
		}
		log("Model saved to %s", *outputFile)
	}
	closed = true
	return client.Close()
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[CLIENT] "+format+"\n", args...)
	}
}
