// tabnet-train: trains a dense network on a CSV table and saves the model
//
// Usage:
//
//	tabnet-train --data=iris.csv --arch="4 16:relu 3:softmax" --loss=categoricalCrossentropy --classes=3 --output=iris.json
//	tabnet-train --data=bcw.csv --config=model.json --epochs=50 --early --output=bcw.pb
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/exp/rand"

	"tabnet/dataset"
	"tabnet/nn"
	"tabnet/train"
	"tabnet/utils"
)

var (
	dataFile     = flag.String("data", "", "Training CSV file (features, then targets)")
	configFile   = flag.String("config", "", "Model descriptor JSON file")
	archStr      = flag.String("arch", "", `Architecture, e.g. "4 8:relu 1:sigmoid" (used when -config is empty)`)
	loss         = flag.String("loss", "", "Loss: binaryCrossentropy, categoricalCrossentropy, meanSquaredError")
	classes      = flag.Int("classes", 0, "Treat the last column as a class index with this many classes")
	header       = flag.Bool("header", false, "Skip the first CSV row")
	epochs       = flag.Int("epochs", 100, "Number of training epochs")
	batchSize    = flag.Int("batch", 32, "Mini-batch size")
	learningRate = flag.Float64("lr", 0.001, "Learning rate")
	valSplit     = flag.Float64("val", 0.2, "Fraction of rows held out for validation")
	early        = flag.Bool("early", false, "Enable early stopping")
	patience     = flag.Int("patience", 10, "Early stopping patience")
	exact        = flag.Bool("exact", false, "Use exact elu/selu/swish derivatives")
	strict       = flag.Bool("strict", false, "Fail on non-finite losses")
	normalize    = flag.Bool("normalize", false, "Standardize features; statistics go to <output>.stats.json")
	delay        = flag.Duration("delay", 0, "Pause between epochs")
	seed         = flag.Uint64("seed", 0, "Random seed (0 = time based)")
	outputFile   = flag.String("output", "model.json", "Output model file (.json or .pb)")
	verbose      = flag.Bool("verbose", true, "Verbose output")
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
	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	stats := &utils.TimingStats{}

	initStart := time.Now()
	modelCfg, err := modelConfig()
	if err != nil {
		return err
	}
	if *loss != "" {
		modelCfg.TrainingConfig.Loss = *loss
	}
	specs := modelCfg.Architecture.Layers()
	runCfg := utils.RunConfig{
		Architecture: specs,
		DataPath:     *dataFile,
		ModelPath:    *outputFile,
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *learningRate,
		ValSplit:     *valSplit,
		Loss:         modelCfg.TrainingConfig.Loss,
	}
	if err := utils.ValidateConfig(&runCfg); err != nil {
		return err
	}
	net, err := nn.New(modelCfg, nn.WithSeed(*seed))
	if err != nil {
		return err
	}
	stats.ModelInitTime = time.Since(initStart)

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       tabnet Trainer                         ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Architecture:  %s\n", utils.FormatArchitecture(specs))
	fmt.Printf("  Loss:          %s\n", train.ParseLoss(runCfg.Loss))
	fmt.Printf("  Epochs:        %d\n", runCfg.Epochs)
	fmt.Printf("  Batch size:    %d\n", runCfg.BatchSize)
	fmt.Printf("  Learning Rate: %g\n", runCfg.LearningRate)
	fmt.Printf("  Seed:          %d\n", *seed)
	fmt.Println()

	loadStart := time.Now()
	lines, err := readData(net)
	if err != nil {
		return err
	}
	trainLines, valLines := lines.Split(runCfg.ValSplit, rand.NewSource(*seed))
	if *normalize {
		featStats := dataset.CalculateStats(trainLines)
		trainLines = featStats.Normalize(trainLines)
		valLines = featStats.Normalize(valLines)
		if err := writeJSON(statsPath(runCfg.ModelPath), featStats); err != nil {
			return err
		}
	}
	stats.DataLoadingTime = time.Since(loadStart)
	fmt.Printf("Loaded %d rows (%d train, %d validation)\n", len(lines), len(trainLines), len(valLines))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := train.Config{
		Epochs:           runCfg.Epochs,
		BatchSize:        runCfg.BatchSize,
		LearningRate:     runCfg.LearningRate,
		EarlyStopping:    *early,
		Patience:         *patience,
		Loss:             runCfg.Loss,
		EpochDelay:       *delay,
		StrictNumerics:   *strict,
		ExactDerivatives: *exact,
		Seed:             *seed,
		Stats:            stats,
		OnEpochEnd: func(_ context.Context, rec train.EpochRecord) error {
			printEpoch(rec, runCfg.Epochs)
			return nil
		},
	}
	if *verbose {
		cfg.Logger = stdlog.New(os.Stderr, "[TRAIN] ", stdlog.Ltime)
	}

	fmt.Println("\nStarting training...")
	trainStart := time.Now()
	hist, err := train.Fit(ctx, net, cfg, trainLines.Features(), trainLines.Targets(), valLines.Features(), valLines.Targets())
	switch {
	case errors.Is(err, context.Canceled):
		log("interrupted after %d epochs, saving partial model", hist.Len())
	case err != nil:
		return err
	}
	fmt.Printf("\nTraining complete! %d epochs in %.2fs", hist.Len(), time.Since(trainStart).Seconds())
	if hist.StoppedEarly {
		fmt.Print(" (early stop)")
	}
	fmt.Println()

	utils.PrintTimingStats(stats)

	fmt.Printf("\nSaving model to %s...\n", runCfg.ModelPath)
	if err := utils.SaveModel(runCfg.ModelPath, net); err != nil {
		return fmt.Errorf("saving model: %w", err)
	}
	fmt.Println("Done!")
	return nil
}

func modelConfig() (nn.ModelConfig, error) {
	if *configFile != "" {
		return utils.LoadModelConfig(*configFile)
	}
	if *archStr == "" {
		return nn.ModelConfig{}, fmt.Errorf("%w: one of -config or -arch is required", nn.ErrInvalidConfig)
	}
	specs, err := utils.ParseArchitecture(*archStr)
	if err != nil {
		return nn.ModelConfig{}, err
	}
	return nn.ConfigFromLayers(specs), nil
}

func readData(net *nn.Network) (dataset.Lines, error) {
	f, err := os.Open(*dataFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if *classes > 0 {
		if *classes != net.OutputUnits() {
			return nil, fmt.Errorf("%w: %d classes but %d output units", nn.ErrInvalidConfig, *classes, net.OutputUnits())
		}
		return dataset.GetClassLines(f, net.InputUnits(), *classes, *header)
	}
	return dataset.GetLines(f, net.InputUnits(), net.OutputUnits(), *header)
}

func printEpoch(rec train.EpochRecord, total int) {
	line := fmt.Sprintf("Epoch %d/%d | Loss: %.6f | Acc: %.4f", rec.Epoch, total, rec.Loss, rec.Accuracy)
	if rec.ValLoss != nil {
		line += fmt.Sprintf(" | Val Loss: %.6f | Val Acc: %.4f", *rec.ValLoss, *rec.ValAccuracy)
	}
	if rec.Anomalies > 0 {
		line += fmt.Sprintf(" | Skipped: %d", rec.Anomalies)
	}
	fmt.Println(line)
}

func statsPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".stats.json"
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[TRAIN] "+format+"\n", args...)
	}
}
