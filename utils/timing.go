package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for one training run.
type TimingStats struct {
	TotalTime        time.Duration
	DataLoadingTime  time.Duration
	ModelInitTime    time.Duration
	ForwardPassTime  time.Duration
	BackwardPassTime time.Duration
	UpdateTime       time.Duration
	ValidationTime   time.Duration
	CallbackTime     time.Duration

	Epochs  int
	Steps   int // optimizer updates
	Samples int // forward+backward passes
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats) {
	if !Verbose || stats == nil {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total training time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Epochs completed: %d\n", stats.Epochs)
	fmt.Fprintf(Output, "Optimizer steps: %d\n", stats.Steps)
	if stats.Epochs > 0 {
		fmt.Fprintf(Output, "Average time per epoch: %v\n", stats.TotalTime/time.Duration(stats.Epochs))
	}
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	fmt.Fprintf(Output, "  Data loading: %v (%.1f%%)\n", stats.DataLoadingTime, percent(stats.DataLoadingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Model initialization: %v (%.1f%%)\n", stats.ModelInitTime, percent(stats.ModelInitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Forward pass: %v (%.1f%%)\n", stats.ForwardPassTime, percent(stats.ForwardPassTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Backward pass: %v (%.1f%%)\n", stats.BackwardPassTime, percent(stats.BackwardPassTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Weight updates: %v (%.1f%%)\n", stats.UpdateTime, percent(stats.UpdateTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Validation: %v (%.1f%%)\n", stats.ValidationTime, percent(stats.ValidationTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Epoch callbacks: %v (%.1f%%)\n", stats.CallbackTime, percent(stats.CallbackTime, stats.TotalTime))
	if stats.Samples > 0 {
		fmt.Fprintln(Output, "\nPerformance metrics:")
		fmt.Fprintf(Output, "  Average forward pass time: %v\n", stats.ForwardPassTime/time.Duration(stats.Samples))
		fmt.Fprintf(Output, "  Average backward pass time: %v\n", stats.BackwardPassTime/time.Duration(stats.Samples))
		fmt.Fprintf(Output, "  Training time per sample: %.2f µs\n", DurationUS(stats.TotalTime)/float64(stats.Samples))
	}
	if stats.Steps > 0 {
		fmt.Fprintf(Output, "  Average update time: %v\n", stats.UpdateTime/time.Duration(stats.Steps))
	}
}

func percent(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// DurationUS converts a duration to fractional microseconds.
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
