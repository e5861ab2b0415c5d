// Package dataset loads tabular CSV data into feature/target rows for the
// trainer and the command-line tools.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

// Line is one sample: its feature vector and its target vector.
type Line struct {
	Inputs  []float64
	Targets []float64
}

// Lines is a table of samples.
type Lines []Line

// GetLines reads CSV rows of inputNum features followed by outputNum targets.
// With skipHeader the first row is discarded.
func GetLines(reader io.Reader, inputNum, outputNum int, skipHeader bool) (Lines, error) {
	return readLines(reader, inputNum, outputNum, outputNum, skipHeader, func(fields []string, line *Line) error {
		for i, f := range fields {
			num, err := parseField(f)
			if err != nil {
				return fmt.Errorf("parsing target: %w", err)
			}
			line.Targets[i] = num
		}
		return nil
	})
}

// GetInputs reads CSV rows holding only inputNum features. The targets of
// the returned lines are empty.
func GetInputs(reader io.Reader, inputNum int, skipHeader bool) (Lines, error) {
	return readLines(reader, inputNum, 0, 0, skipHeader, func([]string, *Line) error { return nil })
}

// GetClassLines reads CSV rows of inputNum features followed by a single
// integer class index in [0, classes), one-hot encoding the target.
func GetClassLines(reader io.Reader, inputNum, classes int, skipHeader bool) (Lines, error) {
	return readLines(reader, inputNum, 1, classes, skipHeader, func(fields []string, line *Line) error {
		idx, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return fmt.Errorf("parsing class: %w", err)
		}
		onehot, err := OneHot(idx, classes)
		if err != nil {
			return err
		}
		line.Targets = onehot
		return nil
	})
}

func readLines(reader io.Reader, inputNum, targetCols, outputNum int, skipHeader bool, targets func([]string, *Line) error) (Lines, error) {
	if inputNum <= 0 || outputNum < 0 || (outputNum == 0) != (targetCols == 0) {
		return nil, fmt.Errorf("invalid column counts: %d inputs, %d outputs", inputNum, outputNum)
	}
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var lines Lines
	var lineNum int
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return lines, fmt.Errorf("reading csv: %w", err)
		}
		lineNum++
		if skipHeader && lineNum == 1 {
			continue
		}

		if len(record) != inputNum+targetCols {
			return lines, errInvalidLine{lineNum: lineNum, splits: len(record), expected: inputNum + targetCols}
		}
		line := Line{
			Inputs:  make([]float64, inputNum),
			Targets: make([]float64, outputNum),
		}
		for i := 0; i < inputNum; i++ {
			num, err := parseField(record[i])
			if err != nil {
				return lines, fmt.Errorf("line %d: parsing input: %w", lineNum, err)
			}
			line.Inputs[i] = num
		}
		if err := targets(record[inputNum:], &line); err != nil {
			return lines, fmt.Errorf("line %d: %w", lineNum, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseField(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

type errInvalidLine struct {
	lineNum  int
	splits   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.splits)
}

// OneHot encodes class idx as a vector of length classes.
func OneHot(idx, classes int) ([]float64, error) {
	if idx < 0 || idx >= classes {
		return nil, fmt.Errorf("class %d out of range [0, %d)", idx, classes)
	}
	v := make([]float64, classes)
	v[idx] = 1
	return v, nil
}

// Features returns the input vectors.
func (ls Lines) Features() [][]float64 {
	out := make([][]float64, len(ls))
	for i, l := range ls {
		out[i] = l.Inputs
	}
	return out
}

// Targets returns the target vectors.
func (ls Lines) Targets() [][]float64 {
	out := make([][]float64, len(ls))
	for i, l := range ls {
		out[i] = l.Targets
	}
	return out
}

// Split shuffles a copy of the lines with src and holds out valFraction of
// them for validation.
func (ls Lines) Split(valFraction float64, src rand.Source) (train, val Lines) {
	shuffled := append(Lines(nil), ls...)
	rng := rand.New(src)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	nVal := int(math.Round(float64(len(shuffled)) * valFraction))
	if valFraction > 0 && nVal == 0 && len(shuffled) > 1 {
		nVal = 1
	}
	if nVal >= len(shuffled) {
		nVal = len(shuffled) - 1
	}
	if nVal <= 0 {
		return shuffled, nil
	}
	return shuffled[nVal:], shuffled[:nVal]
}

// Stats holds per-column feature statistics for standardization.
type Stats struct {
	Mean   []float64 `json:"mean"`
	StdDev []float64 `json:"stdDev"`
}

// CalculateStats computes the population mean and standard deviation of
// every feature column.
func CalculateStats(lines Lines) Stats {
	if len(lines) == 0 {
		return Stats{}
	}
	n := len(lines[0].Inputs)
	s := Stats{Mean: make([]float64, n), StdDev: make([]float64, n)}
	col := make([]float64, len(lines))
	for j := 0; j < n; j++ {
		for i, l := range lines {
			col[i] = l.Inputs[j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		s.StdDev[j] = stat.PopStdDev(col, nil)
	}
	return s
}

// Normalize returns standardized copies of the lines. Constant columns are
// only centred.
func (s Stats) Normalize(lines Lines) Lines {
	out := make(Lines, len(lines))
	for i, line := range lines {
		inputs := make([]float64, len(line.Inputs))
		for j, x := range line.Inputs {
			inputs[j] = x - s.Mean[j]
			if s.StdDev[j] > 0 {
				inputs[j] /= s.StdDev[j]
			}
		}
		out[i] = Line{Inputs: inputs, Targets: line.Targets}
	}
	return out
}
