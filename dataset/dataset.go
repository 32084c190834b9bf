// Package dataset assembles labeled feature matrices from a directory with
// one subfolder per label.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/RyanBlaney/sonido-verdict/algorithms/common"
)

var (
	// ErrLabelFolder is returned when a label has no readable subfolder.
	ErrLabelFolder = errors.New("label folder missing")
	// ErrEmptyDataset is returned when no clips were found under any label.
	ErrEmptyDataset = errors.New("dataset is empty")
)

// Dataset holds feature rows and their label indices, paired by position.
type Dataset struct {
	X     [][]float64
	Y     []int
	Files []string // source clip of each row, carried through Split
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.X)
}

// Dimension returns the row width, or 0 for an empty dataset.
func (d *Dataset) Dimension() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// ClassCounts returns the number of rows per label index.
func (d *Dataset) ClassCounts(numLabels int) []int {
	counts := make([]int, numLabels)
	for _, y := range d.Y {
		if y >= 0 && y < numLabels {
			counts[y]++
		}
	}
	return counts
}

// ScaleByMax divides every entry by the dataset-wide maximum and returns that
// maximum. A degenerate maximum leaves the data unchanged and returns 0.
func (d *Dataset) ScaleByMax() float64 {
	return common.ScaleRowsByGlobalMax(d.X)
}

// Split shuffles rows with a permutation seeded by seed and moves
// ValidationSize(n, ratio) of them into the validation set. The same seed
// always yields the same partition.
func (d *Dataset) Split(ratio float64, seed uint64) (train, validation *Dataset) {
	n := d.Len()
	valSize := ValidationSize(n, ratio)

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	train = &Dataset{
		X: make([][]float64, 0, n-valSize),
		Y: make([]int, 0, n-valSize),
	}
	validation = &Dataset{
		X: make([][]float64, 0, valSize),
		Y: make([]int, 0, valSize),
	}

	for i, idx := range perm {
		target := train
		if i < valSize {
			target = validation
		}
		target.X = append(target.X, d.X[idx])
		target.Y = append(target.Y, d.Y[idx])
		if len(d.Files) == n {
			target.Files = append(target.Files, d.Files[idx])
		}
	}

	return train, validation
}

// ValidationSize returns round(ratio*n), clamped to [1, n-1] when n >= 2.
func ValidationSize(n int, ratio float64) int {
	if n < 2 {
		return 0
	}
	size := int(math.Round(ratio * float64(n)))
	return max(1, min(size, n-1))
}

// LabelIndex returns the position of name in labels.
func LabelIndex(labels []string, name string) (int, error) {
	for i, l := range labels {
		if l == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("unknown label %q", name)
}
