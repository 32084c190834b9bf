// Package report renders training history charts.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/RyanBlaney/sonido-verdict/nn"
)

// Size of the rendered image.
const (
	Width  = 12 * vg.Inch
	Height = 4 * vg.Inch
)

// WriteHistory renders accuracy (left) and loss (right) per epoch, training
// and validation curves in each, as a PNG at path. An existing file is
// replaced.
func WriteHistory(path string, h *nn.History) error {
	if h == nil || h.Epochs() == 0 {
		return errors.New("history has no epochs")
	}

	accuracy, err := panel("Model accuracy", "accuracy", h.Accuracy, h.ValAccuracy)
	if err != nil {
		return err
	}
	loss, err := panel("Model loss", "loss", h.Loss, h.ValLoss)
	if err != nil {
		return err
	}

	img := vgimg.New(Width, Height)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}

	plots := [][]*plot.Plot{{accuracy, loss}}
	canvases := plot.Align(plots, tiles, dc)
	for j, p := range plots[0] {
		p.Draw(canvases[0][j])
	}

	return writePNG(path, img)
}

func panel(title, ylabel string, train, val []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true

	args := []any{"train", points(train)}
	if len(val) > 0 {
		args = append(args, "validation", points(val))
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return nil, fmt.Errorf("failed to add %s lines: %w", ylabel, err)
	}

	return p, nil
}

func points(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	return pts
}

func writePNG(path string, img *vgimg.Canvas) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create history image: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode history image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write history image: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move history image into place: %w", err)
	}
	return nil
}
