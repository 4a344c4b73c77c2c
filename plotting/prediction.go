// Package plotting renders evaluation charts.
package plotting

import (
	"image/color"
	"math"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Size of saved charts.
const (
	Width  = 6 * vg.Inch
	Height = 6 * vg.Inch
)

// PredictionPlot builds a predicted-vs-actual scatter with the identity line.
func PredictionPlot(yTrue, yPred mat.Vector) (*plot.Plot, error) {
	if yTrue.Len() != yPred.Len() {
		return nil, errors.NewDimensionError("PredictionPlot", yTrue.Len(), yPred.Len(), 0)
	}
	if yTrue.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "PredictionPlot")
	}

	pts := make(plotter.XYs, yTrue.Len())
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range pts {
		pts[i].X = yTrue.AtVec(i)
		pts[i].Y = yPred.AtVec(i)
		lo = math.Min(lo, math.Min(pts[i].X, pts[i].Y))
		hi = math.Max(hi, math.Max(pts[i].X, pts[i].Y))
	}

	p := plot.New()
	p.Title.Text = "Predicted vs actual quality"
	p.X.Label.Text = "actual"
	p.Y.Label.Text = "predicted"
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "build scatter")
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(2)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 160}

	identity := plotter.NewFunction(func(x float64) float64 { return x })
	identity.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	identity.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(scatter, identity)
	p.Legend.Add("samples", scatter)
	p.Legend.Add("y = x", identity)
	p.Legend.Top = true
	p.Legend.Left = true

	pad := 0.05 * (hi - lo)
	if pad == 0 {
		pad = 0.5
	}
	p.X.Min, p.X.Max = lo-pad, hi+pad
	p.Y.Min, p.Y.Max = lo-pad, hi+pad
	return p, nil
}

// SavePredictionPlot writes PredictionPlot to path. The format follows the
// file extension (.png, .svg, .pdf).
func SavePredictionPlot(yTrue, yPred mat.Vector, path string) error {
	p, err := PredictionPlot(yTrue, yPred)
	if err != nil {
		return err
	}
	return errors.Wrapf(p.Save(Width, Height, path), "save plot %s", path)
}
