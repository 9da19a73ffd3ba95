package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// plotSmiles draws every queried smile as vol against strike, one line per
// smile with its ATM forward marked.
func plotSmiles(outputs []ScenarioOutput, path string) error {
	p := plot.New()
	p.Title.Text = "SABR smiles"
	p.X.Label.Text = "Strike (%)"
	p.Y.Label.Text = "Volatility (%)"

	n := 0
	for _, out := range outputs {
		for _, s := range out.Smiles {
			if len(s.StrikesPct) == 0 {
				continue
			}
			pts := make(plotter.XYs, len(s.StrikesPct))
			for i := range s.StrikesPct {
				pts[i] = plotter.XY{X: s.StrikesPct[i], Y: s.VolsPct[i]}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return err
			}
			line.Color = plotutil.Color(n)
			line.Width = vg.Points(1)
			p.Add(line)

			label := s.OptionTenor + "x" + s.SwapTenor
			if out.TaskID != "" {
				label = out.TaskID + " " + label
			}
			p.Legend.Add(label, line)

			if atm, ok := atmPoint(s); ok {
				sc, err := plotter.NewScatter(plotter.XYs{atm})
				if err != nil {
					return err
				}
				sc.GlyphStyle.Color = line.Color
				p.Add(sc)
			}
			n++
		}
	}
	if n == 0 {
		return fmt.Errorf("no smiles with strikes to plot")
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}

// atmPoint returns the queried point at the forward, if one was requested.
func atmPoint(s SmileOutput) (plotter.XY, bool) {
	for i, k := range s.StrikesPct {
		if k == s.ForwardPct {
			return plotter.XY{X: k, Y: s.VolsPct[i]}, true
		}
	}
	return plotter.XY{}, false
}
