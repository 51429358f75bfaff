// Package plot renders finished numeric series as terminal graphics.
// It consumes the series shapes the exploration engine produces and
// performs no statistics of its own.
package plot

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"
	"github.com/guptarohit/asciigraph"

	"github.com/roypat/volcano/internal/explore"
)

const (
	plotWidth  = 70
	plotHeight = 20

	histBins   = 40
	histHeight = 15
)

// Terminal draws plots as rune grids on Out. It satisfies
// explore.Reporter.
type Terminal struct {
	Out io.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{Out: out}
}

// Volcano renders effect size against significance. The y axis shows
// 1/p on a log scale, so height reads as -log10(p); the x axis is
// symlog so regressions spanning orders of magnitude stay visible.
func (t *Terminal) Volcano(series explore.VolcanoSeries) error {
	bold := color.New(color.Bold)

	fmt.Fprintf(t.Out, "\nVolcano plot of recent A/B-Tests. Each point represents one test run. Total number of runs: %d\n", series.RunCount)
	if series.Relative {
		fmt.Fprintf(t.Out, "The average reported regression is %s.\n", bold.Sprintf("%.2f%%", series.MeanAbsRegression*100))
	} else {
		fmt.Fprintf(t.Out, "The average value across all runs so far is %s.\n", bold.Sprint(FormatWithReducedUnit(series.OverallMean, series.Unit)))
	}

	minExp, maxExp, any := exponentRange(series.X)
	if !any {
		fmt.Fprintln(t.Out, "All mean differences are zero; nothing to plot")
		return nil
	}
	xMax := float64(maxExp-minExp) + 1

	grid := newGrid(plotWidth, plotHeight)

	// Significance guide at p = 0.01.
	sigRow := grid.row(logP(explore.SignificanceThreshold))
	for c := 0; c < plotWidth; c++ {
		grid.set(c, sigRow, '┄')
	}

	// Practical-effect guides at a 20% regression (of the overall mean
	// in raw mode).
	effect := 0.2
	if !series.Relative {
		effect = math.Abs(series.OverallMean) * 0.2
	}
	if effect > 0 {
		xt := math.Log10(effect) - float64(minExp) + 1
		for _, gx := range []float64{xt, -xt} {
			if col, ok := grid.col(gx, -xMax, xMax); ok {
				for r := 0; r < plotHeight; r++ {
					grid.set(col, r, '┊')
				}
			}
		}
	}

	for i, x := range series.X {
		if x == 0 {
			continue
		}
		xt := math.Log10(math.Abs(x)) - float64(minExp) + 1
		if x < 0 {
			xt = -xt
		}
		col, ok := grid.col(xt, -xMax, xMax)
		if !ok {
			continue
		}
		grid.set(col, grid.row(math.Log10(series.Y[i])), '●')
	}

	t.printGrid(grid, volcanoYTick)
	fmt.Fprintf(t.Out, "%*s\n", plotWidth/2+8, fmt.Sprintf("regression (%s)", series.Unit))
	fmt.Fprintf(t.Out, "x spans -10^%d..10^%d symlog; %s marks p = %v\n\n",
		maxExp, maxExp, "┄", explore.SignificanceThreshold)
	return nil
}

// Histogram renders the flat series as fixed-width bins. For p-value
// histograms the bin holding the significance threshold is marked.
func (t *Terminal) Histogram(series explore.HistogramSeries) error {
	if len(series.Values) == 0 {
		fmt.Fprintln(t.Out, "No values to plot")
		return nil
	}

	lo, hi := series.Values[0], series.Values[0]
	for _, v := range series.Values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	counts := make([]int, histBins)
	maxCount := 0
	for _, v := range series.Values {
		bin := int(float64(histBins) * (v - lo) / (hi - lo))
		if bin >= histBins {
			bin = histBins - 1
		}
		counts[bin]++
		if counts[bin] > maxCount {
			maxCount = counts[bin]
		}
	}

	fmt.Fprintln(t.Out)
	for level := histHeight; level > 0; level-- {
		var b strings.Builder
		for _, c := range counts {
			if c*histHeight >= level*maxCount && c > 0 {
				b.WriteRune('█')
			} else {
				b.WriteByte(' ')
			}
		}
		fmt.Fprintf(t.Out, "%4s %s\n", yLabel(level, histHeight, maxCount), b.String())
	}
	fmt.Fprintf(t.Out, "     %s\n", strings.Repeat("─", histBins))

	marker := ""
	if !series.Regression && lo <= explore.SignificanceThreshold && explore.SignificanceThreshold <= hi {
		bin := int(float64(histBins) * (explore.SignificanceThreshold - lo) / (hi - lo))
		if bin >= histBins {
			bin = histBins - 1
		}
		marker = color.RedString("%*s p=%v", bin+6, "^", explore.SignificanceThreshold)
	}
	fmt.Fprintf(t.Out, "     %-12g%*g\n", lo, histBins-12, hi)
	if marker != "" {
		fmt.Fprintln(t.Out, marker)
	}
	fmt.Fprintln(t.Out)
	return nil
}

// SingleRun overlays one run's A and B sample series and annotates
// the observed change.
func (t *Terminal) SingleRun(series explore.RunSeries) error {
	bold := color.New(color.Bold)

	fmt.Fprintf(t.Out,
		"See below the plot for build %d. A/B-Testing determined that the p-value of observed change of %s from %s to %s or %s being a genuine performance change is %s\n",
		series.BuildNumber,
		bold.Sprint(FormatWithReducedUnit(series.MeanDifference, series.Unit)),
		bold.Sprint(FormatWithReducedUnit(series.MeanA, series.Unit)),
		bold.Sprint(FormatWithReducedUnit(series.MeanB, series.Unit)),
		bold.Sprintf("%.2f%%", series.RelativeMeanDifference*100),
		bold.Sprintf("%v", series.PValue),
	)

	chart := asciigraph.PlotMany(
		[][]float64{series.DataA, series.DataB},
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.Caption(fmt.Sprintf("%s (%s), A in red, B in green", series.Metric, series.Unit)),
	)
	fmt.Fprintln(t.Out, chart)
	fmt.Fprintln(t.Out)
	return nil
}

// grid is a rune canvas with row 0 at the top.
type grid struct {
	cells  [][]rune
	width  int
	height int
}

func newGrid(width, height int) *grid {
	cells := make([][]rune, height)
	for i := range cells {
		cells[i] = make([]rune, width)
		for j := range cells[i] {
			cells[i][j] = ' '
		}
	}
	return &grid{cells: cells, width: width, height: height}
}

func (g *grid) set(col, row int, ch rune) {
	if col >= 0 && col < g.width && row >= 0 && row < g.height {
		g.cells[row][col] = ch
	}
}

// row maps a -log10(p) value in [0, 4] to a grid row.
func (g *grid) row(logp float64) int {
	frac := clamp(logp/4, 0, 1)
	return g.height - 1 - int(math.Round(frac*float64(g.height-1)))
}

// col maps x in [lo, hi] to a grid column.
func (g *grid) col(x, lo, hi float64) (int, bool) {
	if x < lo || x > hi {
		return 0, false
	}
	return int(math.Round((x - lo) / (hi - lo) * float64(g.width-1))), true
}

func (t *Terminal) printGrid(g *grid, tick func(row, height int) string) {
	for r := 0; r < g.height; r++ {
		fmt.Fprintf(t.Out, "%4s│%s\n", tick(r, g.height), string(g.cells[r]))
	}
	fmt.Fprintf(t.Out, "    └%s\n", strings.Repeat("─", g.width))
}

// volcanoYTick labels the -log10(p) axis at integer stops.
func volcanoYTick(row, height int) string {
	frac := float64(height-1-row) / float64(height-1)
	v := frac * 4
	if math.Abs(v-math.Round(v)) < 0.5/float64(height-1) {
		return fmt.Sprintf("%d", int(math.Round(v)))
	}
	return ""
}

func yLabel(level, height, maxCount int) string {
	if level == height {
		return fmt.Sprintf("%d", maxCount)
	}
	if level == 1 {
		return "0"
	}
	return ""
}

func logP(p float64) float64 {
	return -math.Log10(p)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// exponentRange returns the floor/ceil base-10 exponents across the
// non-zero magnitudes of xs.
func exponentRange(xs []float64) (minExp, maxExp int, any bool) {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, x := range xs {
		if x == 0 {
			continue
		}
		abs := math.Abs(x)
		lo = math.Min(lo, abs)
		hi = math.Max(hi, abs)
		any = true
	}
	if !any {
		return 0, 0, false
	}
	return int(math.Floor(math.Log10(lo))), int(math.Ceil(math.Log10(hi))), true
}
