package explore

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/roypat/volcano/internal/result"
)

var errNoRuns = errors.New("no runs to report on")

// SignificanceThreshold is the fixed p-value convention below which a
// change is treated as significant. Plot renderers draw a guide line
// at 1/SignificanceThreshold.
const SignificanceThreshold = 0.01

// VolcanoSeries is the numeric reduction behind an effect-size vs
// significance scatter. Y holds 1/p for each run; plotted on a log
// axis that reads as -log(p).
type VolcanoSeries struct {
	X        []float64
	Y        []float64
	Relative bool
	Unit     string

	// Annotations for the caption line.
	RunCount          int
	MeanAbsRegression float64 // relative mode: average |relative regression|
	OverallMean       float64 // raw mode: mean over every individual data point
}

// BuildVolcanoSeries projects the retained runs into a volcano series.
// X is the relative mean difference when relative is set, the raw mean
// difference otherwise. No statistics are computed beyond what the
// runs already carry.
func BuildVolcanoSeries(runs []*result.TestResult, relative bool) (VolcanoSeries, error) {
	if len(runs) == 0 {
		return VolcanoSeries{}, errNoRuns
	}

	// Unit is invariant across one metric/dimension group.
	unit := runs[0].Unit
	if relative {
		unit = "Percent"
	}

	s := VolcanoSeries{
		X:        make([]float64, 0, len(runs)),
		Y:        make([]float64, 0, len(runs)),
		Relative: relative,
		Unit:     unit,
		RunCount: len(runs),
	}

	var allPoints []float64
	var absSum float64
	for _, run := range runs {
		p, err := run.PValue()
		if err != nil {
			return VolcanoSeries{}, err
		}

		var x float64
		if relative {
			x, err = run.RelativeMeanDifference()
		} else {
			x, err = run.MeanDifference()
		}
		if err != nil {
			return VolcanoSeries{}, err
		}

		s.X = append(s.X, x)
		s.Y = append(s.Y, 1/p)
		absSum += math.Abs(x)
		allPoints = append(allPoints, run.DataA...)
		allPoints = append(allPoints, run.DataB...)
	}

	if relative {
		s.MeanAbsRegression = absSum / float64(len(runs))
	} else if len(allPoints) > 0 {
		s.OverallMean = stat.Mean(allPoints, nil)
	}
	return s, nil
}

// HistogramSeries is a flat numeric sequence for an external histogram
// renderer: p-values by default, relative mean differences when
// Regression is set.
type HistogramSeries struct {
	Values     []float64
	Regression bool
}

func BuildHistogramSeries(runs []*result.TestResult, regression bool) (HistogramSeries, error) {
	if len(runs) == 0 {
		return HistogramSeries{}, errNoRuns
	}

	s := HistogramSeries{
		Values:     make([]float64, 0, len(runs)),
		Regression: regression,
	}
	for _, run := range runs {
		var v float64
		var err error
		if regression {
			v, err = run.RelativeMeanDifference()
		} else {
			v, err = run.PValue()
		}
		if err != nil {
			return HistogramSeries{}, err
		}
		s.Values = append(s.Values, v)
	}
	return s, nil
}

// RunSeries carries one run's raw sample arrays for overlay plotting,
// plus the formatted deltas for annotation.
type RunSeries struct {
	DataA []float64
	DataB []float64

	Metric      string
	Unit        string
	BuildNumber int64

	PValue                 float64
	MeanDifference         float64
	RelativeMeanDifference float64
	MeanA                  float64
	MeanB                  float64
}

func BuildRunSeries(run *result.TestResult) (RunSeries, error) {
	p, diff, err := run.Statistic()
	if err != nil {
		return RunSeries{}, err
	}
	rel, err := run.RelativeMeanDifference()
	if err != nil {
		return RunSeries{}, err
	}

	return RunSeries{
		DataA:                  run.DataA,
		DataB:                  run.DataB,
		Metric:                 run.Metric,
		Unit:                   run.Unit,
		BuildNumber:            run.BuildNumber,
		PValue:                 p,
		MeanDifference:         diff,
		RelativeMeanDifference: rel,
		MeanA:                  stat.Mean(run.DataA, nil),
		MeanB:                  stat.Mean(run.DataB, nil),
	}, nil
}
