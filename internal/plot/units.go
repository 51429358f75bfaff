package plot

import (
	"fmt"
	"math"
)

// unitFactors maps a CloudWatch EMF unit name to its value in the
// family's base unit (seconds, bytes, or bits/second).
var timeUnits = map[string]float64{
	"Nanoseconds":  1e-9,
	"Microseconds": 1e-6,
	"Milliseconds": 1e-3,
	"Seconds":      1,
}

var byteUnits = map[string]float64{
	"Bytes":     1,
	"Kilobytes": 1e3,
	"Megabytes": 1e6,
	"Gigabytes": 1e9,
}

var rateUnits = map[string]float64{
	"Bits/Second":     1,
	"Kilobits/Second": 1e3,
	"Megabits/Second": 1e6,
	"Gigabits/Second": 1e9,
}

// FormatWithReducedUnit renders a value in the largest unit of its
// family that keeps the magnitude readable, e.g. 1_200_000
// Microseconds as "1.20 s" and 2048 Bytes as "2.05 KB".
func FormatWithReducedUnit(value float64, unit string) string {
	switch {
	case unit == "Percent":
		return fmt.Sprintf("%.2f%%", value)
	case unit == "Count" || unit == "None" || unit == "":
		return fmt.Sprintf("%g", value)
	}

	if factor, ok := timeUnits[unit]; ok {
		return reduce(value*factor, []ladderStep{
			{1, "s"}, {1e-3, "ms"}, {1e-6, "us"}, {1e-9, "ns"},
		})
	}
	if factor, ok := byteUnits[unit]; ok {
		return reduce(value*factor, []ladderStep{
			{1e9, "GB"}, {1e6, "MB"}, {1e3, "KB"}, {1, "B"},
		})
	}
	if factor, ok := rateUnits[unit]; ok {
		return reduce(value*factor, []ladderStep{
			{1e9, "Gbps"}, {1e6, "Mbps"}, {1e3, "Kbps"}, {1, "bps"},
		})
	}
	return fmt.Sprintf("%g %s", value, unit)
}

type ladderStep struct {
	factor float64
	suffix string
}

func reduce(base float64, ladder []ladderStep) string {
	abs := math.Abs(base)
	for _, step := range ladder[:len(ladder)-1] {
		if abs >= step.factor {
			return fmt.Sprintf("%.2f %s", base/step.factor, step.suffix)
		}
	}
	last := ladder[len(ladder)-1]
	return fmt.Sprintf("%.2f %s", base/last.factor, last.suffix)
}
