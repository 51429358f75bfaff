// Package explore narrows a multi-dimensional A/B result set down to a
// single configuration slice through as few analyst choices as
// possible, then reduces the retained runs into plottable series.
package explore

import (
	"strings"

	"github.com/roypat/volcano/internal/result"
)

// Row is one ingested test result tagged with its dimension values.
type Row struct {
	Dims map[string]result.Value
	Run  *result.TestResult
}

// Group is one row of the grouped table: a concrete value (or missing)
// per dimension, plus every run sharing that tuple.
type Group struct {
	Dims map[string]result.Value
	Runs []*result.TestResult
}

// GroupRows partitions rows by exact equality of their full
// dimension-tuple. A missing value is a distinct key, never coalesced
// with a present one. Groups come back in order of first appearance.
func GroupRows(rows []Row, dimensions []string) []*Group {
	groups := make(map[string]*Group)
	keyOrder := []string{}

	for _, row := range rows {
		key := tupleKey(row.Dims, dimensions)
		g, ok := groups[key]
		if !ok {
			dims := make(map[string]result.Value, len(dimensions))
			for _, d := range dimensions {
				dims[d] = row.Dims[d]
			}
			g = &Group{Dims: dims}
			groups[key] = g
			keyOrder = append(keyOrder, key)
		}
		g.Runs = append(g.Runs, row.Run)
	}

	out := make([]*Group, 0, len(keyOrder))
	for _, key := range keyOrder {
		out = append(out, groups[key])
	}
	return out
}

func tupleKey(dims map[string]result.Value, dimensions []string) string {
	var b strings.Builder
	for _, d := range dimensions {
		v := dims[d]
		if v.Present() {
			b.WriteByte(1)
			b.WriteString(v.String())
		} else {
			b.WriteByte(0)
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}
