package web

import (
	"encoding/json"
	"net/http"

	"github.com/roypat/volcano/internal/explore"
	"github.com/roypat/volcano/internal/result"
)

func (s *Server) handleDimensions(w http.ResponseWriter, r *http.Request) {
	sel := explore.NewSelection(s.snapshot.Groups, s.snapshot.Dimensions)

	type dimensionResponse struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	}

	response := make([]dimensionResponse, 0, len(s.snapshot.Dimensions))
	for _, dim := range s.snapshot.Dimensions {
		response = append(response, dimensionResponse{
			Name:   dim,
			Values: sel.Candidates(dim),
		})
	}
	writeJSON(w, response)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	type groupResponse struct {
		Dimensions map[string]*string `json:"dimensions"`
		RunCount   int                `json:"run_count"`
		Metric     string             `json:"metric,omitempty"`
		Unit       string             `json:"unit,omitempty"`
	}

	response := make([]groupResponse, 0, len(s.snapshot.Groups))
	for _, g := range s.snapshot.Groups {
		dims := make(map[string]*string, len(g.Dims))
		for name, v := range g.Dims {
			dims[name] = valuePtr(v)
		}
		gr := groupResponse{Dimensions: dims, RunCount: len(g.Runs)}
		if len(g.Runs) > 0 {
			gr.Metric = g.Runs[0].Metric
			gr.Unit = g.Runs[0].Unit
		}
		response = append(response, gr)
	}
	writeJSON(w, response)
}

func (s *Server) handleVolcano(w http.ResponseWriter, r *http.Request) {
	relative := r.URL.Query().Get("relative") != "false"

	series, err := explore.BuildVolcanoSeries(s.allRuns(), relative)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, struct {
		X          []float64 `json:"x"`
		Y          []float64 `json:"y"`
		Relative   bool      `json:"relative"`
		Unit       string    `json:"unit"`
		RunCount   int       `json:"run_count"`
		ThresholdY float64   `json:"threshold_y"`
	}{
		X:          series.X,
		Y:          series.Y,
		Relative:   series.Relative,
		Unit:       series.Unit,
		RunCount:   series.RunCount,
		ThresholdY: 1 / explore.SignificanceThreshold,
	})
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	regression := r.URL.Query().Get("kind") == "regression"

	series, err := explore.BuildHistogramSeries(s.allRuns(), regression)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, struct {
		Values     []float64 `json:"values"`
		Regression bool      `json:"regression"`
	}{Values: series.Values, Regression: series.Regression})
}

func (s *Server) allRuns() []*result.TestResult {
	var runs []*result.TestResult
	for _, g := range s.snapshot.Groups {
		runs = append(runs, g.Runs...)
	}
	return runs
}

func valuePtr(v result.Value) *string {
	if !v.Present() {
		return nil
	}
	s := v.String()
	return &s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
