package explore

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/roypat/volcano/internal/result"
)

// Command is one of the closed set of actions a Selector may return
// from a menu. Dispatch over commands is total; the collaborator never
// hands back a free-form string.
type Command int

const (
	CmdVolcano Command = iota
	CmdBuildDetail
	CmdNext
	CmdExit
	CmdHistogramPValues
	CmdHistogramRegressions
	CmdDeepDive
	CmdHolistic
)

// CommandOption pairs a command with the label shown to the analyst.
type CommandOption struct {
	Label   string
	Command Command
}

// Selector collects answers from the analyst. Implementations block
// until an answer or an abort; the engine has no timeouts.
type Selector interface {
	// PickValues returns the chosen subset of candidates. An empty
	// subset means the analyst aborted; forward progress requires at
	// least one accepted value.
	PickValues(dimension string, candidates []string) ([]string, error)
	// PickCommand returns the chosen command, or ok=false on abort.
	PickCommand(message string, options []CommandOption) (Command, bool, error)
	// PickBuildNumber returns a build number, or ok=false when the
	// analyst declined to provide one.
	PickBuildNumber(message string) (int64, bool, error)
}

// Reporter renders finished numeric series. Fire-and-forget from the
// session's point of view beyond error propagation.
type Reporter interface {
	Volcano(series VolcanoSeries) error
	Histogram(series HistogramSeries) error
	SingleRun(series RunSeries) error
}

// Session drives one interactive narrowing-and-reporting pass over a
// grouped table. Single analyst, single goroutine; every prompt
// suspends the loop until the Selector answers.
type Session struct {
	Selector Selector
	Reporter Reporter
	Out      io.Writer

	// AskFirst dimensions are resolved before entropy ranking begins,
	// regardless of their entropy. Used for axes that should always be
	// disambiguated up front, like which performance test.
	AskFirst []string
}

// Run narrows the table, then hands off to the investigation the
// analyst picks. An abort at any prompt ends the session; it is a
// normal exit, not an error.
func (s *Session) Run(sel *Selection) error {
	sel, cont, err := s.ReduceDimensions(sel)
	if err != nil || !cont {
		return err
	}
	fmt.Fprintln(s.Out)

	cmd, ok, err := s.Selector.PickCommand("What kind of investigation do you want to perform?", []CommandOption{
		{Label: "Holistic view of p-values distribution of selected metrics", Command: CmdHolistic},
		{Label: "One-by-one deep dive into each metric", Command: CmdDeepDive},
	})
	if err != nil || !ok {
		return err
	}

	switch cmd {
	case CmdDeepDive:
		return s.DeepDive(sel)
	case CmdHolistic:
		return s.Holistic(sel)
	}
	return nil
}

// ReduceDimensions runs the question loop: ask-first dimensions in
// order, then repeatedly whichever free dimension carries the most
// entropy, until no free dimension offers a defined, non-empty choice
// set. cont is false when the analyst aborted; sel is then the table
// as last resolved, never rolled back.
func (s *Session) ReduceDimensions(sel *Selection) (_ *Selection, cont bool, err error) {
	for _, dim := range s.AskFirst {
		if !isFree(sel.Free, dim) {
			continue
		}
		next, cont, err := s.promptDimension(sel, dim)
		if err != nil || !cont {
			return sel, false, err
		}
		sel = next
	}

	for {
		dim, ok := MaxEntropyDimension(sel.Groups, sel.Free)
		if !ok {
			return sel, true, nil
		}
		next, cont, err := s.promptDimension(sel, dim)
		if err != nil || !cont {
			return sel, false, err
		}
		sel = next
	}
}

func (s *Session) promptDimension(sel *Selection, dim string) (*Selection, bool, error) {
	candidates := sel.Candidates(dim)

	// No retained row has any value for this dimension: not applicable
	// given prior choices, nothing to ask.
	if len(candidates) == 0 {
		return sel.withoutFree(dim), true, nil
	}

	// A single candidate is already determined; asking adds nothing.
	if len(candidates) == 1 {
		fmt.Fprintf(s.Out, "Value of dimension %q is pre-determined to be %q by previous selections.\n", dim, candidates[0])
		next, err := sel.Eliminate(dim, candidates)
		if err != nil {
			return sel, false, err
		}
		return next, true, nil
	}

	chosen, err := s.Selector.PickValues(dim, candidates)
	if err != nil {
		return sel, false, err
	}
	if len(chosen) == 0 {
		return sel, false, nil
	}
	next, err := sel.Eliminate(dim, chosen)
	if err != nil {
		return sel, false, err
	}
	return next, true, nil
}

// DeepDive walks the retained groups one by one.
func (s *Session) DeepDive(sel *Selection) error {
	for _, g := range sel.Groups {
		cont, err := s.analyzeGroup(g)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

func (s *Session) analyzeGroup(g *Group) (cont bool, err error) {
	bold := color.New(color.Bold)

	fmt.Fprintln(s.Out, "Showing details for A/B-Tests performed with the following parameters:")
	for _, dim := range sortedDims(g.Dims) {
		if v := g.Dims[dim]; v.Present() {
			fmt.Fprintf(s.Out, "%s %s\n", bold.Sprintf("%-20s", dim), v)
		}
	}
	fmt.Fprintln(s.Out)

	options := []CommandOption{
		{Label: "Display volcano plot of historical A/B-Tests", Command: CmdVolcano},
		{Label: "Display data for specific build", Command: CmdBuildDetail},
		{Label: "Nothing, take me to next metric", Command: CmdNext},
		{Label: "Exit", Command: CmdExit},
	}

	for {
		cmd, ok, err := s.Selector.PickCommand("What do you want to do with this metric?", options)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}

		switch cmd {
		case CmdVolcano:
			series, err := BuildVolcanoSeries(g.Runs, false)
			if err != nil {
				return false, err
			}
			if err := s.Reporter.Volcano(series); err != nil {
				return false, err
			}
		case CmdBuildDetail:
			build, ok, err := s.Selector.PickBuildNumber("What's the build number (found in the run URL) of the run you want to display?")
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
			run := findBuild(g, build)
			if run == nil {
				fmt.Fprintf(s.Out, "No data for build number %d found\n", build)
				continue
			}
			series, err := BuildRunSeries(run)
			if err != nil {
				return false, err
			}
			if err := s.Reporter.SingleRun(series); err != nil {
				return false, err
			}
		case CmdNext:
			return true, nil
		case CmdExit:
			return false, nil
		}
	}
}

// Holistic aggregates every retained run and offers distribution-level
// plots, optionally narrowed to one build number.
func (s *Session) Holistic(sel *Selection) error {
	if len(sel.Groups) == 0 {
		fmt.Fprintln(s.Out, "No data matches the selection")
		return nil
	}

	bold := color.New(color.Bold)
	space := sel.domains()
	dims := make([]string, 0, len(space))
	for dim := range space {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	fmt.Fprintln(s.Out, "Performing holistic analysis of p-values logged by A/B-Tests matching the following dimensions:")
	for _, dim := range dims {
		if vals := space[dim]; len(vals) == 1 {
			fmt.Fprintf(s.Out, "%s %s\n", bold.Sprintf("%-20s", dim), vals[0])
		}
	}
	fmt.Fprintln(s.Out, "\nThis will include p-values across the following space:")
	for _, dim := range dims {
		if vals := space[dim]; len(vals) > 1 {
			fmt.Fprintf(s.Out, "%s %v\n", bold.Sprintf("%-20s", dim), vals)
		}
	}

	build, haveBuild, err := s.Selector.PickBuildNumber("Do you want to limit the analysis to a specific build? (for 'yes', provide build number, for 'no' leave empty)")
	if err != nil {
		return err
	}

	var runs []*result.TestResult
	for _, g := range sel.Groups {
		for _, run := range g.Runs {
			if haveBuild && run.BuildNumber != build {
				continue
			}
			runs = append(runs, run)
		}
	}

	options := []CommandOption{
		{Label: "Volcano plot of relative regressions", Command: CmdVolcano},
		{Label: "Histogram of p-values", Command: CmdHistogramPValues},
		{Label: "Histogram of relative regressions", Command: CmdHistogramRegressions},
		{Label: "Exit", Command: CmdExit},
	}

	for {
		cmd, ok, err := s.Selector.PickCommand("What type of aggregate plot are you interested in?", options)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		switch cmd {
		case CmdVolcano:
			series, err := BuildVolcanoSeries(runs, true)
			if err != nil {
				return err
			}
			if err := s.Reporter.Volcano(series); err != nil {
				return err
			}
		case CmdHistogramPValues, CmdHistogramRegressions:
			series, err := BuildHistogramSeries(runs, cmd == CmdHistogramRegressions)
			if err != nil {
				return err
			}
			if err := s.Reporter.Histogram(series); err != nil {
				return err
			}
		case CmdExit:
			return nil
		}
	}
}

// domains returns each dimension's distinct present values across the
// retained groups.
func (s *Selection) domains() map[string][]string {
	out := map[string][]string{}
	if len(s.Groups) == 0 {
		return out
	}
	for dim := range s.Groups[0].Dims {
		out[dim] = s.Candidates(dim)
	}
	return out
}

func (s *Selection) withoutFree(dim string) *Selection {
	free := make([]string, 0, len(s.Free))
	for _, d := range s.Free {
		if d != dim {
			free = append(free, d)
		}
	}
	return &Selection{Groups: s.Groups, Free: free, Chosen: s.Chosen}
}

func isFree(free []string, dim string) bool {
	for _, d := range free {
		if d == dim {
			return true
		}
	}
	return false
}

func sortedDims(dims map[string]result.Value) []string {
	out := make([]string, 0, len(dims))
	for d := range dims {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func findBuild(g *Group, build int64) *result.TestResult {
	for _, run := range g.Runs {
		if run.BuildNumber == build {
			return run
		}
	}
	return nil
}
