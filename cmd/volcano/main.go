package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roypat/volcano/internal/db"
	"github.com/roypat/volcano/internal/explore"
	"github.com/roypat/volcano/internal/ingest"
	"github.com/roypat/volcano/internal/plot"
	"github.com/roypat/volcano/internal/prompt"
	"github.com/roypat/volcano/internal/result"
	"github.com/roypat/volcano/internal/web"
)

var dbPath string

// Dimensions common to all test results, prompted before the
// entropy-driven question loop takes over.
var defaultAskFirst = []string{
	"performance_test",
	"instance",
	"guest_kernel",
	"host_kernel",
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "volcano.db"
	}
	return filepath.Join(home, ".volcano", "archive.db")
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "volcano",
		Short: "Statistical triage for A/B performance test results",
		Long: `volcano ingests the EMF logs an A/B performance testing harness
emits, groups results by their test configuration, and interactively
narrows thousands of metric series down to the slice you care about,
asking as few questions as possible along the way.`,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "archive database path")

	rootCmd.AddCommand(exploreCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type sourceFlags struct {
	importID  int64
	resamples int
	seed      int64
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.importID, "import", 0, "load from archive import (0 = latest when no log file given)")
	cmd.Flags().IntVar(&f.resamples, "resamples", 0, "re-run permutation tests with this many resamples; slower but more accurate p-values")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "seed for Monte-Carlo resampling; 0 seeds from the clock")
}

func (f *sourceFlags) options() ingest.Options {
	opts := ingest.Options{}
	if f.resamples != 0 {
		n := f.resamples
		opts.Resamples = &n
	}
	if f.seed != 0 {
		opts.Rand = rand.New(rand.NewSource(f.seed))
	}
	return opts
}

// loadRows reads the result set from a log file argument or, absent
// one, from the archive.
func (f *sourceFlags) loadRows(args []string) (*ingest.Log, error) {
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()
		return ingest.ReadLog(file, f.options())
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = database.Close() }()

	imp, err := f.resolveImport(database)
	if err != nil {
		return nil, err
	}

	archived, err := database.GetResultsForImport(imp.ID)
	if err != nil {
		return nil, err
	}

	opts := f.options()
	log := &ingest.Log{Dimensions: imp.Dimensions}
	for _, r := range archived {
		dims := make(map[string]result.Value, len(r.Dimensions))
		for name, v := range r.Dimensions {
			if v == nil {
				dims[name] = result.Missing
			} else {
				dims[name] = result.Val(*v)
			}
		}
		log.Rows = append(log.Rows, explore.Row{
			Dims: dims,
			Run: &result.TestResult{
				DataA:                     r.DataA,
				DataB:                     r.DataB,
				PrecomputedPValue:         r.PValue,
				PrecomputedMeanDifference: r.MeanDifference,
				BuildNumber:               r.BuildNumber,
				Unit:                      r.Unit,
				Metric:                    r.Metric,
				Resamples:                 opts.Resamples,
				Rand:                      opts.Rand,
			},
		})
	}
	return log, nil
}

func (f *sourceFlags) resolveImport(database *db.DB) (*db.Import, error) {
	if f.importID > 0 {
		imp, err := database.GetImport(f.importID)
		if err != nil {
			return nil, fmt.Errorf("import #%d not found: %w", f.importID, err)
		}
		return imp, nil
	}
	imp, err := database.GetLatestImport()
	if err != nil {
		return nil, fmt.Errorf("no imports in archive (run 'volcano import' first): %w", err)
	}
	return imp, nil
}

func exploreCmd() *cobra.Command {
	var src sourceFlags
	var askFirst string

	cmd := &cobra.Command{
		Use:   "explore [emf_log]",
		Short: "Interactively narrow results down to one configuration slice",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := src.loadRows(args)
			if err != nil {
				return err
			}
			if len(log.Rows) == 0 {
				fmt.Println("No A/B test results found")
				return nil
			}

			groups := explore.GroupRows(log.Rows, log.Dimensions)
			sel := explore.NewSelection(groups, log.Dimensions)

			session := &explore.Session{
				Selector: prompt.Prompter{},
				Reporter: plot.NewTerminal(os.Stdout),
				Out:      os.Stdout,
				AskFirst: splitAskFirst(askFirst),
			}
			return session.Run(sel)
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&askFirst, "ask-first", strings.Join(defaultAskFirst, ","),
		"comma-separated dimensions to resolve before entropy-based selection")

	return cmd
}

func splitAskFirst(s string) []string {
	var out []string
	for _, dim := range strings.Split(s, ",") {
		if dim = strings.TrimSpace(dim); dim != "" {
			out = append(out, dim)
		}
	}
	return out
}

func importCmd() *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "import [emf_log]",
		Short: "Archive an EMF log in the local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = file.Close() }()

			log, err := ingest.ReadLog(file, ingest.Options{})
			if err != nil {
				return err
			}
			if len(log.Rows) == 0 {
				return fmt.Errorf("no A/B test results in %s", args[0])
			}

			database, err := db.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			importID, err := archiveLog(database, args[0], notes, log)
			if err != nil {
				return err
			}

			color.Green("Imported %d records as import #%d", len(log.Rows), importID)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "optional notes")

	return cmd
}

func archiveLog(database *db.DB, source, notes string, log *ingest.Log) (int64, error) {
	importID, err := database.InsertImport(&db.Import{
		Source:      source,
		ImportedAt:  time.Now().Format(time.RFC3339),
		RecordCount: int64(len(log.Rows)),
		Dimensions:  log.Dimensions,
		Notes:       notes,
	})
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	cleanup := func() {
		_ = database.DeleteImport(importID)
	}

	for _, row := range log.Rows {
		dims := make(map[string]*string, len(row.Dims))
		for name, v := range row.Dims {
			if v.Present() {
				s := v.String()
				dims[name] = &s
			} else {
				dims[name] = nil
			}
		}
		run := row.Run
		if _, err := database.InsertResult(&db.Result{
			ImportID:       importID,
			Metric:         run.Metric,
			Unit:           run.Unit,
			BuildNumber:    run.BuildNumber,
			PValue:         run.PrecomputedPValue,
			MeanDifference: run.PrecomputedMeanDifference,
			DataA:          run.DataA,
			DataB:          run.DataB,
			Dimensions:     dims,
		}); err != nil {
			cleanup()
			return 0, fmt.Errorf("insert result: %w", err)
		}
	}
	return importID, nil
}

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived imports",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := db.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			imports, err := database.ListImports(limit)
			if err != nil {
				return err
			}

			if len(imports) == 0 {
				fmt.Println("No imports found")
				return nil
			}

			cyan := color.New(color.FgCyan)
			dim := color.New(color.Faint)

			_, _ = cyan.Printf("%-6s %-20s %-8s %s\n", "ID", "Imported", "Records", "Source")
			_, _ = dim.Println(strings.Repeat("-", 70))

			for _, imp := range imports {
				date := imp.ImportedAt
				if len(date) > 19 {
					date = date[:19]
				}
				source := imp.Source
				if imp.Notes != "" {
					source += " (" + imp.Notes + ")"
				}
				fmt.Printf("%-6d %-20s %-8d %s\n", imp.ID, date, imp.RecordCount, source)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "max imports to show")

	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [import_id]",
		Short: "Show details of an archived import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid import ID: %w", err)
			}

			database, err := db.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			imp, err := database.GetImport(id)
			if err != nil {
				return fmt.Errorf("import not found: %w", err)
			}

			cyan := color.New(color.FgCyan)
			dim := color.New(color.Faint)

			_, _ = cyan.Printf("Import #%d\n", imp.ID)
			_, _ = dim.Println(strings.Repeat("-", 50))
			fmt.Printf("Source:   %s\n", imp.Source)
			fmt.Printf("Imported: %s\n", imp.ImportedAt)
			fmt.Printf("Records:  %d\n", imp.RecordCount)
			if imp.Notes != "" {
				fmt.Printf("Notes:    %s\n", imp.Notes)
			}
			fmt.Printf("Dimensions: %s\n", strings.Join(imp.Dimensions, ", "))

			metrics, err := database.DistinctMetrics(imp.ID)
			if err != nil {
				return err
			}
			fmt.Println("\nMetrics:")
			for _, m := range metrics {
				fmt.Printf("  - %s\n", m)
			}

			return nil
		},
	}

	return cmd
}

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [import_id]",
		Short: "Delete an archived import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid import ID: %w", err)
			}

			database, err := db.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := database.DeleteImport(id); err != nil {
				return err
			}

			color.Green("Deleted import #%d", id)
			return nil
		},
	}

	return cmd
}

func serveCmd() *cobra.Command {
	var src sourceFlags
	var port int
	var open bool

	cmd := &cobra.Command{
		Use:   "serve [emf_log]",
		Short: "Serve a JSON view of one result set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := src.loadRows(args)
			if err != nil {
				return err
			}

			snapshot := web.Snapshot{
				Groups:     explore.GroupRows(log.Rows, log.Dimensions),
				Dimensions: log.Dimensions,
			}

			addr := fmt.Sprintf(":%d", port)
			server := web.NewServer(snapshot, addr)
			return server.Start(open)
		},
	}

	src.register(cmd)
	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	cmd.Flags().BoolVar(&open, "open", false, "open browser automatically")

	return cmd
}
