package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"geocausal/adapters/causal"
	"geocausal/adapters/excel"
	"geocausal/app"
	domaincausal "geocausal/domain/causal"
	"geocausal/ui"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "geocausal-cli",
		Short: "Geocausal CLI for panel inspection and effect estimation",
	}

	rootCmd.AddCommand(
		newCatalogCmd(),
		newEstimateCmd(),
		newReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog [panel-file]",
		Short: "List the indicators, countries and years of a panel",
		Long: `Load a country-year panel from xlsx or CSV and print its catalog.

Example: geocausal-cli catalog data.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(args[0])
		},
	}
	return cmd
}

func newEstimateCmd() *cobra.Command {
	var (
		treatment  string
		controls   []string
		estimator  string
		seed       int64
		minSample  int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "estimate [panel-file] [outcome]",
		Short: "Estimate the effect of a treatment on an outcome",
		Long: `Run a causal estimator on a country-year panel.

Rows with a missing value in any requested column are dropped before
fitting; the run fails if fewer rows remain than the minimum sample size.

Example: geocausal-cli estimate data.xlsx co2_emissions --treatment gdp_per_capita --controls population,urbanization --estimator LinearDML`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domaincausal.EstimationRequest{
				Outcome:   args[1],
				Treatment: treatment,
				Controls:  splitControls(controls),
				Kind:      domaincausal.EstimatorKind(estimator),
			}
			return runEstimate(cmd.Context(), args[0], req, seed, minSample, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&treatment, "treatment", "", "Treatment column (required)")
	cmd.Flags().StringSliceVar(&controls, "controls", nil, "Control columns, comma-separated")
	cmd.Flags().StringVar(&estimator, "estimator", string(domaincausal.LinearDML), "Estimator: LinearDML|DRLearner|CausalForestDML")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic runs")
	cmd.Flags().IntVar(&minSample, "min-sample", app.DefaultMinSampleSize, "Minimum retained rows required to fit")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw result as JSON")
	_ = cmd.MarkFlagRequired("treatment")

	return cmd
}

func newReportCmd() *cobra.Command {
	var cateFile string
	var serveAddr string

	cmd := &cobra.Command{
		Use:   "report [results-file]",
		Short: "Summarize a precomputed model-result table",
		Long: `Load a model-comparison table (xlsx or CSV) and print the report
with the best model by absolute ATE. With --serve, publish the report as a
browsable page instead of printing it.

Example: geocausal-cli report causal_results.xlsx --cate cate.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(args[0], cateFile, serveAddr)
		},
	}

	cmd.Flags().StringVar(&cateFile, "cate", "", "Optional conditional-effect table to summarize")
	cmd.Flags().StringVar(&serveAddr, "serve", "", "Serve the report over HTTP on this address instead of printing")

	return cmd
}

func runCatalog(path string) error {
	reader := excel.NewPanelReader()
	p, err := reader.ReadPanel(path)
	if err != nil {
		return fmt.Errorf("failed to load panel: %w", err)
	}

	fmt.Printf("Panel: %s (%d rows)\n", p.Source, len(p.Rows))

	indicators := p.Indicators()
	fmt.Printf("\nIndicators (%d):\n", len(indicators))
	for i, name := range indicators {
		fmt.Printf("%d. %s\n", i+1, name)
	}

	countries := p.Countries()
	fmt.Printf("\nCountries (%d): %s\n", len(countries), strings.Join(countries, ", "))

	years := p.Years()
	if len(years) > 0 {
		fmt.Printf("Years: %d-%d\n", years[0], years[len(years)-1])
	}
	return nil
}

func runEstimate(ctx context.Context, path string, req domaincausal.EstimationRequest, seed int64, minSample int, jsonOutput bool) error {
	reader := excel.NewPanelReader()
	p, err := reader.ReadPanel(path)
	if err != nil {
		return fmt.Errorf("failed to load panel: %w", err)
	}

	cfg := causal.DefaultEstimatorConfig()
	cfg.Seed = seed
	engine := causal.NewEngine(cfg)
	svc := app.NewEstimationService(engine, minSample, app.DefaultFitTimeout)

	res, err := svc.Estimate(ctx, p, req)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	reports := app.NewReportService()
	summary := reports.Summarize(res)

	fmt.Printf("\n=== ESTIMATION RESULT ===\n")
	fmt.Printf("Run ID: %s\n", res.RunID)
	fmt.Printf("Estimator: %s\n", summary.Estimator)
	fmt.Printf("ATE: %s\n", summary.ATE)
	fmt.Printf("%s\n", summary.Interval)
	fmt.Printf("Sample Size: %d\n", summary.SampleSize)
	if len(res.Warnings) > 0 {
		fmt.Printf("Warnings: %s\n", strings.Join(res.Warnings, ", "))
	}

	if res.HasCATE() {
		cateSummary, err := reports.CATESummarize(res.CATE)
		if err != nil {
			return err
		}
		fmt.Printf("\n=== CONDITIONAL EFFECTS ===\n")
		fmt.Printf("Count: %d\n", cateSummary.Count)
		fmt.Printf("Mean: %.4f\n", cateSummary.Mean)
		fmt.Printf("Std Dev: %.4f\n", cateSummary.StdDev)
	}
	return nil
}

func runReport(resultsPath, catePath, serveAddr string) error {
	rows, err := excel.ReadModelTable(resultsPath)
	if err != nil {
		return fmt.Errorf("failed to load result table: %w", err)
	}

	var cateRows []domaincausal.CATERow
	if catePath != "" {
		cateRows, err = excel.ReadCATETable(catePath)
		if err != nil {
			return fmt.Errorf("failed to load conditional-effect table: %w", err)
		}
	}

	reports := app.NewReportService()
	if serveAddr != "" {
		return ui.NewReportApp(reports, rows, cateRows).Start(serveAddr)
	}

	report, err := reports.RenderReport(rows)
	if err != nil {
		return err
	}
	fmt.Print(report)

	if len(cateRows) > 0 {
		values := make([]float64, len(cateRows))
		for i, row := range cateRows {
			values[i] = row.CATE
		}
		summary, err := reports.CATESummarize(values)
		if err != nil {
			return err
		}
		fmt.Printf("\nConditional effects: count=%d mean=%.4f stddev=%.4f\n",
			summary.Count, summary.Mean, summary.StdDev)
	}
	return nil
}

func splitControls(raw []string) []string {
	var out []string
	for _, chunk := range raw {
		for _, c := range strings.Split(chunk, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}
