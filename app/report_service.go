package app

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"geocausal/domain/causal"
	"geocausal/domain/core"
)

// ReportService turns estimator output and precomputed result tables into
// display-ready summaries. Every operation is a pure transform; nothing here
// holds state.
type ReportService struct{}

// NewReportService creates the service.
func NewReportService() *ReportService {
	return &ReportService{}
}

// Summary is the display form of one estimation result: ATE and interval
// formatted to 4 decimals, the way the dashboard metric shows them.
type Summary struct {
	Estimator  string `json:"estimator"`
	ATE        string `json:"ate"`
	Interval   string `json:"interval"`
	SampleSize int    `json:"sample_size"`
}

// CATESummary is the descriptive-statistics view of a conditional effect
// sequence.
type CATESummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// BestModel selects the result-table row with the largest absolute ATE.
// Ties keep the first row, which makes repeated calls on the same table
// return the same row.
func (s *ReportService) BestModel(rows []causal.ModelRow) (causal.ModelRow, error) {
	if len(rows) == 0 {
		return causal.ModelRow{}, core.ErrEmptyTable
	}
	best := rows[0]
	for _, row := range rows[1:] {
		if math.Abs(row.ATE) > math.Abs(best.ATE) {
			best = row
		}
	}
	return best, nil
}

// Summarize formats an estimation result for display. Interval bounds are
// printed exactly as reported, never reordered.
func (s *ReportService) Summarize(res *causal.EstimationResult) Summary {
	return Summary{
		Estimator:  string(res.Kind),
		ATE:        fmt.Sprintf("%.4f", res.ATE),
		Interval:   fmt.Sprintf("95%% CI: [%.4f, %.4f]", res.CILow, res.CIHigh),
		SampleSize: res.SampleSize,
	}
}

// CATESummarize computes count, mean and standard deviation over a
// conditional-effect sequence. An empty sequence has no defined deviation
// and fails with the empty-table error.
func (s *ReportService) CATESummarize(values []float64) (CATESummary, error) {
	if len(values) == 0 {
		return CATESummary{}, fmt.Errorf("%w: empty conditional effect sequence", core.ErrEmptyTable)
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return CATESummary{}, err
	}
	sd, err := stats.StandardDeviation(values)
	if err != nil {
		return CATESummary{}, err
	}
	return CATESummary{Count: len(values), Mean: mean, StdDev: sd}, nil
}

// RenderReport builds a markdown report over a result table: the table
// itself plus a best-model interpretation line.
func (s *ReportService) RenderReport(rows []causal.ModelRow) (string, error) {
	best, err := s.BestModel(rows)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("## Causal Machine Learning Results\n\n")
	b.WriteString("| Model | ATE | CI_low | CI_high | abs_ATE |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %.4f | %.4f | %.4f | %.4f |\n",
			row.Model, row.ATE, row.CILow, row.CIHigh, row.AbsATE)
	}
	fmt.Fprintf(&b, "\n**%s** shows the strongest effect: ATE %.4f (95%% CI: [%.4f, %.4f]).\n",
		best.Model, best.ATE, best.CILow, best.CIHigh)
	b.WriteString("\nEffects were estimated offline with causal machine learning and imported into the dashboard.\n")
	return b.String(), nil
}

// RenderReportHTML renders the markdown report to HTML for the dashboard.
func (s *ReportService) RenderReportHTML(rows []causal.ModelRow) (string, error) {
	md, err := s.RenderReport(rows)
	if err != nil {
		return "", err
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.ToHTML([]byte(md), p, renderer)), nil
}
