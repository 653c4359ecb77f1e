package ui

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"geocausal/app"
	"geocausal/domain/causal"
)

// ReportApp is a small read-only companion server. Where Server feeds an
// interactive dashboard, ReportApp publishes the fixed model-comparison
// report as a browsable page, for sharing without the full stack running.
type ReportApp struct {
	router  *chi.Mux
	reports *app.ReportService
	rows    []causal.ModelRow
	cate    []causal.CATERow
}

// NewReportApp builds the report server over a fixed result table.
func NewReportApp(reports *app.ReportService, rows []causal.ModelRow, cate []causal.CATERow) *ReportApp {
	a := &ReportApp{
		router:  chi.NewRouter(),
		reports: reports,
		rows:    rows,
		cate:    cate,
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

func (a *ReportApp) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *ReportApp) setupRoutes() {
	a.router.Get("/", a.handleReportPage)
	a.router.Get("/report.md", a.handleReportMarkdown)
	a.router.Get("/report.json", a.handleReportJSON)
}

// Start starts the HTTP server on the given address, blocking.
func (a *ReportApp) Start(addr string) error {
	log.Printf("Starting report server on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

func (a *ReportApp) handleReportPage(w http.ResponseWriter, r *http.Request) {
	body, err := a.reports.RenderReportHTML(a.rows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><html><head><title>Model Results</title></head><body>%s</body></html>", body)
}

func (a *ReportApp) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	report, err := a.reports.RenderReport(a.rows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	fmt.Fprint(w, report)
}

func (a *ReportApp) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	best, err := a.reports.BestModel(a.rows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	payload := map[string]any{
		"rows": a.rows,
		"best": best,
	}
	if len(a.cate) > 0 {
		values := make([]float64, len(a.cate))
		for i, row := range a.cate {
			values[i] = row.CATE
		}
		if summary, err := a.reports.CATESummarize(values); err == nil {
			payload["cate_summary"] = summary
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("report encode error: %v", err)
	}
}
