package ui

import (
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"geocausal/domain/causal"
	"geocausal/domain/core"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCatalog returns everything the selectors need in one call:
// the indicator catalog, the country and year ranges, and the
// supported estimators.
func (s *Server) handleCatalog(c *gin.Context) {
	p := s.currentPanel()
	if p == nil {
		s.writeError(c, core.ErrSourceNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source":     p.Source,
		"indicators": p.Indicators(),
		"countries":  p.Countries(),
		"years":      p.Years(),
		"estimators": causal.Kinds(),
	})
}

// handleMap returns one value per country for a single year and variable,
// the shape a choropleth layer consumes. Countries missing the variable
// in that year are omitted rather than sent as nulls.
func (s *Server) handleMap(c *gin.Context) {
	p := s.currentPanel()
	if p == nil {
		s.writeError(c, core.ErrSourceNotFound)
		return
	}
	variable := c.Query("variable")
	if !p.HasIndicator(variable) {
		s.writeError(c, core.ErrUnknownVariable)
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		s.writeError(c, core.NewValidationError("year", "must be an integer"))
		return
	}

	type mapPoint struct {
		Country string  `json:"country"`
		Value   float64 `json:"value"`
	}
	points := make([]mapPoint, 0)
	for _, row := range p.FilterYear(year) {
		v, ok := row.Values[variable]
		if !ok || math.IsNaN(v) {
			continue
		}
		points = append(points, mapPoint{Country: row.Country, Value: v})
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "variable": variable, "rows": points})
}

// handleTrends returns per-variable time series for one country. The
// vars parameter is comma-separated; gaps stay as nulls so the chart
// can break the line instead of interpolating.
func (s *Server) handleTrends(c *gin.Context) {
	p := s.currentPanel()
	if p == nil {
		s.writeError(c, core.ErrSourceNotFound)
		return
	}
	country := c.Query("country")
	rows := p.FilterCountry(country)
	if len(rows) == 0 {
		s.writeError(c, core.NewValidationError("country", "no observations"))
		return
	}
	var vars []string
	for _, v := range strings.Split(c.Query("vars"), ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !p.HasIndicator(v) {
			s.writeError(c, core.ErrUnknownVariable)
			return
		}
		vars = append(vars, v)
	}
	if len(vars) == 0 {
		s.writeError(c, core.NewValidationError("vars", "at least one variable required"))
		return
	}

	years := make([]int, 0, len(rows))
	series := make(map[string][]*float64, len(vars))
	for _, row := range rows {
		years = append(years, row.Year)
		for _, v := range vars {
			val, ok := row.Values[v]
			if !ok || math.IsNaN(val) {
				series[v] = append(series[v], nil)
				continue
			}
			vv := val
			series[v] = append(series[v], &vv)
		}
	}
	c.JSON(http.StatusOK, gin.H{"country": country, "years": years, "series": series})
}

// handleModels serves the precomputed model-comparison table together
// with the selected best model and a rendered interpretation.
func (s *Server) handleModels(c *gin.Context) {
	s.mu.RLock()
	rows := s.modelTable
	s.mu.RUnlock()

	best, err := s.reports.BestModel(rows)
	if err != nil {
		s.writeError(c, err)
		return
	}
	reportHTML, err := s.reports.RenderReportHTML(rows)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rows":        rows,
		"best":        best,
		"report_html": reportHTML,
	})
}

// handleCATE serves the precomputed conditional-effect rows plus their
// descriptive summary.
func (s *Server) handleCATE(c *gin.Context) {
	s.mu.RLock()
	rows := s.cateRows
	s.mu.RUnlock()

	values := make([]float64, len(rows))
	for i, r := range rows {
		values[i] = r.CATE
	}
	summary, err := s.reports.CATESummarize(values)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "rows": rows})
}

// handleEstimate runs one estimation against the session panel and
// returns both the raw result and its display summary.
func (s *Server) handleEstimate(c *gin.Context) {
	p := s.currentPanel()
	if p == nil {
		s.writeError(c, core.ErrSourceNotFound)
		return
	}
	var req causal.EstimationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, core.NewValidationError("body", "malformed request"))
		return
	}

	res, err := s.estimation.Estimate(c.Request.Context(), p, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if s.store != nil {
		if err := s.store.RecordRun(c.Request.Context(), req, res); err != nil {
			log.Printf("[Server] run audit failed: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"result":  res,
		"summary": s.reports.Summarize(res),
	})
}

// handleRun returns a previously recorded estimation from the audit
// trail. Only available when a result store is configured.
func (s *Server) handleRun(c *gin.Context) {
	if s.store == nil {
		s.writeError(c, core.ErrEmptyTable)
		return
	}
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		s.writeError(c, core.NewValidationError("id", err.Error()))
		return
	}
	res, err := s.store.LoadRun(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":  res,
		"summary": s.reports.Summarize(res),
	})
}

// handleUpload replaces the session panel with an uploaded spreadsheet.
func (s *Server) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, core.NewValidationError("file", "missing upload"))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		s.writeError(c, core.NewLoadError(fileHeader.Filename, err))
		return
	}
	defer f.Close()

	p, err := s.source.ReadPanelFrom(f, fileHeader.Filename)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.mu.Lock()
	s.panel = p
	s.mu.Unlock()
	log.Printf("[Server] panel replaced from upload %s (%d rows)", fileHeader.Filename, len(p.Rows))

	c.JSON(http.StatusOK, gin.H{
		"source":     p.Source,
		"rows":       len(p.Rows),
		"indicators": p.Indicators(),
	})
}

// writeError maps domain errors onto the JSON error envelope. Nothing at
// this boundary is allowed to crash the process.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	switch {
	case core.IsValidationError(err):
		status = http.StatusBadRequest
		code = "INVALID_REQUEST"
	case core.IsLoadError(err):
		status = http.StatusBadRequest
		code = "LOAD_FAILED"
	case core.IsInsufficientData(err):
		status = http.StatusUnprocessableEntity
		code = "INSUFFICIENT_DATA"
	case core.IsEstimationError(err):
		status = http.StatusUnprocessableEntity
		code = "ESTIMATION_FAILED"
	case errors.Is(err, core.ErrEmptyTable):
		status = http.StatusNotFound
		code = "EMPTY_TABLE"
	}
	if status == http.StatusInternalServerError {
		log.Printf("[Server] internal error: %v", err)
	}
	c.JSON(status, gin.H{"code": code, "error": err.Error()})
}
