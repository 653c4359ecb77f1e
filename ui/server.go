package ui

import (
	"log"
	"sync"

	"github.com/gin-gonic/gin"

	"geocausal/app"
	"geocausal/domain/causal"
	"geocausal/domain/panel"
	"geocausal/ports"
)

// Server is the dashboard data server. It exposes the core as plain JSON:
// the indicator catalog for selectors, year/country row subsets for the map
// and trend charts, the precomputed model table, and on-demand estimation.
// Rendering stays with the external presentation layer.
type Server struct {
	router     *gin.Engine
	source     ports.PanelSource
	estimation *app.EstimationService
	reports    *app.ReportService
	store      ports.ResultStore // optional audit trail, may be nil

	// Session state: the loaded panel and the precomputed tables. A new
	// upload replaces the panel wholesale; precomputed tables are loaded
	// once and never mutated.
	mu         sync.RWMutex
	panel      *panel.Panel
	modelTable []causal.ModelRow
	cateRows   []causal.CATERow
}

// NewServer creates the server and registers its routes.
func NewServer(source ports.PanelSource, estimation *app.EstimationService, reports *app.ReportService, store ports.ResultStore) *Server {
	s := &Server{
		router:     gin.Default(),
		source:     source,
		estimation: estimation,
		reports:    reports,
		store:      store,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/catalog", s.handleCatalog)
		api.GET("/map", s.handleMap)
		api.GET("/trends", s.handleTrends)
		api.GET("/models", s.handleModels)
		api.GET("/cate", s.handleCATE)
		api.POST("/estimate", s.handleEstimate)
		api.GET("/runs/:id", s.handleRun)
		api.POST("/upload", s.handleUpload)
	}
}

// LoadPanel loads the session panel from a file path.
func (s *Server) LoadPanel(path string) error {
	p, err := s.source.ReadPanel(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.panel = p
	s.mu.Unlock()
	log.Printf("[Server] panel loaded from %s (%d rows)", path, len(p.Rows))
	return nil
}

// SetModelTable installs the precomputed model-result table.
func (s *Server) SetModelTable(rows []causal.ModelRow) {
	s.mu.Lock()
	s.modelTable = rows
	s.mu.Unlock()
}

// SetCATERows installs the precomputed conditional-effect table.
func (s *Server) SetCATERows(rows []causal.CATERow) {
	s.mu.Lock()
	s.cateRows = rows
	s.mu.Unlock()
}

// Start runs the server on the given address, blocking.
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) currentPanel() *panel.Panel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panel
}
