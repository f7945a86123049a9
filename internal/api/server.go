package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"biascope/app"
)

// Server exposes the bias engine over JSON HTTP.
type Server struct {
	router  *gin.Engine
	handler *BiasHandler
}

// Config holds API server configuration
type Config struct {
	Port    string
	GinMode string
}

// NewServer creates a new API server instance
func NewServer(config Config, service *app.BiasService, defaults EvaluationDefaults) *Server {
	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	}
	server := &Server{
		router:  gin.New(),
		handler: NewBiasHandler(service, defaults),
	}
	server.router.Use(gin.Logger(), gin.Recovery())
	server.setupRoutes()
	return server
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.POST("/cohorts", s.handler.CreateCohort)
		api.GET("/cohorts", s.handler.ListCohorts)
		api.GET("/cohorts/:id", s.handler.GetCohort)
		api.GET("/cohorts/:id/stats", s.handler.GetCohortStats)

		api.POST("/reports", s.handler.EvaluateBias)
		api.POST("/reports/compare", s.handler.CompareCohorts)

		api.GET("/metrics", s.handler.ListMetrics)
		api.GET("/variables", s.handler.ListVariables)
	}
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server on the configured port.
func (s *Server) Run(port string) error {
	return s.router.Run(":" + port)
}
