package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"drivers/internal/api"
	"drivers/internal/config"
	"drivers/internal/parser"
	"drivers/internal/store"
)

// Server HTTP server
type Server struct {
	router *gin.Engine
	store  *store.Store
	api    *api.Handler
	http   *http.Server
}

// NewServer opens the store under the data directory and wires the API
func NewServer(cfg *config.AppConfig, baseDir string, logger *log.Logger) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir, err := config.EnsureDataDir(cfg, baseDir)
	if err != nil {
		return nil, err
	}
	sqliteStore, err := store.New(config.DBPath(cfg, baseDir))
	if err != nil {
		return nil, err
	}

	pipeline := parser.New(logger, cfg.Import.TemplateProfile)
	handler := api.NewHandler(sqliteStore, pipeline, api.Options{
		UploadDir:     config.GetDataPath(cfg, baseDir, "uploads", ""),
		ReferenceYear: cfg.Import.ReferenceYear,
		CreateMissing: cfg.Import.CreateMissing,
		Logger:        logger,
	})
	logger.Printf("data directory: %s", dataDir)

	s := &Server{
		router: gin.Default(),
		store:  sqliteStore,
		api:    handler,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes sets up routes
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	s.api.RegisterRoutes(s.router.Group("/api"))

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

// Handler the HTTP handler (tests)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown
func (s *Server) Run(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and closes the store
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	return errors.Join(err, s.store.Close())
}

// GetStore returns the store (tests)
func (s *Server) GetStore() *store.Store {
	return s.store
}
