package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"drivers/internal/importer"
	"drivers/internal/parser"
	"drivers/internal/store"
)

// Options handler settings
type Options struct {
	UploadDir     string // uploaded workbooks are kept here while imported; os.TempDir() when empty
	ReferenceYear int    // default year of import runs
	CreateMissing bool   // default of the createMissing form field
	Logger        *log.Logger
}

// Handler API handler
type Handler struct {
	store       *store.Store
	pipeline    *parser.Pipeline
	coordinator *importer.Coordinator
	opts        Options
	logger      *log.Logger
}

// NewHandler creates the API handler
func NewHandler(st *store.Store, pipeline *parser.Pipeline, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	return &Handler{
		store:       st,
		pipeline:    pipeline,
		coordinator: importer.NewCoordinator(st, pipeline, logger),
		opts:        opts,
		logger:      logger,
	}
}

// RegisterRoutes registers the API routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)

	// imports
	router.POST("/import", h.Import)
	router.POST("/import/preview", h.PreviewImport)
	router.GET("/imports", h.ListImports)
	router.GET("/imports/:id", h.GetImport)

	router.GET("/settings", h.GetSettings)
	router.PUT("/settings/:key", h.PutSetting)

	router.GET("/export/:entity", h.ExportEntity)

	// drivers, vehicles, rounds, alerts, assignments
	router.GET("/:entity", h.ListEntities)
	router.POST("/:entity", h.CreateEntity)
	router.GET("/:entity/:id", h.GetEntity)
	router.PATCH("/:entity/:id", h.UpdateEntity)
	router.DELETE("/:entity/:id", h.DeleteEntity)
}

// storeError maps store errors to HTTP responses
func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrUnknownEntity), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNoFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
