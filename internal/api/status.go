package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"drivers/internal/model"
)

// StatusResponse system status
type StatusResponse struct {
	Initialized bool             `json:"initialized"` // any entity or imported row stored
	Counts      map[string]int   `json:"counts"`
	LastImport  *model.ImportLog `json:"lastImport,omitempty"`
}

// GetStatus system status
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	counts, err := h.store.Counts(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := StatusResponse{Counts: counts}
	for table, n := range counts {
		if table != "import_logs" && n > 0 {
			resp.Initialized = true
		}
	}
	logs, err := h.store.ListImportLogs(ctx, 1)
	if err == nil && len(logs) > 0 {
		resp.LastImport = &logs[0]
	}
	c.JSON(http.StatusOK, resp)
}
