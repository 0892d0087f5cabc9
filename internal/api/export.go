package api

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"drivers/internal/exporter"
)

// ExportEntity downloads an entity table as xlsx
// GET /api/export/:entity
func (h *Handler) ExportEntity(c *gin.Context) {
	entity := c.Param("entity")
	f, err := exporter.NewExporter(h.store).Export(c.Request.Context(), entity, nil)
	if err != nil {
		storeError(c, err)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", buildExportContentDisposition(entity, time.Now()))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func buildExportContentDisposition(entity string, now time.Time) string {
	name := fmt.Sprintf("%s-%s.xlsx", entity, now.Format("20060102"))
	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", name, url.PathEscape(name))
}
