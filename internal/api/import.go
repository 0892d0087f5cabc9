package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"drivers/internal/importer"
	"drivers/internal/model"
	"drivers/internal/parser"
)

// importOptions reads the import form fields shared by import and preview
func (h *Handler) importOptions(c *gin.Context) (importer.ImportOptions, error) {
	opts := importer.ImportOptions{
		Sheet:         strings.TrimSpace(c.PostForm("sheet")),
		Table:         strings.TrimSpace(c.PostForm("table")),
		Year:          h.opts.ReferenceYear,
		DryRun:        c.PostForm("dryRun") == "true",
		CreateMissing: c.DefaultPostForm("createMissing", strconv.FormatBool(h.opts.CreateMissing)) == "true",
	}

	kind, err := model.ParseImportKind(c.PostForm("kind"))
	if err != nil {
		return opts, err
	}
	opts.Kind = kind

	if v := c.PostForm("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid year %q", v)
		}
		opts.Year = year
	}
	if v := c.PostForm("headerRow"); v != "" {
		row, err := strconv.Atoi(v)
		if err != nil || row < 0 {
			return opts, fmt.Errorf("invalid headerRow %q", v)
		}
		opts.Generic.HeaderRow = row
	}
	opts.Generic.Targets = splitList(c.PostForm("targets"))
	opts.Generic.Required = splitList(c.PostForm("required"))
	return opts, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Import imports an uploaded workbook (SSE progress stream)
// POST /api/import
func (h *Handler) Import(c *gin.Context) {
	uploadedFile, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing upload field \"file\""})
		return
	}
	opts, err := h.importOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tempFilePath := filepath.Join(h.opts.UploadDir,
		fmt.Sprintf("drivers_import_%d_%s", time.Now().UnixNano(), filepath.Base(uploadedFile.Filename)))
	if err := c.SaveUploadedFile(uploadedFile, tempFilePath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save upload"})
		return
	}
	defer os.Remove(tempFilePath)

	opts.FilePath = tempFilePath
	opts.Filename = filepath.Base(uploadedFile.Filename)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for event := range h.coordinator.Import(opts) {
		eventData, err := json.Marshal(event)
		if err != nil {
			h.logger.Printf("encode progress event: %v", err)
			continue
		}
		// SSE: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

// PreviewImport parses an uploaded workbook without storing anything
// POST /api/import/preview
func (h *Handler) PreviewImport(c *gin.Context) {
	uploadedFile, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing upload field \"file\""})
		return
	}
	opts, err := h.importOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := uploadedFile.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	wb, err := parser.OpenWorkbookReader(f, uploadedFile.Filename)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	defer wb.Close()

	result, err := h.pipeline.ParseWorkbook(c.Request.Context(), wb, opts.Kind, parser.Options{
		Sheet:   opts.Sheet,
		Year:    opts.Year,
		Generic: opts.Generic,
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListImports latest import runs
// GET /api/imports?limit=
func (h *Handler) ListImports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.store.ListImportLogs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs, "total": len(logs)})
}

// GetImport one import run with its sheets
// GET /api/imports/:id
func (h *Handler) GetImport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	ctx := c.Request.Context()
	entry, err := h.store.GetImportLog(ctx, id)
	if err != nil {
		storeError(c, err)
		return
	}
	sheets, err := h.store.ListSheetMeta(ctx, id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"import": entry, "sheets": sheets})
}
