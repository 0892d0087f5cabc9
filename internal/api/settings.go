package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetSettings GET /api/settings
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.store.AllSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// PutSetting PUT /api/settings/:key {"value": "..."}
func (h *Handler) PutSetting(c *gin.Context) {
	var body struct {
		Value *string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.SetSetting(c.Request.Context(), c.Param("key"), *body.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{c.Param("key"): *body.Value})
}
