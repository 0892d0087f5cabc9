package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"drivers/internal/model"
	"drivers/internal/parser"
	"drivers/internal/store"
)

// ListEntities GET /api/:entity?q=&limit=&offset=
func (h *Handler) ListEntities(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, total, err := h.store.List(c.Request.Context(), c.Param("entity"), store.ListOptions{
		Query:  c.Query("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// CreateEntity POST /api/:entity
func (h *Handler) CreateEntity(c *gin.Context) {
	entity := c.Param("entity")
	var body model.Record
	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := normalizeEntity(entity, body, true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	id, err := h.store.Create(ctx, entity, body)
	if err != nil {
		storeError(c, err)
		return
	}
	rec, err := h.store.Get(ctx, entity, id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// GetEntity GET /api/:entity/:id
func (h *Handler) GetEntity(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	rec, err := h.store.Get(c.Request.Context(), c.Param("entity"), id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// UpdateEntity PATCH /api/:entity/:id
func (h *Handler) UpdateEntity(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	entity := c.Param("entity")
	var patch model.Record
	if err := c.BindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := normalizeEntity(entity, patch, false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.Update(ctx, entity, id, patch); err != nil {
		storeError(c, err)
		return
	}
	rec, err := h.store.Get(ctx, entity, id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteEntity DELETE /api/:entity/:id
func (h *Handler) DeleteEntity(c *gin.Context) {
	id, ok := entityID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), c.Param("entity"), id); err != nil {
		storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func entityID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// normalizeEntity checks natural keys and canonicalizes plates
func normalizeEntity(entity string, rec model.Record, create bool) error {
	switch entity {
	case "drivers", "rounds":
		if _, ok := rec["name"]; ok || create {
			if name, _ := rec["name"].(string); name == "" {
				return fmt.Errorf("name is required")
			}
		}
	case "vehicles", "alerts":
		raw, ok := rec["plateNumber"]
		if !ok && !create {
			return nil
		}
		s, _ := raw.(string)
		plate, err := parser.ValidatePlateNumber(s)
		if err != nil {
			return fmt.Errorf("plateNumber: %w", err)
		}
		rec["plateNumber"] = plate
	}
	return nil
}
