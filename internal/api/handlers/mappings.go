package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coinlens/coinlens-go/internal/database"
	"github.com/coinlens/coinlens-go/internal/services"
	"github.com/coinlens/coinlens-go/internal/utils"
)

// MappingsHandler exposes asset reconciliation over HTTP.
type MappingsHandler struct {
	reconciliation *services.ReconciliationService
}

// NewMappingsHandler creates a mappings handler.
func NewMappingsHandler(reconciliation *services.ReconciliationService) *MappingsHandler {
	return &MappingsHandler{reconciliation: reconciliation}
}

// Generate runs automatic symbol reconciliation across all active
// assets and returns a report of what was linked.
func (h *MappingsHandler) Generate(c *gin.Context) {
	report, err := h.reconciliation.GenerateMappings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

type manualMappingRequest struct {
	AssetID          int64  `json:"asset_id" binding:"required"`
	NormalizedSymbol string `json:"normalized_symbol" binding:"required"`
}

// CreateManual links one platform asset to a unified asset by operator
// decision. Manual mappings are never overwritten by automatic runs.
func (h *MappingsHandler) CreateManual(c *gin.Context) {
	var req manualMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	mapping, err := h.reconciliation.CreateManualMapping(c.Request.Context(), req.AssetID, req.NormalizedSymbol)
	if err != nil {
		var validationErr *utils.ValidationError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		case errors.Is(err, database.ErrAssetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, mapping)
}

// List returns all mappings with their platform asset context.
func (h *MappingsHandler) List(c *gin.Context) {
	mappings, err := h.reconciliation.ListMappings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings, "count": len(mappings)})
}
