package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docvault/docvault/internal/ingestion"
	"github.com/docvault/docvault/internal/ingestion/engine"
	"github.com/docvault/docvault/pkg/middleware"
)

// IngestionHandler exposes the ingestion engine over HTTP.
type IngestionHandler struct {
	engine *engine.Engine
}

func NewIngestionHandler(e *engine.Engine) *IngestionHandler {
	return &IngestionHandler{engine: e}
}

// Register routes under /ingestion
func (h *IngestionHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/ingestion")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/cancel", h.Cancel)
}

// CreateIngestionRequest triggers a new ingestion run for a document.
type CreateIngestionRequest struct {
	DocumentID    string                 `json:"documentId" binding:"required"`
	Configuration map[string]interface{} `json:"configuration"`
}

// Create starts an ingestion process and returns it in Pending state; the
// worker runs after the response is sent.
func (h *IngestionHandler) Create(c *gin.Context) {
	var req CreateIngestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.engine.Create(c.Request.Context(), req.DocumentID, req.Configuration, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *IngestionHandler) List(c *gin.Context) {
	q := ingestion.Query{
		DocumentID: c.Query("documentId"),
		Status:     ingestion.Status(c.Query("status")),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
		Page:       atoiDefault(c.Query("page"), 1),
		Limit:      atoiDefault(c.Query("limit"), 10),
	}
	procs, total, err := h.engine.FindAll(c.Request.Context(), q, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Data: procs, Total: total, Page: q.Page, Limit: q.Limit})
}

func (h *IngestionHandler) Get(c *gin.Context) {
	p, err := h.engine.FindByID(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Cancel drives an active process to Failed with the cancellation message.
// Cancelling a terminal process is a conflict.
func (h *IngestionHandler) Cancel(c *gin.Context) {
	p, err := h.engine.Cancel(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
