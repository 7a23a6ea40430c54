package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/docvault/docvault/internal/document"
	"github.com/docvault/docvault/internal/document/service"
	"github.com/docvault/docvault/internal/storage"
	"github.com/docvault/docvault/pkg/middleware"
)

// DocumentHandler exposes the document store over HTTP. All routes sit behind
// the auth middleware; the service re-checks authorization on every call.
type DocumentHandler struct {
	svc   *service.Service
	store storage.ContentStore
}

func NewDocumentHandler(svc *service.Service, store storage.ContentStore) *DocumentHandler {
	return &DocumentHandler{svc: svc, store: store}
}

// Register routes under /documents
func (h *DocumentHandler) Register(rg *gin.RouterGroup) {
	d := rg.Group("/documents")
	d.POST("", h.Upload)
	d.GET("", h.List)
	d.GET("/:id", h.Get)
	d.GET("/:id/download", h.Download)
	d.PATCH("/:id", h.Update)
	d.DELETE("/:id", h.Delete)
}

// Upload accepts a multipart form with a `file` part and optional title,
// description and metadata fields. Title defaults to the file name.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}
	defer f.Close()

	title := c.PostForm("title")
	if title == "" {
		title = fh.Filename
	}
	var metadata map[string]interface{}
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "metadata must be a JSON object"})
			return
		}
	}

	in := service.CreateInput{
		Title:       title,
		Description: c.PostForm("description"),
		FileName:    fh.Filename,
		MimeType:    fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Metadata:    metadata,
	}
	doc, err := h.svc.Create(c.Request.Context(), middleware.Actor(c), in, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// List returns documents visible to the caller with search, status filter,
// sorting and pagination.
func (h *DocumentHandler) List(c *gin.Context) {
	q := document.Query{
		Search:    c.Query("search"),
		Status:    document.Status(c.Query("status")),
		CreatedBy: c.Query("createdBy"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      atoiDefault(c.Query("page"), 1),
		Limit:     atoiDefault(c.Query("limit"), 10),
	}
	docs, total, err := h.svc.List(c.Request.Context(), q, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listEnvelope{Data: docs, Total: total, Page: q.Page, Limit: q.Limit})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Download streams the stored content. Authorization follows Get.
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	rc, size, err := h.store.Read(c.Request.Context(), doc.ContentRef)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "content unavailable"})
		return
	}
	defer rc.Close()
	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.DataFromReader(http.StatusOK, size, doc.MimeType, rc, nil)
}

func (h *DocumentHandler) Update(c *gin.Context) {
	var p document.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.svc.Update(c.Request.Context(), c.Param("id"), p, middleware.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.Actor(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1 // rejected downstream as invalid
	}
	return n
}
