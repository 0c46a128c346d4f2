package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/artifact"
	"github.com/fleveque/course-service/internal/service"
)

// DocumentHandler serves the course documents: generation streams, reads
// and exports.
type DocumentHandler struct {
	svc    *service.CourseService
	logger *zap.Logger
}

func NewDocumentHandler(svc *service.CourseService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{svc: svc, logger: logger}
}

type createRequest struct {
	Title string `json:"title" binding:"required"`
}

type updateRequest struct {
	Instruction string `json:"instruction" binding:"required"`
}

// Create generates a new document.
// Route: POST /api/v1/documents (text/event-stream)
func (h *DocumentHandler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	stream := newEventStream(c, h.logger)
	_, err := h.svc.Create(c.Request.Context(), req.Title, stream.emit)
	stream.finish(err)
}

// Update applies a follow-up instruction to a document.
// Route: POST /api/v1/documents/:id/update (text/event-stream)
func (h *DocumentHandler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instruction is required"})
		return
	}

	stream := newEventStream(c, h.logger)
	stream.finish(h.svc.Update(c.Request.Context(), c.Param("id"), req.Instruction, stream.emit))
}

// Suggestions streams improvement suggestions.
// Route: POST /api/v1/documents/:id/suggestions (text/event-stream)
func (h *DocumentHandler) Suggestions(c *gin.Context) {
	stream := newEventStream(c, h.logger)
	stream.finish(h.svc.Suggest(c.Request.Context(), c.Param("id"), stream.emit))
}

// Action runs a toolbar shortcut: full-course, outline, improve, suggestions.
// Route: POST /api/v1/documents/:id/actions/:action (text/event-stream)
func (h *DocumentHandler) Action(c *gin.Context) {
	stream := newEventStream(c, h.logger)
	_, err := h.svc.RunAction(c.Request.Context(), c.Param("id"), c.Param("action"), stream.emit)
	stream.finish(err)
}

// List returns recently updated documents.
// Route: GET /api/v1/documents?limit=20
func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	docs, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Get returns the live document state with its presentation fields.
// Route: GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ToggleSearchPanel flips the search results panel.
// Route: POST /api/v1/documents/:id/search-panel
func (h *DocumentHandler) ToggleSearchPanel(c *gin.Context) {
	meta, err := h.svc.ToggleSearchPanel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// Versions lists saved versions without their content.
// Route: GET /api/v1/documents/:id/versions
func (h *DocumentHandler) Versions(c *gin.Context) {
	versions, err := h.svc.Versions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	summaries := make([]gin.H, 0, len(versions))
	for _, v := range versions {
		summaries = append(summaries, gin.H{
			"version":     v.Version,
			"course_type": v.CourseType,
			"title":       artifact.DisplayTitle(v.Content),
			"characters":  len([]rune(v.Content)),
			"created_at":  v.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"versions": summaries})
}

// versionParam parses the :version path segment, answering 400 itself when
// it is not a positive integer.
func versionParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("version"))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version must be a positive integer"})
		return 0, false
	}
	return n, true
}

// Version returns one saved version.
// Route: GET /api/v1/documents/:id/versions/:version
func (h *DocumentHandler) Version(c *gin.Context) {
	n, ok := versionParam(c)
	if !ok {
		return
	}

	v, err := h.svc.Version(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, v)
}

// VersionDownload serves the markdown file exported for a saved version.
// Route: GET /api/v1/documents/:id/versions/:version/download
func (h *DocumentHandler) VersionDownload(c *gin.Context) {
	n, ok := versionParam(c)
	if !ok {
		return
	}

	filename, data, err := h.svc.VersionFile(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", data)
}

// Delete removes a document with its versions, suggestions and exports.
// Route: DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, h.logger)
		return
	}
	c.Status(http.StatusNoContent)
}

// Download serves the current content as a markdown file.
// Route: GET /api/v1/documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	content, err := h.svc.Content(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.DownloadFilename(content)))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(content))
}

// Print serves the current content as a printable HTML page.
// Route: GET /api/v1/documents/:id/print
func (h *DocumentHandler) Print(c *gin.Context) {
	content, err := h.svc.Content(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, h.logger)
		return
	}

	page, err := artifact.RenderHTML(content)
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// Outline returns the heading outline of the current content.
// Route: GET /api/v1/documents/:id/outline
func (h *DocumentHandler) Outline(c *gin.Context) {
	content, err := h.svc.Content(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"title":    artifact.DisplayTitle(content),
		"headings": artifact.Outline(content),
	})
}
