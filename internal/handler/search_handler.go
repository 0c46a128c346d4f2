package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/search"
)

// SearchHandler exposes the search adapter directly.
type SearchHandler struct {
	searcher search.Searcher // nil when no search key is configured
	logger   *zap.Logger
}

func NewSearchHandler(searcher search.Searcher, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger}
}

// Search runs one web search.
// Route: POST /api/v1/search
// Body: {"query": "...", "searchDepth": "basic", "maxResults": 5, ...}
func (h *SearchHandler) Search(c *gin.Context) {
	var args search.ToolArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to perform search",
			"message": "search is not configured",
		})
		return
	}

	results, err := h.searcher.Search(c.Request.Context(), args.Query, args.Options())
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Warn("search failed", zap.String("query", args.Query), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to perform search",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusOK, results)
	}
}
