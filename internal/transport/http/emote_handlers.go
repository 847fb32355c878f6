package http

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/floatchat/internal/emote"
)

// EmoteHandlers serves thumbnails from the emote cache.
type EmoteHandlers struct {
	cache *emote.Cache
}

// NewEmoteHandlers creates emote handlers reading from cache.
func NewEmoteHandlers(cache *emote.Cache) *EmoteHandlers {
	return &EmoteHandlers{cache: cache}
}

// List returns the cached emote codes.
// GET /api/emotes
func (h *EmoteHandlers) List(c *gin.Context) {
	snap := h.cache.Snapshot()
	codes := make([]string, 0, len(snap))
	for code := range snap {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	c.JSON(http.StatusOK, codes)
}

// Get returns the PNG thumbnail of an emote.
// GET /api/emotes/:code
func (h *EmoteHandlers) Get(c *gin.Context) {
	e, ok := h.cache.Get(c.Param("code"))
	if !ok || len(e.Data) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "emote not loaded"})
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", e.Data)
}
