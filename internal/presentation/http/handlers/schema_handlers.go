package handlers

import (
	"net/http"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/seo"
	"github.com/gin-gonic/gin"
)

// SchemaHandlers serves the structured data fragments once a schema gate
// has injected them.
type SchemaHandlers struct {
	fragments *seo.FragmentSet
}

func NewSchemaHandlers(fragments *seo.FragmentSet) *SchemaHandlers {
	return &SchemaHandlers{fragments: fragments}
}

// GetFragments returns the injected fragments as JSON
func (h *SchemaHandlers) GetFragments(c *gin.Context) {
	fragments := h.fragments.Fragments()
	c.JSON(http.StatusOK, gin.H{
		"fragments": fragments,
		"count":     len(fragments),
	})
}

// GetFragmentsHTML renders the fragments as ld+json script tags
func (h *SchemaHandlers) GetFragmentsHTML(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.fragments.Render()))
}
