package controller

import (
	"net/http"
	"strings"

	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/brroMonta/gifting/internal/errors"
	"github.com/gin-gonic/gin"
)

type URLMetadataController struct {
	metadataService service.URLMetadataService
}

func NewURLMetadataController(metadataService service.URLMetadataService) *URLMetadataController {
	return &URLMetadataController{
		metadataService: metadataService,
	}
}

// GetMetadata previews a product link for the item form
// GET /api/v1/url-metadata?url=
func (ctrl *URLMetadataController) GetMetadata(c *gin.Context) {
	if _, ok := requireOwner(c); !ok {
		return
	}

	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		errors.BadRequest(c, errors.ValidationRequired, "url is required")
		return
	}

	md, err := ctrl.metadataService.Lookup(c.Request.Context(), rawURL)
	if err != nil {
		errors.FromServiceError(c, err, "url metadata")
		return
	}

	c.JSON(http.StatusOK, gin.H{"metadata": md})
}
