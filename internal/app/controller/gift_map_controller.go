package controller

import (
	"net/http"

	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/brroMonta/gifting/internal/errors"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"github.com/gin-gonic/gin"
)

type GiftMapController struct {
	giftMapService service.GiftMapService
	shareBaseURL   string
}

func NewGiftMapController(giftMapService service.GiftMapService, shareBaseURL string) *GiftMapController {
	return &GiftMapController{
		giftMapService: giftMapService,
		shareBaseURL:   shareBaseURL,
	}
}

type AddItemRequest struct {
	Name  string `json:"name" binding:"required"`
	URL   string `json:"url"`
	Notes string `json:"notes"`
}

type UpdateItemRequest struct {
	Name       *string `json:"name"`
	URL        *string `json:"url"`
	Notes      *string `json:"notes"`
	IsReserved *bool   `json:"is_reserved"`
	Order      *int    `json:"order"`
}

type ShareResponse struct {
	ShareToken string `json:"share_token"`
	ShareURL   string `json:"share_url"`
}

// GetGiftMap returns the person's gift map, creating an empty one on first access
// GET /api/v1/people/:person_id/gift-map
func (ctrl *GiftMapController) GetGiftMap(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	giftMap, err := ctrl.giftMapService.GetOrCreate(c.Request.Context(), ownerID, c.Param("person_id"))
	if err != nil {
		errors.FromServiceError(c, err, "get gift map")
		return
	}

	c.JSON(http.StatusOK, gin.H{"gift_map": giftMap})
}

// AddItem
// POST /api/v1/people/:person_id/gift-map/items
func (ctrl *GiftMapController) AddItem(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	var req AddItemRequest
	if !bindJSON(c, &req) {
		return
	}

	itemID, err := ctrl.giftMapService.AddItem(c.Request.Context(), ownerID, c.Param("person_id"), service.ItemInput{
		Name:  req.Name,
		URL:   req.URL,
		Notes: req.Notes,
	})
	if err != nil {
		errors.FromServiceError(c, err, "add gift item")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item_id": itemID})
}

// UpdateItem merges the provided fields into an item
// PATCH /api/v1/people/:person_id/gift-map/items/:item_id
func (ctrl *GiftMapController) UpdateItem(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	personID := c.Param("person_id")
	err := ctrl.giftMapService.UpdateItem(ctx, ownerID, personID, c.Param("item_id"), service.ItemPatch{
		Name:       req.Name,
		URL:        req.URL,
		Notes:      req.Notes,
		IsReserved: req.IsReserved,
		Order:      req.Order,
	})
	if err != nil {
		errors.FromServiceError(c, err, "update gift item")
		return
	}

	giftMap, err := ctrl.giftMapService.Get(ctx, ownerID, personID)
	if err != nil {
		errors.FromServiceError(c, err, "get gift map")
		return
	}
	c.JSON(http.StatusOK, gin.H{"gift_map": giftMap})
}

// DeleteItem succeeds for items that are already gone
// DELETE /api/v1/people/:person_id/gift-map/items/:item_id
func (ctrl *GiftMapController) DeleteItem(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	if err := ctrl.giftMapService.DeleteItem(c.Request.Context(), ownerID, c.Param("person_id"), c.Param("item_id")); err != nil {
		errors.FromServiceError(c, err, "delete gift item")
		return
	}

	c.Status(http.StatusNoContent)
}

// EnableSharing
// POST /api/v1/people/:person_id/gift-map/share
func (ctrl *GiftMapController) EnableSharing(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	token, err := ctrl.giftMapService.EnableSharing(c.Request.Context(), ownerID, c.Param("person_id"))
	if err != nil {
		errors.FromServiceError(c, err, "enable sharing")
		return
	}

	c.JSON(http.StatusOK, ShareResponse{
		ShareToken: token,
		ShareURL:   sharelink.FormatURL(ctrl.shareBaseURL, token),
	})
}

// DisableSharing revokes the share link
// DELETE /api/v1/people/:person_id/gift-map/share
func (ctrl *GiftMapController) DisableSharing(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	if err := ctrl.giftMapService.DisableSharing(c.Request.Context(), ownerID, c.Param("person_id")); err != nil {
		errors.FromServiceError(c, err, "disable sharing")
		return
	}

	c.Status(http.StatusNoContent)
}
