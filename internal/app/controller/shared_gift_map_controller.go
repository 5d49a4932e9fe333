package controller

import (
	stderrors "errors"
	"net/http"

	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/brroMonta/gifting/internal/errors"
	"github.com/brroMonta/gifting/internal/middleware"
	ws "github.com/brroMonta/gifting/internal/websocket"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SharedGiftMapController serves share-link viewers. None of its routes
// are authenticated; the token in the path is the credential.
type SharedGiftMapController struct {
	sharedService service.SharedGiftMapService
	hub           *ws.Hub
	upgrader      websocket.Upgrader
}

func NewSharedGiftMapController(sharedService service.SharedGiftMapService, hub *ws.Hub, allowedOrigins []string) *SharedGiftMapController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &SharedGiftMapController{
		sharedService: sharedService,
		hub:           hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// GetSharedGiftMap
// GET /api/v1/shared/:token
func (ctrl *SharedGiftMapController) GetSharedGiftMap(c *gin.Context) {
	view, err := ctrl.sharedService.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		errors.FromServiceError(c, err, "get shared gift map")
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reserve marks an item as claimed by a viewer
// POST /api/v1/shared/:token/items/:item_id/reserve
func (ctrl *SharedGiftMapController) Reserve(c *gin.Context) {
	view, err := ctrl.sharedService.Reserve(c.Request.Context(), c.Param("token"), c.Param("item_id"))
	if err != nil {
		errors.FromServiceError(c, err, "reserve item")
		return
	}
	c.JSON(http.StatusOK, view)
}

// Unreserve releases a claim
// DELETE /api/v1/shared/:token/items/:item_id/reserve
func (ctrl *SharedGiftMapController) Unreserve(c *gin.Context) {
	view, err := ctrl.sharedService.Unreserve(c.Request.Context(), c.Param("token"), c.Param("item_id"))
	if err != nil {
		errors.FromServiceError(c, err, "unreserve item")
		return
	}
	c.JSON(http.StatusOK, view)
}

// Watch upgrades to a WebSocket that receives the current view and every
// later change until the link is revoked.
// GET /api/v1/shared/:token/ws
func (ctrl *SharedGiftMapController) Watch(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	token := c.Param("token")

	if _, err := ctrl.sharedService.GetByToken(c.Request.Context(), token); err != nil {
		errors.FromServiceError(c, err, "watch shared gift map")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Failed to upgrade to WebSocket", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	// Registered before the snapshot is read: a revocation committed after
	// the read is published to this client, one committed before it is seen
	// by the read.
	client := ws.NewClient(ctrl.hub, conn, token)
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	view, err := ctrl.sharedService.Snapshot(c.Request.Context(), token)
	switch {
	case err == nil:
		ctrl.hub.SendSnapshot(client, view)
	case stderrors.Is(err, service.ErrSharedGiftMapNotFound):
		log.Info("Share link revoked while viewer connected", map[string]interface{}{
			"share_token": sharelink.Redact(token),
		})
		ctrl.hub.SendRevoked(client)
		return
	default:
		log.Error("Failed to load initial snapshot", err, map[string]interface{}{
			"share_token": sharelink.Redact(token),
		})
		ctrl.hub.Unregister(client)
		return
	}

	log.Info("Viewer connected", map[string]interface{}{
		"share_token": sharelink.Redact(token),
	})
}
