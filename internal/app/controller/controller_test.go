package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brroMonta/gifting/internal/app/repository"
	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/brroMonta/gifting/internal/db"
	"github.com/brroMonta/gifting/internal/middleware"
	ws "github.com/brroMonta/gifting/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testOwner      = "owner-1"
	testShareBase  = "https://gifts.example.com"
	ownerHeaderKey = "X-Test-Owner"
)

type testServer struct {
	router   *gin.Engine
	hub      *ws.Hub
	giftMaps service.GiftMapService
	shared   service.SharedGiftMapService
}

// setUserInContext stands in for the auth middleware.
func setUserInContext(c *gin.Context) {
	if owner := c.GetHeader(ownerHeaderKey); owner != "" {
		c.Set(middleware.OwnerIDKey, owner)
	}
	c.Next()
}

func setupControllerTest(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub()
	go hub.Run(ctx)

	notifier := service.NewProjectionNotifier(nil, 0, hub)
	personRepo := repository.NewPersonRepository(testDB)
	giftMapRepo := repository.NewGiftMapRepository(testDB)
	sharedRepo := repository.NewSharedGiftMapRepository(testDB)

	people := service.NewPersonService(testDB, personRepo, giftMapRepo, sharedRepo, notifier)
	giftMaps := service.NewGiftMapService(testDB, giftMapRepo, sharedRepo, people, notifier, 5)
	shared := service.NewSharedGiftMapService(testDB, giftMapRepo, sharedRepo, notifier, 5)
	metadata := service.NewURLMetadataService(time.Second, nil, 0)

	personCtrl := NewPersonController(people)
	giftMapCtrl := NewGiftMapController(giftMaps, testShareBase)
	sharedCtrl := NewSharedGiftMapController(shared, hub, []string{"https://gifts.example.com"})
	metadataCtrl := NewURLMetadataController(metadata)

	router := gin.New()
	owner := router.Group("/api/v1", setUserInContext)
	{
		owner.POST("/people", personCtrl.CreatePerson)
		owner.GET("/people", personCtrl.ListPeople)
		owner.GET("/people/:person_id", personCtrl.GetPerson)
		owner.PUT("/people/:person_id", personCtrl.UpdatePerson)
		owner.DELETE("/people/:person_id", personCtrl.DeletePerson)
		owner.GET("/people/:person_id/gift-map", giftMapCtrl.GetGiftMap)
		owner.POST("/people/:person_id/gift-map/items", giftMapCtrl.AddItem)
		owner.PATCH("/people/:person_id/gift-map/items/:item_id", giftMapCtrl.UpdateItem)
		owner.DELETE("/people/:person_id/gift-map/items/:item_id", giftMapCtrl.DeleteItem)
		owner.POST("/people/:person_id/gift-map/share", giftMapCtrl.EnableSharing)
		owner.DELETE("/people/:person_id/gift-map/share", giftMapCtrl.DisableSharing)
		owner.GET("/url-metadata", metadataCtrl.GetMetadata)
	}
	public := router.Group("/api/v1/shared/:token")
	{
		public.GET("", sharedCtrl.GetSharedGiftMap)
		public.POST("/items/:item_id/reserve", sharedCtrl.Reserve)
		public.DELETE("/items/:item_id/reserve", sharedCtrl.Unreserve)
		public.GET("/ws", sharedCtrl.Watch)
	}

	return &testServer{router: router, hub: hub, giftMaps: giftMaps, shared: shared}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	return s.doAs(t, testOwner, method, path, body)
}

func (s *testServer) doAs(t *testing.T, owner, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set(ownerHeaderKey, owner)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *testServer) createPerson(t *testing.T, name string) string {
	w := s.do(t, http.MethodPost, "/api/v1/people", PersonRequest{Name: name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Person struct {
			ID string `json:"id"`
		} `json:"person"`
	}
	decode(t, w, &resp)
	return resp.Person.ID
}

func (s *testServer) addItem(t *testing.T, personID, name string) string {
	w := s.do(t, http.MethodPost, "/api/v1/people/"+personID+"/gift-map/items", AddItemRequest{Name: name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ItemID string `json:"item_id"`
	}
	decode(t, w, &resp)
	return resp.ItemID
}

func (s *testServer) share(t *testing.T, personID string) ShareResponse {
	w := s.do(t, http.MethodPost, "/api/v1/people/"+personID+"/gift-map/share", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ShareResponse
	decode(t, w, &resp)
	return resp
}
