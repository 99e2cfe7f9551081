package v1

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/shopstore/internal/service"
)

func TestEventHub(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewEventHub()
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/shops/:ownerID/events", hub.HandleEvents)
	srv := httptest.NewServer(router)
	defer srv.Close()

	owner := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/shops/" + owner.String() + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Notify(service.Event{Kind: service.EventTabCreated, OwnerID: uuid.New(), Tab: "other"})
	hub.Notify(service.Event{Kind: service.EventTabCreated, OwnerID: owner, Tab: "Ores"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var e service.Event
	require.NoError(t, json.Unmarshal(message, &e))
	assert.Equal(t, service.EventTabCreated, e.Kind)
	assert.Equal(t, owner, e.OwnerID)
	assert.Equal(t, "Ores", e.Tab)

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventHub_RejectsInvalidOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewEventHub()

	router := gin.New()
	router.GET("/shops/:ownerID/events", hub.HandleEvents)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/shops/nope/events", nil))
	assert.Equal(t, 400, rec.Code)
}
