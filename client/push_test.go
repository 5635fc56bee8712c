package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trananhtuan/dacsanviet_backend/middleware"
	broker "github.com/trananhtuan/dacsanviet_backend/websocket"
)

// newTestBroker starts an in-process notification broker and returns its hub
// and websocket URL.
func newTestBroker(t *testing.T) (*broker.Hub, string) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	hub := broker.NewHub()
	go hub.Run()

	e := echo.New()
	e.GET("/ws/notifications", func(c echo.Context) error {
		return broker.HandleNotificationSocket(c, hub)
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications"
}

func testIdentity(t *testing.T) (primitive.ObjectID, string) {
	t.Helper()
	userID := primitive.NewObjectID()
	token, err := middleware.GenerateToken(userID.Hex(), "test@dacsanviet.vn", "customer")
	require.NoError(t, err)
	return userID, token
}

func waitConnected(t *testing.T, hub *broker.Hub, userID primitive.ObjectID) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(userID) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPushClientReceivesNotification(t *testing.T) {
	hub, url := newTestBroker(t)
	userID, token := testIdentity(t)

	received := make(chan Notification, 1)
	client := NewPushClient(PushConfig{
		URL:            url,
		RetryDelay:     50 * time.Millisecond,
		OnNotification: func(n Notification) { received <- n },
	})
	defer client.Disconnect()

	client.Connect(userID.Hex(), token)
	waitConnected(t, hub, userID)

	require.NoError(t, hub.SendToUser(userID, broker.Event{
		Event: broker.EventNotification,
		Data: map[string]interface{}{
			"id":        "n1",
			"userId":    userID.Hex(),
			"type":      "order",
			"title":     "Đơn hàng đã gửi",
			"content":   "Đơn hàng #123 đang trên đường giao.",
			"isRead":    false,
			"createdAt": []int{2024, 1, 1, 10, 0, 0, 0},
		},
	}))

	select {
	case n := <-received:
		assert.Equal(t, "n1", n.ID)
		assert.Equal(t, "order", n.Type)
		assert.Equal(t, "Đơn hàng đã gửi", n.Title)
		assert.False(t, n.Read)
		assert.True(t, n.CreatedAt.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)))
	case <-time.After(2 * time.Second):
		t.Fatal("pushed notification never arrived")
	}

	assert.True(t, client.IsConnected())
	assert.Equal(t, userID.Hex(), client.UserID())
}

func TestPushClientFeedsCacheAndDeduplicatesReplay(t *testing.T) {
	hub, url := newTestBroker(t)
	userID, token := testIdentity(t)

	cache := NewCache(&fakeStore{})
	client := NewPushClient(PushConfig{
		URL:            url,
		RetryDelay:     50 * time.Millisecond,
		OnNotification: cache.UpsertFromPush,
	})
	defer client.Disconnect()

	client.Connect(userID.Hex(), token)
	waitConnected(t, hub, userID)

	frame := broker.Event{
		Event: broker.EventNotification,
		Data: map[string]interface{}{
			"id":        "n1",
			"userId":    userID.Hex(),
			"type":      "promotion",
			"title":     "Khuyến mãi cuối tuần",
			"content":   "Giảm 20% đặc sản miền Trung.",
			"isRead":    false,
			"createdAt": "2024-01-01T10:00:00Z",
		},
	}

	// Replayed delivery, as after a reconnect.
	require.NoError(t, hub.SendToUser(userID, frame))
	require.NoError(t, hub.SendToUser(userID, frame))

	require.Eventually(t, func() bool {
		return len(cache.Items()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Give the duplicate time to arrive, then confirm it changed nothing.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, cache.Items(), 1)
	assert.Equal(t, 1, cache.UnreadCount())
}

func TestPushClientMalformedPayloadKeepsConnectionAlive(t *testing.T) {
	hub, url := newTestBroker(t)
	userID, token := testIdentity(t)

	received := make(chan Notification, 1)
	client := NewPushClient(PushConfig{
		URL:            url,
		RetryDelay:     50 * time.Millisecond,
		OnNotification: func(n Notification) { received <- n },
	})
	defer client.Disconnect()

	client.Connect(userID.Hex(), token)
	waitConnected(t, hub, userID)

	// createdAt in an undecodable shape: dropped, connection survives.
	require.NoError(t, hub.SendToUser(userID, broker.Event{
		Event: broker.EventNotification,
		Data:  map[string]interface{}{"id": "bad", "createdAt": map[string]int{"year": 2024}},
	}))
	require.NoError(t, hub.SendToUser(userID, broker.Event{
		Event: broker.EventNotification,
		Data: map[string]interface{}{
			"id": "good", "userId": userID.Hex(), "type": "system",
			"title": "t", "content": "c", "isRead": false,
			"createdAt": "2024-01-01T10:00:00Z",
		},
	}))

	select {
	case n := <-received:
		assert.Equal(t, "good", n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("frame after malformed payload never arrived")
	}
	assert.True(t, client.IsConnected())
}

func TestPushClientAuthRejectionIsTerminal(t *testing.T) {
	_, url := newTestBroker(t)

	var rejections int32
	client := NewPushClient(PushConfig{
		URL:            url,
		RetryDelay:     20 * time.Millisecond,
		OnAuthRejected: func(err error) { atomic.AddInt32(&rejections, 1) },
	})
	defer client.Disconnect()

	client.Connect(primitive.NewObjectID().Hex(), "not-a-valid-token")

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&rejections) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// No silent retry loop after a credential rejection.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rejections))
	assert.Equal(t, StateDisconnected, client.State())
}

func TestPushClientStopsAfterCredentialRevocation(t *testing.T) {
	hub, url := newTestBroker(t)
	userID, token := testIdentity(t)

	var rejections int32
	client := NewPushClient(PushConfig{
		URL:            url,
		RetryDelay:     20 * time.Millisecond,
		OnAuthRejected: func(err error) { atomic.AddInt32(&rejections, 1) },
	})
	defer client.Disconnect()

	client.Connect(userID.Hex(), token)
	waitConnected(t, hub, userID)

	// Server-side revocation mid-session: the broker announces it, the client
	// must not treat it as transport loss and dial again.
	hub.RevokeUser(userID)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&rejections) == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rejections))
	assert.Equal(t, StateDisconnected, client.State())
	assert.Equal(t, 0, hub.ConnectionCount(userID))
}

func TestPushClientReconnectsAfterConnectionLoss(t *testing.T) {
	hub, url := newTestBroker(t)
	userID, token := testIdentity(t)

	var connects int32
	client := NewPushClient(PushConfig{
		URL:        url,
		RetryDelay: 50 * time.Millisecond,
		OnConnect:  func() { atomic.AddInt32(&connects, 1) },
	})
	defer client.Disconnect()

	client.Connect(userID.Hex(), token)
	waitConnected(t, hub, userID)
	require.Equal(t, int32(1), atomic.LoadInt32(&connects))

	// Server-side drop, e.g. broker restart.
	hub.DisconnectUser(userID)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&connects) == 2 && hub.ConnectionCount(userID) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, client.IsConnected())
}

func TestPushClientConnectWithoutCredentialsIsNoop(t *testing.T) {
	client := NewPushClient(PushConfig{URL: "ws://localhost:0/ws/notifications"})

	client.Connect("", "")
	client.Connect("u1", "")
	client.Connect("", "token")

	assert.Equal(t, StateDisconnected, client.State())
	assert.Empty(t, client.UserID())
}

func TestPushClientIdentitySwitchTearsDownOldChannel(t *testing.T) {
	hub, url := newTestBroker(t)
	userA, tokenA := testIdentity(t)
	userB, tokenB := testIdentity(t)

	client := NewPushClient(PushConfig{URL: url, RetryDelay: 50 * time.Millisecond})
	defer client.Disconnect()

	client.Connect(userA.Hex(), tokenA)
	waitConnected(t, hub, userA)

	// Same identity again: no second socket.
	client.Connect(userA.Hex(), tokenA)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, hub.ConnectionCount(userA))

	client.Connect(userB.Hex(), tokenB)

	require.Eventually(t, func() bool {
		return hub.ConnectionCount(userB) == 1 && hub.ConnectionCount(userA) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, userB.Hex(), client.UserID())
}

func TestManagerOwnsOneChannelPerIdentity(t *testing.T) {
	hub, url := newTestBroker(t)
	userA, tokenA := testIdentity(t)
	userB, tokenB := testIdentity(t)

	manager := NewManager(func() *PushClient {
		return NewPushClient(PushConfig{URL: url, RetryDelay: 50 * time.Millisecond})
	})
	defer manager.Disconnect()

	manager.Connect(userA.Hex(), tokenA)
	waitConnected(t, hub, userA)
	require.True(t, manager.IsConnected())

	// Admin logs in over the customer session in the same browser: the old
	// binding must be gone before the new one goes live.
	manager.Connect(userB.Hex(), tokenB)
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(userB) == 1 && hub.ConnectionCount(userA) == 0
	}, 2*time.Second, 10*time.Millisecond)

	manager.Disconnect()
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(userB) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, manager.IsConnected())
}

func TestReconnectTriggersCacheReconciliation(t *testing.T) {
	hub, url := newTestBroker(t)
	userID, token := testIdentity(t)

	store := &fakeStore{listResult: &ListResult{
		Items: []Notification{notif("missed", at(10), false)},
		Total: 1,
	}}
	cache := NewCache(store)

	client := NewPushClient(PushConfig{
		URL:            url,
		RetryDelay:     50 * time.Millisecond,
		OnNotification: cache.UpsertFromPush,
		OnConnect: func() {
			cache.InvalidateAndRefetch(context.Background())
		},
	})
	defer client.Disconnect()

	client.Connect(userID.Hex(), token)
	waitConnected(t, hub, userID)

	// The refetch on connect pulls the notification created while offline.
	require.Eventually(t, func() bool {
		items := cache.Items()
		return len(items) == 1 && items[0].ID == "missed"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, cache.UnreadCount())
}
