package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zaptest.NewLogger(t))
	hub.SetInitDataProvider(func(context.Context) *InitData {
		return &InitData{TotalStations: 3, ApprovedStations: 1, UnapprovedStations: 2}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn)
		if !client.Register() {
			conn.Close()
			return
		}
		go client.ReadPump()
		go client.WritePump()
	}))

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_InitThenBroadcast(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)

	first := readMessage(t, conn)
	assert.Equal(t, MsgTypeInit, first.Type)
	data, ok := first.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["totalStations"])
	assert.Equal(t, float64(2), data["unapprovedStations"])

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(MsgTypeStationDeleted, map[string]int64{"stationId": 9})

	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypeStationDeleted, msg.Type)
	assert.Equal(t, map[string]interface{}{"stationId": float64(9)}, msg.Data)
}

func TestHub_ClientCountCallback(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	var last atomic.Int64
	hub.OnClientCount(func(n int) { last.Store(int64(n)) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	c := &Client{hub: hub, send: make(chan []byte, 1)}
	require.True(t, c.Register())
	require.Eventually(t, func() bool { return last.Load() == 1 }, time.Second, 10*time.Millisecond)

	c.Unregister()
	require.Eventually(t, func() bool { return last.Load() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	// Hub 停止后注册失败，广播不阻塞
	assert.False(t, c.Register())
	hub.Publish(MsgTypePortAdded, nil)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, srv, cancel := startHub(t)
	conn := dial(t, srv)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}
