package transport_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"streamvault/internal/configuration"
	"streamvault/internal/protocol"
	"streamvault/internal/storage"
	"streamvault/internal/subscription"
	"streamvault/internal/transport"
	"streamvault/internal/types"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vault struct {
	server   *transport.Server
	store    *storage.Service
	registry *subscription.Registry
}

func startVault(t *testing.T) *vault {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewService(&configuration.StorageConfigurationProperties{
		StorageDir:      filepath.Join(dir, "storage"),
		BackupDir:       filepath.Join(dir, "backup"),
		SaveInterval:    time.Hour,
		ShutdownTimeout: 5 * time.Second,
		NotifyWorkers:   2,
		NotifyQueueSize: 64,
	})
	require.NoError(t, err)

	registry := subscription.NewRegistry()
	handler := protocol.NewHandler(store, registry)

	server := transport.NewServer(&configuration.TransportConfigurationProperties{
		Network:      "tcp",
		Address:      "127.0.0.1",
		Port:         0,
		Path:         "/",
		WriteTimeout: 2 * time.Second,
		ReadLimit:    1 << 16,
	}, handler)
	require.NoError(t, server.Start())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
		handler.Close()
		_ = store.Shutdown(ctx)
	})

	return &vault{server: server, store: store, registry: registry}
}

func dial(t *testing.T, v *vault) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+v.server.Addr()+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, action protocol.Action, data string) {
	t.Helper()
	frame, err := json.Marshal(map[string]string{"action": string(action), "data": data})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, frame))
}

func readJSON(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func expectSilence(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, data, err := ws.ReadMessage()
	require.Error(t, err, "unexpected frame %s", data)
}

func TestServer_TemperatureScenario(t *testing.T) {
	v := startVault(t)
	a := dial(t, v)
	b := dial(t, v)

	send(t, a, protocol.ActionSubscribe, "temperature")
	assert.JSONEq(t, `{"status":"success","message":"Subscribed to key 'temperature' successfully."}`, readJSON(t, a))

	send(t, b, protocol.ActionPut, `{"key":"temperature","value":21.5}`)
	assert.JSONEq(t, `{"status":"success","message":"Entry created/updated successfully."}`, readJSON(t, b))

	assert.JSONEq(t, `{"key":"temperature","value":21.5}`, readJSON(t, a))

	send(t, a, protocol.ActionGet, "temperature")
	assert.JSONEq(t, `{"status":"success","message":"21.5"}`, readJSON(t, a))

	expectSilence(t, b)
}

func TestServer_UnsubscribeStopsPushes(t *testing.T) {
	v := startVault(t)
	a := dial(t, v)

	send(t, a, protocol.ActionSubscribe, "k")
	readJSON(t, a)
	send(t, a, protocol.ActionUnsubscribe, "k")
	assert.JSONEq(t, `{"status":"success","message":"Unsubscribed from key 'k' successfully."}`, readJSON(t, a))

	v.store.Put("k", types.String("v"))
	expectSilence(t, a)
}

func TestServer_RemovePushesTombstone(t *testing.T) {
	v := startVault(t)
	a := dial(t, v)

	send(t, a, protocol.ActionPut, `{"key":"door","value":true}`)
	readJSON(t, a)
	send(t, a, protocol.ActionSubscribe, "door")
	readJSON(t, a)

	send(t, a, protocol.ActionRemove, "door")

	// the response and the push race each other
	got := []string{readJSON(t, a), readJSON(t, a)}
	assert.Contains(t, got, `{"key":"door","value":null}`)
	assert.Contains(t, got, `{"status":"success","message":"Entry removed successfully."}`)
}

func TestServer_DisconnectCleansUpSubscriptions(t *testing.T) {
	v := startVault(t)
	a := dial(t, v)

	send(t, a, protocol.ActionSubscribe, "x")
	readJSON(t, a)
	send(t, a, protocol.ActionSubscribe, "y")
	readJSON(t, a)
	require.Equal(t, 2, v.registry.Len())

	require.NoError(t, a.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = a.Close()

	require.Eventually(t, func() bool { return v.registry.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestServer_MalformedFrameKeepsConnection(t *testing.T) {
	v := startVault(t)
	a := dial(t, v)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("garbage")))
	assert.JSONEq(t, `{"status":"error","message":"Invalid message format."}`, readJSON(t, a))

	require.NoError(t, a.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	send(t, a, protocol.ActionGet, "missing")
	assert.JSONEq(t, `{"status":"error","message":"Entry not found for key: missing"}`, readJSON(t, a))
}

func TestServer_StopSendsGoingAway(t *testing.T) {
	v := startVault(t)
	a := dial(t, v)

	send(t, a, protocol.ActionGet, "k")
	readJSON(t, a)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, v.server.Stop(ctx))

	require.NoError(t, a.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := a.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
