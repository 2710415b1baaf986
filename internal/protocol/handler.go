package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"streamvault/internal/metrics"
	"streamvault/internal/storage"
	"streamvault/internal/subscription"
	"streamvault/internal/transport"
	"streamvault/internal/types"
)

type Store interface {
	Get(key string) (types.Entry, bool)
	Put(key string, value types.Scalar)
	Remove(key string) (types.Entry, bool)
	Subscribe(l storage.Listener) storage.ListenerID
	Unsubscribe(id storage.ListenerID) bool
}

// Handler turns websocket frames into store and registry calls and is the
// store's only change listener, forwarding each change to the subscribers of
// its key.
type Handler struct {
	store      Store
	registry   *subscription.Registry
	listenerID storage.ListenerID
}

func NewHandler(store Store, registry *subscription.Registry) *Handler {
	h := &Handler{
		store:    store,
		registry: registry,
	}
	h.listenerID = store.Subscribe(h.OnChange)
	return h
}

// Close detaches the handler from store change events.
func (h *Handler) Close() {
	h.store.Unsubscribe(h.listenerID)
}

func (h *Handler) OnConnect(conn transport.Conn) {
	slog.Info("websocket client connected", "conn", conn.ID(), "remote", conn.RemoteAddr())
}

func (h *Handler) OnDisconnect(conn transport.Conn) {
	keys := h.registry.RemoveEverywhere(conn)
	slog.Info("websocket client disconnected", "conn", conn.ID(), "remote", conn.RemoteAddr(), "subscriptions", len(keys))
	for _, key := range keys {
		slog.Debug("removed client from subscription", "conn", conn.ID(), "key", key)
	}
}

func (h *Handler) OnError(conn transport.Conn, err error) {
	slog.Error("websocket error", "conn", conn.ID(), "remote", conn.RemoteAddr(), "error", err)
	if closeErr := conn.Close(transport.CloseInternalError, "Internal server error"); closeErr != nil {
		slog.Debug("close after error failed", "conn", conn.ID(), "error", closeErr)
	}
}

func (h *Handler) OnMessage(conn transport.Conn, message []byte) {
	slog.Debug("received message", "conn", conn.ID(), "message", string(message))

	resp := h.Handle(conn, message)
	h.send(conn, resp)
}

// Handle processes one request and returns its response. It never panics.
func (h *Handler) Handle(conn transport.Conn, message []byte) (resp Response) {
	action := "unknown"
	defer func() {
		if r := recover(); r != nil {
			slog.Error("error processing message", "conn", conn.ID(), "message", string(message), "error", fmt.Errorf("%w: %v", ErrInternal, r))
			metrics.ProtocolRequestsTotal.WithLabelValues(action, "internal").Inc()
			resp = Failure(msgInternal)
		}
	}()

	var req Request
	if err := json.Unmarshal(message, &req); err != nil {
		slog.Warn("malformed message", "conn", conn.ID(), "error", err)
		metrics.ProtocolRequestsTotal.WithLabelValues(action, "format").Inc()
		return Failure(msgFormat)
	}
	if req.Action != "" {
		action = string(req.Action)
		if !req.Action.Valid() {
			action = "unknown"
		}
	}

	result, err := h.dispatch(conn, req)
	metrics.ProtocolRequestsTotal.WithLabelValues(action, statusLabel(err)).Inc()
	if err != nil {
		slog.Warn("request failed", "conn", conn.ID(), "action", req.Action, "error", err)
		return Failure(clientMessage(err))
	}
	return Success(result)
}

func (h *Handler) dispatch(conn transport.Conn, req Request) (string, error) {
	if req.Action == "" {
		return "", newRequestError(ErrValidation, msgActionRequired)
	}

	switch req.Action {
	case ActionGet:
		return h.get(keyOf(req))
	case ActionPut:
		return h.put(req)
	case ActionRemove:
		return h.remove(keyOf(req))
	case ActionSubscribe:
		return h.subscribe(conn, keyOf(req))
	case ActionUnsubscribe:
		return h.unsubscribe(conn, keyOf(req))
	default:
		return "", newRequestError(ErrValidation, "Unknown action: %s", req.Action)
	}
}

func keyOf(req Request) string {
	if req.Data == nil {
		return ""
	}
	return strings.TrimSpace(*req.Data)
}

func (h *Handler) get(key string) (string, error) {
	if key == "" {
		return "", newRequestError(ErrValidation, "GET action requires a non-empty 'key'.")
	}

	entry, ok := h.store.Get(key)
	if !ok {
		return "", newRequestError(ErrNotFound, "Entry not found for key: %s", key)
	}
	return entry.Value.String(), nil
}

func (h *Handler) put(req Request) (string, error) {
	if req.Data == nil {
		return "", newRequestError(ErrValidation, "PUT action requires 'key' and 'value'.")
	}

	var payload PutPayload
	if err := json.Unmarshal([]byte(*req.Data), &payload); err != nil {
		return "", newRequestError(ErrFormat, msgFormat)
	}
	if payload.Key == nil || strings.TrimSpace(*payload.Key) == "" {
		return "", newRequestError(ErrValidation, "PUT action requires 'key' and 'value'.")
	}

	value, err := types.ParseScalar(payload.Value)
	switch {
	case errors.Is(err, types.ErrMissingValue):
		return "", newRequestError(ErrValidation, "PUT action requires 'key' and 'value'.")
	case err != nil:
		return "", newRequestError(ErrValidation, "Unsupported value type.")
	}

	key := strings.TrimSpace(*payload.Key)
	h.store.Put(key, value)
	slog.Debug("entry stored", "key", key, "kind", value.Kind())
	return "Entry created/updated successfully.", nil
}

func (h *Handler) remove(key string) (string, error) {
	if key == "" {
		return "", newRequestError(ErrValidation, "REMOVE action requires a non-empty 'key'.")
	}

	if _, ok := h.store.Remove(key); !ok {
		return "", newRequestError(ErrNotFound, "Entry not found for key: %s", key)
	}
	return "Entry removed successfully.", nil
}

func (h *Handler) subscribe(conn transport.Conn, key string) (string, error) {
	if key == "" {
		return "", newRequestError(ErrValidation, "SUBSCRIBE action requires a non-empty 'key'.")
	}

	h.registry.Subscribe(conn, key)
	slog.Info("client subscribed", "conn", conn.ID(), "key", key)
	return fmt.Sprintf("Subscribed to key '%s' successfully.", key), nil
}

func (h *Handler) unsubscribe(conn transport.Conn, key string) (string, error) {
	if key == "" {
		return "", newRequestError(ErrValidation, "UNSUBSCRIBE action requires a non-empty 'key'.")
	}

	if err := h.registry.Unsubscribe(conn, key); err != nil {
		return "", newRequestError(ErrNotFound, "No active subscriptions for key: %s", key)
	}
	slog.Info("client unsubscribed", "conn", conn.ID(), "key", key)
	return fmt.Sprintf("Unsubscribed from key '%s' successfully.", key), nil
}

func (h *Handler) send(conn transport.Conn, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("error encoding response", "conn", conn.ID(), "error", err)
		return
	}
	if err := conn.Send(payload); err != nil {
		slog.Warn("error sending response", "conn", conn.ID(), "status", resp.Status, "error", err)
	}
}

// OnChange pushes entry to every current subscriber of its key. A failed
// send is logged and the remaining subscribers are still tried.
func (h *Handler) OnChange(entry types.Entry) error {
	subscribers := h.registry.SubscribersOf(entry.Key)
	if len(subscribers) == 0 {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode change for %q: %w", entry.Key, err)
	}

	for _, conn := range subscribers {
		if err := conn.Send(payload); err != nil {
			metrics.PushesTotal.WithLabelValues("failed").Inc()
			slog.Warn("error sending update", "key", entry.Key, "conn", conn.ID(), "error", err)
			continue
		}
		metrics.PushesTotal.WithLabelValues("sent").Inc()
		slog.Debug("sent update", "key", entry.Key, "conn", conn.ID(), "removed", entry.IsTombstone())
	}
	return nil
}
