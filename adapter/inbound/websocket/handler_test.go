package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
)

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

// stubAccess serves fixed views and lets the test publish changes
type stubAccess struct {
	inbound.AccessService

	mu        sync.Mutex
	views     []model.AccessGrantView
	listeners map[int]func(model.AccessGrantView)
	next      int
	refreshes int
}

func newStubAccess(views ...model.AccessGrantView) *stubAccess {
	return &stubAccess{views: views, listeners: make(map[int]func(model.AccessGrantView))}
}

func (s *stubAccess) Views() []model.AccessGrantView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AccessGrantView(nil), s.views...)
}

func (s *stubAccess) Watch(fn func(model.AccessGrantView)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *stubAccess) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return nil
}

func (s *stubAccess) publish(view model.AccessGrantView) {
	s.mu.Lock()
	fns := make([]func(model.AccessGrantView), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(view)
	}
}

func (s *stubAccess) watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func dial(t *testing.T, handler *Handler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler.HandleConnection))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) outgoing {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame outgoing
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHandler_SnapshotThenChanges(t *testing.T) {
	initial := model.AccessGrantView{Module: model.ModuleScheduler, RequestType: model.RequestTypeEdit, State: model.GateNoRequest}
	access := newStubAccess(initial)
	hub := NewHub(nopLogger{})
	handler := NewHandler(context.Background(), access, hub, nopLogger{}, []string{"*"})

	conn := dial(t, handler)

	frame := readFrame(t, conn)
	assert.Equal(t, "snapshot", frame.Type)
	require.Len(t, frame.Views, 1)
	assert.Equal(t, model.GateNoRequest, frame.Views[0].State)

	require.Eventually(t, func() bool { return access.watchers() == 1 }, time.Second, 5*time.Millisecond)

	remaining := "00:09:59"
	access.publish(model.AccessGrantView{
		Module:           model.ModuleScheduler,
		RequestType:      model.RequestTypeEdit,
		IsApproved:       true,
		RemainingDisplay: &remaining,
		State:            model.GateApprovedActive,
	})

	frame = readFrame(t, conn)
	assert.Equal(t, "view", frame.Type)
	require.NotNil(t, frame.View)
	assert.True(t, frame.View.IsApproved)
	assert.Equal(t, "00:09:59", *frame.View.RemainingDisplay)
}

func TestHandler_NotificationsAndClientMessages(t *testing.T) {
	access := newStubAccess()
	hub := NewHub(nopLogger{})
	handler := NewHandler(context.Background(), access, hub, nopLogger{}, []string{"*"})

	conn := dial(t, handler)
	assert.Equal(t, "snapshot", readFrame(t, conn).Type)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Notify(context.Background(), model.Notification{
		Level:   model.NotificationSuccess,
		Module:  model.ModuleTrips,
		Message: "Access request submitted",
	})
	frame := readFrame(t, conn)
	assert.Equal(t, "notification", frame.Type)
	require.NotNil(t, frame.Notification)
	assert.Equal(t, "Access request submitted", frame.Notification.Message)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "refresh"}))
	assert.Eventually(t, func() bool {
		access.mu.Lock()
		defer access.mu.Unlock()
		return access.refreshes == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHandler_DisconnectUnregisters(t *testing.T) {
	access := newStubAccess()
	hub := NewHub(nopLogger{})
	handler := NewHandler(context.Background(), access, hub, nopLogger{}, []string{"*"})

	conn := dial(t, handler)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.Clients() == 0 && access.watchers() == 0 }, 2*time.Second, 5*time.Millisecond)

	// publishing after the client left must not panic
	access.publish(model.AccessGrantView{Module: model.ModuleTrips})
}

func TestHandler_CleanupClosesClients(t *testing.T) {
	access := newStubAccess()
	hub := NewHub(nopLogger{})
	handler := NewHandler(context.Background(), access, hub, nopLogger{}, []string{"*"})

	conn := dial(t, handler)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	handler.Cleanup()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://backoffice.example.com"})

	r := httptest.NewRequest("GET", "/ws/access", nil)
	assert.True(t, check(r), "non-browser clients send no origin")

	r.Header.Set("Origin", "https://backoffice.example.com")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
}
