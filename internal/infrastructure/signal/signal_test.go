package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub("test", HubConfig{}, zap.NewNop().Sugar())
	a := dial(t, hub)
	b := dial(t, hub)
	waitClients(t, hub, 2)

	assert.Equal(t, 2, hub.Broadcast(websocket.TextMessage, []byte("hello")))

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.Equal(t, "hello", string(data))
	}

	a.Close()
	waitClients(t, hub, 1)
}

func TestHubDropsForSlowClient(t *testing.T) {
	hub := NewHub("test", HubConfig{SendBuffer: 1}, zap.NewNop().Sugar())
	client := &Client{id: "slow", send: make(chan message, 1)}
	hub.register(client)

	assert.Equal(t, 1, hub.Broadcast(websocket.BinaryMessage, []byte{1}))
	assert.Equal(t, 0, hub.Broadcast(websocket.BinaryMessage, []byte{2}))

	hub.unregister(client)
	hub.unregister(client)
	assert.Equal(t, 0, hub.Clients())
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub("test", HubConfig{}, zap.NewNop().Sugar())
	conn := dial(t, hub)
	waitClients(t, hub, 1)

	hub.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

type previewFunc func() (*image.RGBA, error)

func (f previewFunc) Preview() (*image.RGBA, error) { return f() }

func TestPreviewServerStreamsJPEG(t *testing.T) {
	source := previewFunc(func() (*image.RGBA, error) {
		return testutil.SolidImage(16, 8, color.RGBA{R: 255, A: 255}), nil
	})
	hub := NewHub("preview", HubConfig{}, zap.NewNop().Sugar())
	preview := NewPreviewServer(source, PreviewConfig{FrameRate: 50, JPEGQuality: 90}, hub, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go preview.Run(ctx)

	conn := dial(t, hub)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
}

func TestPreviewSnapshotNotOpen(t *testing.T) {
	source := previewFunc(func() (*image.RGBA, error) { return nil, domain.ErrNotOpen })
	preview := NewPreviewServer(source, PreviewConfig{}, NewHub("p", HubConfig{}, zap.NewNop().Sugar()), zap.NewNop().Sugar())

	_, err := preview.Snapshot()
	assert.ErrorIs(t, err, domain.ErrNotOpen)
}

type fakeScanner struct {
	mu   sync.Mutex
	subs []chan domain.ScanEvent
	last *domain.ScanEvent
}

func (f *fakeScanner) Start(context.Context, domain.FacingMode) error { return nil }
func (f *fakeScanner) Stop()                                          {}
func (f *fakeScanner) Running() bool                                  { return true }
func (f *fakeScanner) Last() *domain.ScanEvent                        { return f.last }
func (f *fakeScanner) Stream() *domain.StreamInfo                     { return nil }

func (f *fakeScanner) Subscribe() (<-chan domain.ScanEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan domain.ScanEvent, 4)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeScanner) emit(e domain.ScanEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- e
	}
}

func (f *fakeScanner) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func TestScanEventServerRelaysEvents(t *testing.T) {
	scanner := &fakeScanner{last: &domain.ScanEvent{Result: domain.DecodeResult{Text: "OLD"}}}
	hub := NewHub("scan", HubConfig{}, zap.NewNop().Sugar())
	server := NewScanEventServer(scanner, hub, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Run(ctx)
	require.Eventually(t, func() bool { return scanner.subscribers() == 1 }, time.Second, 5*time.Millisecond)

	conn := dial(t, hub)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg ScanMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "last", msg.Type)
	assert.Equal(t, "OLD", msg.Event.Result.Text)

	waitClients(t, hub, 1)
	scanner.emit(domain.ScanEvent{SessionID: "s1", Result: domain.DecodeResult{Text: "ABC123", Format: domain.FormatQRCode}})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "scan", msg.Type)
	assert.Equal(t, "ABC123", msg.Event.Result.Text)
	assert.Equal(t, domain.FormatQRCode, msg.Event.Result.Format)
}

func TestEncodeScan(t *testing.T) {
	data, err := encodeScan("scan", &domain.ScanEvent{Result: domain.DecodeResult{Text: "x"}})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "scan", decoded["type"])
}
