package signal

import (
	"context"
	"encoding/json"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ScanMessage is the JSON frame sent to scanner clients.
type ScanMessage struct {
	Type  string            `json:"type"`
	Event *domain.ScanEvent `json:"event"`
}

// ScanEventServer relays scanner decode events to websocket clients. A new
// client first receives the most recent event, if any.
type ScanEventServer struct {
	hub     *Hub
	scanner ports.ScannerService
	logger  *zap.SugaredLogger
}

func NewScanEventServer(scanner ports.ScannerService, hub *Hub, logger *zap.SugaredLogger) *ScanEventServer {
	s := &ScanEventServer{
		hub:     hub,
		scanner: scanner,
		logger:  logger,
	}
	hub.OnConnect = s.sendLast
	return s
}

func (s *ScanEventServer) Hub() *Hub { return s.hub }

func (s *ScanEventServer) sendLast(c *Client) {
	last := s.scanner.Last()
	if last == nil {
		return
	}
	_, span := tracing.TraceWebSocketMessage(context.Background(), "last", c.ID())
	defer span.End()
	if data, err := encodeScan("last", last); err == nil {
		c.Send(websocket.TextMessage, data)
	}
}

// Run relays events until ctx is done.
func (s *ScanEventServer) Run(ctx context.Context) {
	events, cancel := s.scanner.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := encodeScan("scan", &event)
			if err != nil {
				s.logger.Errorw("failed to encode scan event", "error", err)
				continue
			}
			n := s.hub.Broadcast(websocket.TextMessage, data)
			s.logger.Debugw("scan event relayed", "text", event.Result.Text, "clients", n)
		}
	}
}

func encodeScan(kind string, event *domain.ScanEvent) ([]byte, error) {
	return json.Marshal(ScanMessage{Type: kind, Event: event})
}
