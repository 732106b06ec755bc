package ibkr

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// OrderEvent is one order-lifecycle update pushed by the gateway.
type OrderEvent struct {
	OrderID       string  `json:"order_id"`
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	SecType       string  `json:"sec_type"`
	Right         string  `json:"right"`
	Strike        float64 `json:"strike"`
	Expiry        string  `json:"expiry"`
	Side          string  `json:"side"`
	Status        string  `json:"status"`
	FillPrice     float64 `json:"fill_price"`
	FillQuantity  float64 `json:"fill_quantity"`
	Multiplier    int     `json:"multiplier"`
	Timestamp     int64   `json:"timestamp"`
}

// OrderStream is the gateway's order-event websocket feed for one account.
type OrderStream struct {
	cfg Config

	conn *websocket.Conn
	mu   sync.Mutex

	onOrderEvent func(event *OrderEvent)
	onError      func(err error)

	done chan struct{}
	// connDone is closed when the current connection drops, so the pumps
	// tied to it exit instead of outliving a reconnect.
	connDone    chan struct{}
	retryDelay  time.Duration
	isConnected bool
}

// NewOrderStream builds a stream for an account session.
func NewOrderStream(cfg Config) *OrderStream {
	return &OrderStream{
		cfg:        cfg,
		done:       make(chan struct{}),
		retryDelay: 5 * time.Second,
	}
}

// SetOrderEventHandler sets the handler for order updates.
func (s *OrderStream) SetOrderEventHandler(handler func(event *OrderEvent)) {
	s.onOrderEvent = handler
}

// SetErrorHandler sets the handler for stream errors.
func (s *OrderStream) SetErrorHandler(handler func(err error)) {
	s.onError = handler
}

// Connect dials the gateway websocket and subscribes to the account's
// order channel. Reconnects are handled internally until Close is called.
func (s *OrderStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isConnected {
		return nil
	}

	wsURL := fmt.Sprintf("ws://%s:%d/v1/api/ws", s.cfg.Host, s.cfg.Port)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to gateway websocket: %w", err)
	}

	s.conn = conn
	s.connDone = make(chan struct{})
	s.isConnected = true

	sub := map[string]interface{}{
		"subscribe": map[string]string{
			"channel": "orders",
			"account": s.cfg.AccountID,
		},
		"id": time.Now().UnixNano(),
	}
	if err := conn.WriteJSON(sub); err != nil {
		s.closeLocked()
		return fmt.Errorf("failed to subscribe to order channel: %w", err)
	}

	go s.readPump(ctx)
	go s.pingPump(conn, s.connDone)

	return nil
}

// Close tears the connection down and stops reconnecting.
func (s *OrderStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.closeLocked()
}

func (s *OrderStream) closeLocked() {
	if !s.isConnected {
		return
	}
	s.isConnected = false
	if s.connDone != nil {
		close(s.connDone)
		s.connDone = nil
	}
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *OrderStream) readPump(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.closeLocked()
		s.mu.Unlock()

		// Reconnect unless Close was called or the run was canceled.
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}
		go func() {
			for {
				select {
				case <-s.done:
					return
				case <-ctx.Done():
					return
				case <-time.After(s.retryDelay):
				}
				if err := s.Connect(ctx); err == nil {
					return
				}
			}
		}()
	}()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if s.onError != nil {
				s.onError(err)
			}
			return
		}
		s.handleMessage(message)
	}
}

func (s *OrderStream) handleMessage(message []byte) {
	var push struct {
		Topic string      `json:"topic"`
		Order *OrderEvent `json:"order"`
	}
	if err := json.Unmarshal(message, &push); err != nil {
		return
	}
	if push.Topic == "order_update" && push.Order != nil && s.onOrderEvent != nil {
		s.onOrderEvent(push.Order)
	}
}

// pingPump keeps one connection alive. It is bound to the connection it
// was started for and exits when that connection drops.
func (s *OrderStream) pingPump(conn *websocket.Conn, connDone chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-connDone:
			return
		case <-s.done:
			return
		}
	}
}
