package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// MempoolConfig configures the mempool websocket stream.
type MempoolConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the hash channel capacity. Mempool bursts are absorbed
	// here; when the buffer is full hashes are dropped, not blocked on.
	Buffer int
}

// DefaultMempoolConfig returns the default stream configuration.
func DefaultMempoolConfig() MempoolConfig {
	return MempoolConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            10000,
	}
}

// MempoolStream subscribes to eth_subscribe("newPendingTransactions") and
// delivers pending transaction hashes. The connection self-heals: read
// errors trigger reconnection with exponential backoff and a fresh
// subscription.
type MempoolStream struct {
	endpoint string
	config   MempoolConfig
	log      logrus.FieldLogger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// subID is the current subscription ID, replaced on reconnect.
	subID   string
	subIDMu sync.RWMutex

	hashes  chan string
	dropped atomic.Uint64

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewMempoolStream connects to the websocket endpoint and subscribes to
// pending transactions.
func NewMempoolStream(ctx context.Context, endpoint string, config *MempoolConfig, log logrus.FieldLogger) (*MempoolStream, error) {
	cfg := DefaultMempoolConfig()
	if config != nil {
		cfg = *config
	}

	s := &MempoolStream{
		endpoint: endpoint,
		config:   cfg,
		log:      log.WithField("component", "mempool"),
		hashes:   make(chan string, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		s.closeConn()
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Hashes returns the stream of pending transaction hashes. The channel
// is closed when the stream is closed.
func (s *MempoolStream) Hashes() <-chan string {
	return s.hashes
}

// Dropped reports how many hashes were discarded because the consumer
// fell behind.
func (s *MempoolStream) Dropped() uint64 {
	return s.dropped.Load()
}

// Close shuts down the stream and closes the hash channel.
func (s *MempoolStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)
	s.closeConn()
	s.wg.Wait()
	close(s.hashes)
	return nil
}

func (s *MempoolStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

func (s *MempoolStream) closeConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

// subscribe sends the eth_subscribe request and reads the confirmation
// synchronously. Called before readLoop starts (or while it is blocked
// reconnecting), so reading here does not race the read loop.
func (s *MempoolStream) subscribe() error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_subscribe",
		Params:  []interface{}{"newPendingTransactions"},
	}

	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read subscribe response: %w", err)
	}

	var resp subscribeResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return fmt.Errorf("parse subscribe response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("subscribe rejected: code=%d %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Result == "" {
		return fmt.Errorf("subscribe returned empty subscription id")
	}

	s.subIDMu.Lock()
	s.subID = resp.Result
	s.subIDMu.Unlock()

	s.log.WithField("subscription", resp.Result).Info("subscribed to pending transactions")
	return nil
}

func (s *MempoolStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

func (s *MempoolStream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	s.log.WithField("delay", delay).Warn("mempool stream lost, reconnecting")

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.log.WithError(err).Warn("reconnect failed, will retry")
		return
	}

	if err := s.subscribe(); err != nil {
		s.log.WithError(err).Warn("resubscribe failed, will retry")
		s.closeConn()
		return
	}
}

func (s *MempoolStream) handleMessage(message []byte) {
	var notif subscriptionNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "eth_subscription" {
		return
	}
	if notif.Params == nil {
		return
	}

	s.subIDMu.RLock()
	current := s.subID
	s.subIDMu.RUnlock()
	if notif.Params.Subscription != current {
		// Stale notification from a pre-reconnect subscription.
		return
	}

	var hash string
	if err := json.Unmarshal(notif.Params.Result, &hash); err != nil || hash == "" {
		return
	}

	select {
	case s.hashes <- hash:
	default:
		// The mempool outpaces the consumer; dropping a pending tx only
		// costs a missed opportunity, never correctness.
		s.dropped.Add(1)
	}
}

func (s *MempoolStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}

// JSON-RPC message types

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type subscribeResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      uint64    `json:"id"`
	Result  string    `json:"result"` // subscription ID
	Error   *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type subscriptionNotification struct {
	JSONRPC string              `json:"jsonrpc"`
	Method  string              `json:"method"`
	Params  *notificationParams `json:"params"`
}

type notificationParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}
