package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/btcsuite/go-socks/socks"
	"github.com/gorilla/websocket"
)

// WebSocketConfig describes how to reach an engine served over a websocket.
type WebSocketConfig struct {
	// URL is the ws:// or wss:// endpoint of the engine.
	URL string

	// Proxy is the address of an optional SOCKS5 proxy the connection is
	// made through, with its optional credentials.
	Proxy     string
	ProxyUser string
	ProxyPass string

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration

	// Header is sent with the handshake request.
	Header http.Header
}

// WebSocketTransport carries JSON envelopes in websocket text frames.
type WebSocketTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

// DialWebSocket connects to the engine described by cfg.
func DialWebSocket(ctx context.Context, cfg *WebSocketConfig) (*WebSocketTransport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if cfg.Proxy != "" {
		proxy := &socks.Proxy{
			Addr:     cfg.Proxy,
			Username: cfg.ProxyUser,
			Password: cfg.ProxyPass,
		}
		dialer.NetDial = proxy.Dial
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, err
	}
	log.Infof("Connected to engine at %s", cfg.URL)
	return &WebSocketTransport{conn: conn}, nil
}

// Send writes req as a single text frame.
func (t *WebSocketTransport) Send(req *Request) error {
	return t.conn.WriteJSON(req)
}

// Receive returns the next reply.  Frames that do not decode as a reply are
// logged and skipped.
func (t *WebSocketTransport) Receive() (*Reply, error) {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		var reply Reply
		if err := json.Unmarshal(data, &reply); err != nil {
			log.Warnf("Skipping malformed engine frame: %v", err)
			continue
		}
		return &reply, nil
	}
}

// Close sends a close frame and closes the connection.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		deadline := time.Now().Add(time.Second)
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		err = t.conn.Close()
	})
	return err
}
