package voxlink

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsDialTimeout bounds the websocket dial. Handshake stalls above the
// socket layer are the watchdog's job, not the dialer's.
const wsDialTimeout = 10 * time.Second

// WebSocketTransport returns a TransportFactory backed by a gorilla
// websocket connection. This is the production transport; tests and
// embedded hosts inject their own.
func WebSocketTransport() TransportFactory {
	return func(cb TransportCallbacks) (Transport, error) {
		return &wsTransport{cb: cb}, nil
	}
}

type wsTransport struct {
	cb TransportCallbacks

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Open dials in the background and starts the read loop on success.
func (t *wsTransport) Open(url string) {
	go func() {
		dialer := websocket.Dialer{HandshakeTimeout: wsDialTimeout}
		conn, _, err := dialer.Dial(url, nil)
		if err != nil {
			t.cb.OnError(err)
			t.cb.OnClose()
			return
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.conn = conn
		t.mu.Unlock()

		t.cb.OnOpen()
		t.readLoop(conn)
	}()
}

func (t *wsTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.cb.OnError(err)
			}
			t.cb.OnClose()
			return
		}
		t.cb.OnMessage(string(data))
	}
}

// Send writes one text frame. Write failures surface through the read
// loop's teardown rather than here; Send is fire and forget by contract.
func (t *wsTransport) Send(text string) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		conn.Close()
	}
}

func (t *wsTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	if t.conn != nil {
		t.conn.Close()
	}
}
