package transport

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/wire"
)

// DefaultMaxPayload is the point-to-point payload cap named in
// spec.md section 6 ("1 MiB for point-to-point").
const DefaultMaxPayload = wire.MaxMessageBytesP2P

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// WSConn is the default Conn implementation: one wire.Frame per
// websocket binary message. gorilla/websocket forbids concurrent
// writers on the same connection, so every Send serializes through
// writeMu, mirroring peer.go's single-writer-owns-the-socket
// convention without needing a dedicated writer goroutine.
type WSConn struct {
	ws         *websocket.Conn
	remote     identity.PeerIdentity
	maxPayload int

	writeMu  sync.Mutex
	closeOnce sync.Once
}

// wsRawConn adapts *websocket.Conn to the rawConn interface handshake
// needs, used only during connection setup before a remote identity is
// known.
type wsRawConn struct{ ws *websocket.Conn }

func (w wsRawConn) writeBinary(b []byte) error {
	return w.ws.WriteMessage(websocket.BinaryMessage, b)
}

func (w wsRawConn) readBinary() ([]byte, error) {
	_, data, err := w.ws.ReadMessage()
	return data, err
}

// Dial connects to addr and performs the identity handshake as self,
// returning a Conn authenticated to whatever identity answers.
func Dial(addr string, self *identity.Wallet, maxPayload int) (*WSConn, error) {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}

	ws, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, err
	}

	remote, err := handshake(wsRawConn{ws: ws}, self)
	if err != nil {
		ws.Close()
		return nil, err
	}

	return &WSConn{ws: ws, remote: remote, maxPayload: maxPayload}, nil
}

// Upgrade accepts an inbound HTTP connection as a websocket and
// performs the identity handshake as self, the server-side
// counterpart to Dial.
func Upgrade(w http.ResponseWriter, r *http.Request, self *identity.Wallet, maxPayload int) (*WSConn, error) {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	remote, err := handshake(wsRawConn{ws: ws}, self)
	if err != nil {
		ws.Close()
		return nil, err
	}

	return &WSConn{ws: ws, remote: remote, maxPayload: maxPayload}, nil
}

// Send serializes frame and writes it as a single websocket binary
// message, honoring ctx's deadline if one is set.
func (c *WSConn) Send(ctx context.Context, frame wire.Frame) error {
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, frame, c.maxPayload); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.ws.SetWriteDeadline(deadline)
	} else {
		c.ws.SetWriteDeadline(time.Time{})
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

// Receive reads the next websocket binary message and decodes it as a
// wire.Frame, honoring ctx's deadline if one is set.
func (c *WSConn) Receive(ctx context.Context) (wire.Frame, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.ws.SetReadDeadline(deadline)
	} else {
		c.ws.SetReadDeadline(time.Time{})
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return wire.Frame{}, err
	}
	return wire.ReadFrame(bytes.NewReader(data), c.maxPayload)
}

// RemoteIdentity returns the identity established during the
// handshake that produced this connection.
func (c *WSConn) RemoteIdentity() identity.PeerIdentity {
	return c.remote
}

// Close closes the underlying websocket connection. Safe to call more
// than once.
func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}
