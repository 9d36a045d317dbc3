package transport

import "github.com/go-errors/errors"

var (
	// ErrHandshakeFailed covers any failure of the identity handshake:
	// a malformed response, an unsigned or wrongly signed nonce, or a
	// transport error mid-exchange.
	ErrHandshakeFailed = errors.New("transport: handshake failed")

	// ErrClosed names a closed connection. WSConn does not return it:
	// after Close, its Send and Receive return the underlying
	// websocket error.
	ErrClosed = errors.New("transport: connection closed")
)
