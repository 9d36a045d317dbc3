package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/molt-labs/molt-core/identity"
	"github.com/molt-labs/molt-core/wire"
	"github.com/stretchr/testify/require"
)

func newTestWallet(t *testing.T) *identity.Wallet {
	t.Helper()
	w, err := identity.NewWallet()
	require.NoError(t, err)
	t.Cleanup(w.Destroy)
	return w
}

func TestDialUpgradeHandshakeAuthenticatesBothSides(t *testing.T) {
	serverWallet := newTestWallet(t)
	clientWallet := newTestWallet(t)

	serverConnCh := make(chan *WSConn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, serverWallet, 0)
		if err != nil {
			t.Errorf("server upgrade: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	clientConn, err := Dial(wsURL, clientWallet, 0)
	require.NoError(t, err)
	defer clientConn.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	require.True(t, clientConn.RemoteIdentity().Equal(serverWallet.Identity()))
	require.True(t, serverConn.RemoteIdentity().Equal(clientWallet.Identity()))
}

func TestSendReceiveRoundTrip(t *testing.T) {
	serverWallet := newTestWallet(t)
	clientWallet := newTestWallet(t)

	serverConnCh := make(chan *WSConn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, serverWallet, 0)
		if err != nil {
			t.Errorf("server upgrade: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	clientConn, err := Dial(wsURL, clientWallet, 0)
	require.NoError(t, err)
	defer clientConn.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sent := wire.Frame{Type: wire.TypeOrderRequest, Payload: []byte("hello")}
	require.NoError(t, clientConn.Send(ctx, sent))

	got, err := serverConn.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, sent.Type, got.Type)
	require.Equal(t, sent.Payload, got.Payload)
}

func TestReceiveRejectsOversizedFrame(t *testing.T) {
	serverWallet := newTestWallet(t)
	clientWallet := newTestWallet(t)

	serverConnCh := make(chan *WSConn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, serverWallet, 16)
		if err != nil {
			t.Errorf("server upgrade: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	clientConn, err := Dial(wsURL, clientWallet, 1024)
	require.NoError(t, err)
	defer clientConn.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	oversized := wire.Frame{Type: wire.TypeOrderRequest, Payload: make([]byte, 64)}
	require.NoError(t, clientConn.Send(ctx, oversized))

	_, err = serverConn.Receive(ctx)
	require.Error(t, err)
}
