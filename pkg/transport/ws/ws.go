// Package ws is the reference transport.Pipe implementation, grounded in
// the retrieval-pack websocket session handler
// (Mikko-Finell-mine-and-die/server/internal/net/ws/session.go) and the
// teacher's own TCP server loop shape (pkg/servers/tcp.go): an upgrade
// handler feeds accepted connections to a channel Listener.Accept drains,
// and a Dialer wraps websocket.DefaultDialer for the client side.
package ws

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/solstice-games/syncstep/pkg/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Pipe wraps a single *websocket.Conn as a transport.Pipe.
type Pipe struct {
	conn *websocket.Conn
}

func newPipe(conn *websocket.Conn) *Pipe { return &Pipe{conn: conn} }

func (p *Pipe) Send(ctx context.Context, data []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := p.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("ws: writing message: %w", err)
	}
	return nil
}

func (p *Pipe) Receive(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := p.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("ws: reading message: %w", err)
	}
	return data, nil
}

func (p *Pipe) Close() error { return p.conn.Close() }

// Listener is an http.Handler that upgrades every request and hands the
// resulting Pipe to whoever calls Accept next. acceptQueue is bounded so a
// burst of connecting clients can't grow it unbounded; once full, new
// upgrades are closed immediately rather than blocking the HTTP handler.
type Listener struct {
	pipes chan *Pipe
	done  chan struct{}
}

func NewListener(acceptQueue int) *Listener {
	if acceptQueue <= 0 {
		acceptQueue = 16
	}
	return &Listener{
		pipes: make(chan *Pipe, acceptQueue),
		done:  make(chan struct{}),
	}
}

// ServeHTTP implements http.Handler, upgrading the request to a websocket
// connection. Register it on whatever mux path the admin/server wiring
// chooses for the sync endpoint.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	select {
	case l.pipes <- newPipe(conn):
	case <-l.done:
		conn.Close()
	default:
		conn.Close()
	}
}

func (l *Listener) Accept(ctx context.Context) (transport.Pipe, error) {
	select {
	case p := <-l.pipes:
		return p, nil
	case <-l.done:
		return nil, fmt.Errorf("ws: listener closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) Close() error {
	close(l.done)
	return nil
}

// Dialer connects out to a ws(s):// sync endpoint.
type Dialer struct{}

func (Dialer) Dial(ctx context.Context, addr string) (transport.Pipe, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dialing %s: %w", addr, err)
	}
	return newPipe(conn), nil
}
