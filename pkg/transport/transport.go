// Package transport is the "ordered, reliable message pipe" abstraction
// spec.md §6 asks for: the server authority and client engine exchange
// wire.Message bytes through a Pipe without caring whether it's backed by
// a websocket, an in-memory channel pair (for tests), or something else.
package transport

import "context"

// Pipe is one ordered, reliable, bidirectional byte-message connection.
type Pipe interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Listener accepts inbound Pipes, server side.
type Listener interface {
	Accept(ctx context.Context) (Pipe, error)
	Close() error
}

// Dialer opens an outbound Pipe, client side.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Pipe, error)
}
