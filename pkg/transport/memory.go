package transport

import (
	"context"
	"fmt"
)

// memoryPipe is an in-process Pipe backed by buffered channels, the same
// shape as the teacher's InMemoryQueue (pkg/queue/memory.go) generalized
// to a two-way pipe. NewMemoryPipePair exists for tests that need a
// transport without a real socket.
type memoryPipe struct {
	send   chan []byte
	recv   chan []byte
	closed chan struct{}
}

// NewMemoryPipePair returns two Pipes wired to each other: whatever a
// sends, b receives, and vice versa.
func NewMemoryPipePair(bufferSize int) (a, b Pipe) {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	ab := make(chan []byte, bufferSize)
	ba := make(chan []byte, bufferSize)
	closed := make(chan struct{})

	pa := &memoryPipe{send: ab, recv: ba, closed: closed}
	pb := &memoryPipe{send: ba, recv: ab, closed: closed}
	return pa, pb
}

func (p *memoryPipe) Send(ctx context.Context, data []byte) error {
	select {
	case p.send <- data:
		return nil
	case <-p.closed:
		return fmt.Errorf("transport: pipe closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *memoryPipe) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.recv:
		return data, nil
	case <-p.closed:
		return nil, fmt.Errorf("transport: pipe closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *memoryPipe) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}
