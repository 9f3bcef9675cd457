// Package coordinating provides a synchronous, two-party, in-process
// transport used in place of a real network link. Two logical endpoints
// (a simulated user agent/client and a simulated server) hand messages
// back and forth exactly as a browser redirect would: a message posted by
// one party becomes immediately and exclusively available to the other
// party's next receive, and strict alternation is enforced.
//
// The transport is a pure rendezvous with capacity one in each direction;
// it performs no parsing or validation. It exists for tests and for
// reasoning about request/response pairing. A real deployment never uses
// it.
package coordinating

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/giantswarm/oauth-wrap/transport"
)

// ErrClosed is returned to any waiter when the link is torn down. Tearing
// down one side while the other is blocked releases the waiter with this
// terminal error rather than hanging.
var ErrClosed = errors.New("coordinating transport: link closed")

// ContractViolationError signals broken alternation: a party posted twice
// without the counterpart consuming in between. This is a programming or
// test error, fatal and never retryable.
type ContractViolationError struct {
	Endpoint string // name of the violating endpoint
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("coordinating transport: endpoint %q posted twice without the counterpart consuming", e.Endpoint)
}

// Link joins two endpoints. Each endpoint runs in its own execution
// context and blocks on the other.
type Link struct {
	client *Endpoint
	server *Endpoint
}

// NewLink creates a linked pair of endpoints.
func NewLink() *Link {
	done := make(chan struct{})
	client := &Endpoint{name: "client", inbox: make(chan *transport.Response, 1), done: done}
	server := &Endpoint{name: "server", inbox: make(chan *transport.Response, 1), done: done}
	client.peer = server
	server.peer = client
	l := &Link{client: client, server: server}
	client.link = l
	server.link = l
	return l
}

// Client returns the user-agent/client side of the link.
func (l *Link) Client() *Endpoint { return l.client }

// Server returns the server side of the link.
func (l *Link) Server() *Endpoint { return l.server }

// Close tears the link down. Any endpoint blocked in Receive is released
// with ErrClosed. Close is idempotent.
func (l *Link) Close() {
	l.client.closeOnce.Do(func() {
		close(l.client.done)
	})
}

// Endpoint is one party of the link. Post hands a response to the
// counterpart; Receive blocks until the counterpart posts.
type Endpoint struct {
	name  string
	link  *Link
	peer  *Endpoint
	inbox chan *transport.Response

	done      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	outstanding bool // posted but not yet consumed by the peer
}

// Post makes resp the counterpart's next received message. Posting again
// before the counterpart consumes is a contract violation. Posting on a
// closed link returns ErrClosed.
func (e *Endpoint) Post(ctx context.Context, resp *transport.Response) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	e.mu.Lock()
	if e.outstanding {
		e.mu.Unlock()
		return &ContractViolationError{Endpoint: e.name}
	}
	e.outstanding = true
	e.mu.Unlock()

	// The inbox has capacity one and outstanding tracking guarantees it is
	// empty here, so the send cannot block on a live link.
	select {
	case e.peer.inbox <- resp:
		return nil
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		e.mu.Lock()
		e.outstanding = false
		e.mu.Unlock()
		return ctx.Err()
	}
}

// Receive blocks until the counterpart posts, the link closes, or ctx is
// cancelled. Each posted message is delivered exactly once, in order.
func (e *Endpoint) Receive(ctx context.Context) (*transport.Response, error) {
	select {
	case resp := <-e.inbox:
		e.peer.consumed()
		return resp, nil
	case <-e.done:
		// Drain a message that raced with close so it is not lost silently.
		select {
		case resp := <-e.inbox:
			e.peer.consumed()
			return resp, nil
		default:
		}
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver implements transport.Transport by posting toward the counterpart.
func (e *Endpoint) Deliver(ctx context.Context, resp *transport.Response) error {
	return e.Post(ctx, resp)
}

// Close tears down the whole link. Either endpoint may initiate teardown;
// the counterpart's blocked calls are released with ErrClosed.
func (e *Endpoint) Close() {
	e.link.Close()
}

// consumed clears the alternation marker after the peer took our message.
func (e *Endpoint) consumed() {
	e.mu.Lock()
	e.outstanding = false
	e.mu.Unlock()
}
