package dummypush

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/cmrsapp/console/core/notification"
)

// Transport is an in-memory push transport for tests and offline development.
// It reports connected immediately on Subscribe; Publish injects payloads as
// if they arrived over the wire.
type Transport struct {
	mu        sync.Mutex
	onMessage func([]byte)
	up        func(bool)
	closed    bool
}

var _ notification.Transport = (*Transport)(nil)

func Open() *Transport { return new(Transport) }

func (t *Transport) Subscribe(identifier string, onMessage func(payload []byte), up func(connected bool)) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("push transport closed")
	}
	t.onMessage = onMessage
	t.up = up
	t.mu.Unlock()

	up(true)
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Publish delivers a raw payload to the subscriber, if any.
func (t *Transport) Publish(payload []byte) {
	t.mu.Lock()
	onMessage := t.onMessage
	closed := t.closed
	t.mu.Unlock()
	if closed || onMessage == nil {
		return
	}
	onMessage(payload)
}

// Drop simulates a lost connection followed by an immediate re-establish.
func (t *Transport) Drop() {
	t.mu.Lock()
	up := t.up
	closed := t.closed
	t.mu.Unlock()
	if closed || up == nil {
		return
	}
	up(false)
	up(true)
}
