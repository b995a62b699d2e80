// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus carries camera events from the capture path to interested
// consumers without ever blocking the producer.
package bus

import (
	"context"
	"errors"
)

// Message is an opaque event payload. Publishers use the typed events in events.go.
type Message interface{}

type Subscriber interface {
	// C returns a read-only message channel. It is closed on unsubscribe.
	C() <-chan Message
	// Close unsubscribes. Safe to call more than once.
	Close() error
}

// ErrUndelivered means no subscriber took the message.
var ErrUndelivered = errors.New("bus: message not delivered")

// Publisher is the send half of the bus. Implementations must not block and
// return ErrUndelivered when the message reached nobody.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
}

// Bus is the event transport abstraction.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// Discard is a Publisher that drops everything.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, string, Message) error { return ErrUndelivered }
