// Package queue defines the durable-queue contract the Worker and Dispatcher
// consume, independent of any particular backend.
package queue

import "context"

// Message is one received queue message, carrying a body and the opaque
// receipt handle needed to ack or extend it.
type Message struct {
	Body      string
	Receipt   string
	MessageID string

	// Attempts is the queue's own redelivery counter for this message,
	// supplied by the backend (e.g. SQS's ApproximateReceiveCount).
	Attempts int
}

// Depth is the Dispatcher's view of outstanding work: visible messages plus
// messages currently leased to some receiver (in flight).
type Depth struct {
	Visible  int64
	InFlight int64
}

// Client is the queue contract the mirror core consumes (§6). Implementations
// need not be safe for concurrent use by more than one Worker at a time; each
// Worker owns its own Client.
type Client interface {
	// Receive long-polls for up to maxMessages messages, waiting up to
	// waitSeconds for at least one to arrive.
	Receive(ctx context.Context, waitSeconds, maxMessages int32) ([]Message, error)

	// Ack deletes the message identified by receipt, permanently removing it
	// from the queue. Only called after every record in the message has been
	// processed successfully.
	Ack(ctx context.Context, receipt string) error

	// Extend pushes out the visibility deadline of the message identified by
	// receipt by the given duration, in seconds.
	Extend(ctx context.Context, receipt string, seconds int32) error

	// Depth returns the queue's current approximate backlog.
	Depth(ctx context.Context) (Depth, error)
}
