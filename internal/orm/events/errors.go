package events

import "errors"

var (
	// ErrMissingSnapshot is returned when a change kind lacks the snapshot it needs
	ErrMissingSnapshot = errors.New("missing snapshot")

	// ErrUnknownKind is returned for a change kind outside created, updated, deleted
	ErrUnknownKind = errors.New("unknown change kind")

	// ErrQueueNotStarted is returned when enqueueing before Start
	ErrQueueNotStarted = errors.New("queue not started")

	// ErrQueueClosed is returned when enqueueing after Shutdown or Stop
	ErrQueueClosed = errors.New("queue closed")
)
