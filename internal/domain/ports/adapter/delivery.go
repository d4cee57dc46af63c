package adapter

import "context"

// Deliverer hands completed-job output to one transport (chat client, web
// outbox, ...). MaxMessageSize bounds a single send; the worker splits longer
// output into ordered chunks before calling Deliver.
type Deliverer interface {
	// Source is the payload "source" value this transport serves.
	Source() string
	Deliver(ctx context.Context, userID, text string) error
	MaxMessageSize() int
}
