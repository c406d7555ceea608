package dispatch

import (
	"context"

	"github.com/kilianp07/civicdispatch/core/compose"
	"github.com/kilianp07/civicdispatch/core/model"
)

// Delivery is everything a transport needs to submit one report to one target.
type Delivery struct {
	Request model.DispatchRequest
	Target  model.DispatchTarget
	Message compose.Message
}

// Transport submits a report to a single target. A nil error means the target
// accepted the report. Implementations must be safe for concurrent use.
type Transport interface {
	Deliver(ctx context.Context, d Delivery) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, d Delivery) error

func (f TransportFunc) Deliver(ctx context.Context, d Delivery) error { return f(ctx, d) }
