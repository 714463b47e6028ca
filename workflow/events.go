package workflow

import (
	"context"
	"time"
)

// Event notifies an observer of one state transition. Events are a
// notification sink for live progress, never a control input.
type Event struct {
	TicketID  string    `json:"ticket_id"`
	Stage     Stage     `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer consumes progress events. Implementations must not block the run;
// slow sinks should buffer or drop internally.
type Observer interface {
	OnEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}
