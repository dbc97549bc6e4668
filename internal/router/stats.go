package router

import "sync/atomic"

// Stats counts routing outcomes and handler failures. All fields are
// safe for concurrent reads while the dispatch loop runs.
type Stats struct {
	Dispatched         atomic.Int64
	StateContinuations atomic.Int64
	Interactive        atomic.Int64
	Commands           atomic.Int64
	Plain              atomic.Int64
	Ignored            atomic.Int64
	UnknownCommands    atomic.Int64
	HandlerErrors      atomic.Int64
}

// Snapshot is a plain-value copy of the counters for display.
type Snapshot struct {
	Dispatched         int64
	StateContinuations int64
	Interactive        int64
	Commands           int64
	Plain              int64
	Ignored            int64
	UnknownCommands    int64
	HandlerErrors      int64
}

// Stats returns a point-in-time copy of the routing counters.
func (d *Dispatcher) Stats() Snapshot {
	return Snapshot{
		Dispatched:         d.stats.Dispatched.Load(),
		StateContinuations: d.stats.StateContinuations.Load(),
		Interactive:        d.stats.Interactive.Load(),
		Commands:           d.stats.Commands.Load(),
		Plain:              d.stats.Plain.Load(),
		Ignored:            d.stats.Ignored.Load(),
		UnknownCommands:    d.stats.UnknownCommands.Load(),
		HandlerErrors:      d.stats.HandlerErrors.Load(),
	}
}
