// Package collections wires every collection package into one dispatcher.
package collections

import (
	"github.com/warp/finance-gate/finance"
	"github.com/warp/finance-gate/generic"
	"github.com/warp/finance-gate/roster"
)

// Deps is everything the registered pipelines read.
type Deps struct {
	Reader generic.Reader
	Clock  generic.Clock
	Policy finance.Policy
}

// NewDispatcher returns a dispatcher with the finance and roster
// collections registered.
func NewDispatcher(deps Deps, opts ...generic.DispatcherOption) *generic.Dispatcher {
	if deps.Clock == nil {
		deps.Clock = generic.SystemClock{}
	}
	d := generic.NewDispatcher(opts...)
	finance.Register(d, finance.Deps{Reader: deps.Reader, Clock: deps.Clock, Policy: deps.Policy})
	roster.Register(d, roster.Deps{Reader: deps.Reader, Clock: deps.Clock})
	return d
}
