// Package limits implements the execution fuel model: hard ceilings on
// command count, loop iterations, and function depth that stop runaway
// scripts. There is deliberately no wall-clock timeout; callers police
// time at the session boundary.
package limits

import "fmt"

// Defaults applied by Default().
const (
	DefaultMaxCommands       = 10000
	DefaultMaxLoopIterations = 10000
	DefaultMaxFunctionDepth  = 100
)

// Limits holds the configured ceilings. A zero ceiling means unbounded.
type Limits struct {
	MaxCommands       int
	MaxLoopIterations int
	MaxFunctionDepth  int
}

// Default returns the standard ceilings.
func Default() Limits {
	return Limits{
		MaxCommands:       DefaultMaxCommands,
		MaxLoopIterations: DefaultMaxLoopIterations,
		MaxFunctionDepth:  DefaultMaxFunctionDepth,
	}
}

// WithMaxCommands sets the command ceiling.
func (l Limits) WithMaxCommands(n int) Limits {
	l.MaxCommands = n
	return l
}

// WithMaxLoopIterations sets the loop iteration ceiling.
func (l Limits) WithMaxLoopIterations(n int) Limits {
	l.MaxLoopIterations = n
	return l
}

// WithMaxFunctionDepth sets the recursion ceiling.
func (l Limits) WithMaxFunctionDepth(n int) Limits {
	l.MaxFunctionDepth = n
	return l
}

// Kind identifies which ceiling tripped.
type Kind int

const (
	KindCommands Kind = iota
	KindLoopIterations
	KindFunctionDepth
)

// LimitError reports an exceeded ceiling. It is an interpreter-level
// failure: the session surfaces it in ExecResult.Error, not just stderr.
type LimitError struct {
	Kind  Kind
	Limit int
}

func (e *LimitError) Error() string {
	switch e.Kind {
	case KindCommands:
		return fmt.Sprintf("maximum command count exceeded (%d)", e.Limit)
	case KindLoopIterations:
		return fmt.Sprintf("maximum loop iterations exceeded (%d)", e.Limit)
	default:
		return fmt.Sprintf("maximum function depth exceeded (%d)", e.Limit)
	}
}

// Counters tracks consumption against a Limits. One Counters instance lives
// per session and is reset with it.
type Counters struct {
	Commands       int
	LoopIterations int
	FunctionDepth  int
}

// TickCommand admits one command dispatch.
func (c *Counters) TickCommand(l Limits) error {
	c.Commands++
	if l.MaxCommands > 0 && c.Commands > l.MaxCommands {
		return &LimitError{Kind: KindCommands, Limit: l.MaxCommands}
	}
	return nil
}

// TickLoop admits one loop iteration.
func (c *Counters) TickLoop(l Limits) error {
	c.LoopIterations++
	if l.MaxLoopIterations > 0 && c.LoopIterations > l.MaxLoopIterations {
		return &LimitError{Kind: KindLoopIterations, Limit: l.MaxLoopIterations}
	}
	return nil
}

// PushFunction admits one level of function call depth.
func (c *Counters) PushFunction(l Limits) error {
	if l.MaxFunctionDepth > 0 && c.FunctionDepth >= l.MaxFunctionDepth {
		return &LimitError{Kind: KindFunctionDepth, Limit: l.MaxFunctionDepth}
	}
	c.FunctionDepth++
	return nil
}

// PopFunction releases one level of function call depth.
func (c *Counters) PopFunction() {
	if c.FunctionDepth > 0 {
		c.FunctionDepth--
	}
}

// Reset clears all counters.
func (c *Counters) Reset() {
	*c = Counters{}
}
