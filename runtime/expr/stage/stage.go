// Package stage defines the functions applied at each tier of a
// combiner-style aggregation.  A Function maps a key and a sequence of values
// to a new sequence of values.  The same logical group may be fed through a
// Function several times as data is progressively combined, so the initial,
// partial and final functions of one aggregation must agree: applying final
// to any nesting of partial over initial results for any partitioning of a
// key's values yields the single-pass result.
package stage

import (
	"fmt"

	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jio"
	"github.com/taksan/jaql/jqe"
)

// Function is an aggregation stage.  Implementations must not retain vals
// beyond the returned Reader's lifetime and must not mutate the values read
// from it.
type Function interface {
	// NumParams returns the declared number of parameters.  Only functions
	// of two parameters (key and values) can be bound as stages.
	NumParams() int
	Call(key *jaql.Value, vals jio.Reader) (jio.Reader, error)
}

// Bind checks that every function can serve as a stage.
func Bind(fns ...Function) error {
	for _, fn := range fns {
		if fn == nil {
			return jqe.ErrInvalid("stage function is nil")
		}
		if n := fn.NumParams(); n != 2 {
			return jqe.ErrInvalid("function must have two parameters: %s has %d", name(fn), n)
		}
	}
	return nil
}

func name(fn Function) string {
	if s, ok := fn.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", fn)
}

// Func adapts a Go function to the Function interface.  Params is the
// declared parameter count and is reported as is, so a Func may describe a
// function that Bind rejects.
type Func struct {
	Name   string
	Params int
	Fn     func(key *jaql.Value, vals jio.Reader) (jio.Reader, error)
}

var _ Function = (*Func)(nil)

func (f *Func) NumParams() int {
	return f.Params
}

func (f *Func) Call(key *jaql.Value, vals jio.Reader) (jio.Reader, error) {
	return f.Fn(key, vals)
}

func (f *Func) String() string {
	return f.Name
}

// Aggregate groups the three stages of one aggregation.
type Aggregate struct {
	Initial Function
	Partial Function
	Final   Function
}

// Lookup returns the named built-in aggregation.
func Lookup(name string) (*Aggregate, error) {
	switch name {
	case "values":
		return &Aggregate{Identity, Identity, Identity}, nil
	case "count":
		return &Aggregate{Count, Sum, Sum}, nil
	case "sum":
		return &Aggregate{Sum, Sum, Sum}, nil
	case "min":
		return &Aggregate{Min, Min, Min}, nil
	case "max":
		return &Aggregate{Max, Max, Max}, nil
	case "collect":
		return &Aggregate{Collect, Concat, Concat}, nil
	case "dcount":
		return &Aggregate{Sketch, MergeSketch, Estimate}, nil
	}
	return nil, jqe.ErrInvalid("unknown aggregation: %q", name)
}

// Names lists the built-in aggregations accepted by Lookup.
func Names() []string {
	return []string{"values", "count", "sum", "min", "max", "collect", "dcount"}
}
