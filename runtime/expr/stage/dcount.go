package stage

import (
	"github.com/axiomhq/hyperloglog"
	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jcode"
	"github.com/taksan/jaql/jio"
	"github.com/taksan/jaql/jqe"
)

// The dcount family approximates the number of distinct values with a
// hyperloglog sketch.  Sketch turns raw values into a serialized sketch,
// MergeSketch unions serialized sketches, and Estimate unions them and
// returns the cardinality estimate.
var (
	Sketch      = &Func{Name: "sketch", Params: 2, Fn: reduce(sketch)}
	MergeSketch = &Func{Name: "merge", Params: 2, Fn: reduce(mergeSketches)}
	Estimate    = &Func{Name: "estimate", Params: 2, Fn: reduce(estimate)}
)

func sketch(vals jio.Reader) (*jaql.Value, error) {
	s := hyperloglog.New()
	var scratch []byte
	for {
		val, err := vals.Read()
		if err != nil {
			return nil, err
		}
		if val == nil {
			break
		}
		// Hash the encoding so values of different kinds with the same
		// payload count separately.
		scratch = jcode.Append(scratch[:0], val)
		s.Insert(scratch)
	}
	return marshalSketch(s)
}

func mergeSketches(vals jio.Reader) (*jaql.Value, error) {
	s, err := unionSketches(vals)
	if err != nil {
		return nil, err
	}
	return marshalSketch(s)
}

func estimate(vals jio.Reader) (*jaql.Value, error) {
	s, err := unionSketches(vals)
	if err != nil {
		return nil, err
	}
	return jaql.NewInt(int64(s.Estimate())), nil
}

func unionSketches(vals jio.Reader) (*hyperloglog.Sketch, error) {
	out := hyperloglog.New()
	for {
		val, err := vals.Read()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return out, nil
		}
		if val.Kind() != jaql.KindBytes {
			return nil, jqe.ErrInvalid("merge: value is not a sketch: %s", val)
		}
		var s hyperloglog.Sketch
		if err := s.UnmarshalBinary(val.Bytes()); err != nil {
			return nil, jqe.E(jqe.Invalid, "merge: %w", err)
		}
		if err := out.Merge(&s); err != nil {
			return nil, jqe.E(jqe.Invalid, "merge: %w", err)
		}
	}
}

func marshalSketch(s *hyperloglog.Sketch) (*jaql.Value, error) {
	b, err := s.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return jaql.NewBytes(b), nil
}
