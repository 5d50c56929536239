package stage

import (
	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jio"
	"github.com/taksan/jaql/jqe"
)

var (
	Identity = &Func{Name: "identity", Params: 2, Fn: identity}
	Count    = &Func{Name: "count", Params: 2, Fn: reduce(count)}
	Sum      = &Func{Name: "sum", Params: 2, Fn: reduce(sum)}
	Min      = &Func{Name: "min", Params: 2, Fn: reduce(pick(-1))}
	Max      = &Func{Name: "max", Params: 2, Fn: reduce(pick(1))}
	Collect  = &Func{Name: "collect", Params: 2, Fn: reduce(collect)}
	Concat   = &Func{Name: "concat", Params: 2, Fn: reduce(concat)}
)

func identity(_ *jaql.Value, vals jio.Reader) (jio.Reader, error) {
	return vals, nil
}

// reducer consumes a sequence and returns at most one value.  A nil value
// means the output sequence is empty.
type reducer func(jio.Reader) (*jaql.Value, error)

// reduce defers the reduction until the result is first read so that
// stage output stays lazy.
func reduce(fn reducer) func(*jaql.Value, jio.Reader) (jio.Reader, error) {
	return func(_ *jaql.Value, vals jio.Reader) (jio.Reader, error) {
		return &deferred{fn: fn, vals: vals}, nil
	}
}

type deferred struct {
	fn   reducer
	vals jio.Reader
	done bool
}

func (d *deferred) Read() (*jaql.Value, error) {
	if d.done {
		return nil, nil
	}
	d.done = true
	return d.fn(d.vals)
}

func count(vals jio.Reader) (*jaql.Value, error) {
	var n int64
	for {
		val, err := vals.Read()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return jaql.NewInt(n), nil
		}
		n++
	}
}

// sum adds ints exactly and switches to float once a float is seen.
func sum(vals jio.Reader) (*jaql.Value, error) {
	var i int64
	var f float64
	var isFloat bool
	for {
		val, err := vals.Read()
		if err != nil {
			return nil, err
		}
		if val == nil {
			break
		}
		switch val.Kind() {
		case jaql.KindInt:
			i += val.Int()
		case jaql.KindFloat:
			isFloat = true
			f += val.Float()
		case jaql.KindNull:
		default:
			return nil, jqe.ErrInvalid("sum: non-numeric value %s", val)
		}
	}
	if isFloat {
		return jaql.NewFloat(f + float64(i)), nil
	}
	return jaql.NewInt(i), nil
}

// pick returns a reducer keeping the least (dir < 0) or greatest (dir > 0)
// value in the total order.
func pick(dir int) reducer {
	return func(vals jio.Reader) (*jaql.Value, error) {
		var best *jaql.Value
		for {
			val, err := vals.Read()
			if err != nil {
				return nil, err
			}
			if val == nil {
				return best, nil
			}
			if best == nil || jaql.Compare(val, best)*dir > 0 {
				best = val.Copy()
			}
		}
	}
}

func collect(vals jio.Reader) (*jaql.Value, error) {
	var elems []jaql.Value
	for {
		val, err := vals.Read()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return jaql.NewArray(elems), nil
		}
		elems = append(elems, *val.Copy())
	}
}

// concat flattens arrays into one array.  Other values are appended as
// elements.
func concat(vals jio.Reader) (*jaql.Value, error) {
	var elems []jaql.Value
	for {
		val, err := vals.Read()
		if err != nil {
			return nil, err
		}
		if val == nil {
			return jaql.NewArray(elems), nil
		}
		if val.Kind() != jaql.KindArray {
			elems = append(elems, *val.Copy())
			continue
		}
		for _, elem := range val.Elements() {
			elems = append(elems, *elem.Copy())
		}
	}
}

// Keyed wraps fn so that each value it produces is emitted as a record
// {key:<key>,value:<value>}.
func Keyed(fn Function) Function {
	return &keyed{fn}
}

type keyed struct {
	Function
}

func (k *keyed) Call(key *jaql.Value, vals jio.Reader) (jio.Reader, error) {
	out, err := k.Function.Call(key, vals)
	if err != nil {
		return nil, err
	}
	return &keyedReader{key: key.Copy(), reader: out}, nil
}

func (k *keyed) String() string {
	return "keyed(" + name(k.Function) + ")"
}

type keyedReader struct {
	key    *jaql.Value
	reader jio.Reader
}

func (k *keyedReader) Read() (*jaql.Value, error) {
	val, err := k.reader.Read()
	if val == nil || err != nil {
		return nil, err
	}
	return jaql.NewRecord([]jaql.Field{
		{Name: "key", Value: *k.key.Copy()},
		{Name: "value", Value: *val.Copy()},
	}), nil
}
