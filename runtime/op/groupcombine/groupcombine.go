// Package groupcombine implements the groupCombine operator, an external
// memory group-by driven by three aggregation stages.
//
// Input pairs [key,value] accumulate in memory.  When the accumulator grows
// past its limits, each key's values are promoted through the initial stage
// into a partial table.  When the partial table in turn grows past the same
// limits, it is written as a sorted chunk to a spill file.  At the end of
// input, results come from whichever source holds the data: the accumulator
// if nothing was promoted, the partial table if nothing was spilled, and a
// k-way merge of the spill chunks otherwise.
package groupcombine

import (
	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jio"
	"github.com/taksan/jaql/jqe"
	"github.com/taksan/jaql/runtime"
	"github.com/taksan/jaql/runtime/expr/stage"
	"github.com/taksan/jaql/runtime/op/spill"
	"go.uber.org/zap"
)

const (
	spillPrefix = "jaql_group_temp"
	spillSuffix = "dat"
)

// Aggregator is a jio.Reader over the results of groupCombine.  The first
// call to Read consumes the entire input.
//
// Results come out in ascending key order only when the operator spilled.
// Otherwise they come out in the order keys were first seen by the table
// that produced them.
type Aggregator struct {
	rctx     *runtime.Context
	logger   *zap.Logger
	parent   jio.Reader
	initial  stage.Function
	partial  stage.Function
	final    stage.Function
	conf     Config
	accum    *Table
	partials *Table
	spill    *spill.File
	promoted bool
	out      jio.Reader
	err      error
	stats    Stats
}

// Stats describes the work done by an Aggregator.
type Stats struct {
	Pairs      int64
	Promotions int64
	Chunks     int64
	SpillBytes int64
}

// New returns an Aggregator over the pairs read from parent.  It fails
// without reading any input if a stage does not take exactly two parameters
// or conf is invalid.
func New(rctx *runtime.Context, parent jio.Reader, initial, partial, final stage.Function, conf Config) (*Aggregator, error) {
	if err := stage.Bind(initial, partial, final); err != nil {
		return nil, err
	}
	if err := conf.validate(); err != nil {
		return nil, jqe.E(jqe.Invalid, err)
	}
	return &Aggregator{
		rctx:     rctx,
		logger:   rctx.Logger.Named("groupcombine"),
		parent:   parent,
		initial:  initial,
		partial:  partial,
		final:    final,
		conf:     conf,
		accum:    NewTable(),
		partials: NewTable(),
	}, nil
}

func (a *Aggregator) Read() (*jaql.Value, error) {
	if a.err != nil {
		return nil, a.err
	}
	if a.out == nil {
		out, err := a.run()
		if err != nil {
			a.err = err
			return nil, err
		}
		a.out = out
	}
	val, err := a.out.Read()
	if err != nil {
		a.err = err
	}
	return val, err
}

func (a *Aggregator) Stats() Stats {
	return a.stats
}

// run consumes the input and returns the reader for the selected output
// path.
func (a *Aggregator) run() (jio.Reader, error) {
	for {
		if err := a.rctx.Err(); err != nil {
			return nil, err
		}
		val, err := a.parent.Read()
		if err != nil {
			return nil, err
		}
		if val == nil {
			break
		}
		key, v, err := splitPair(val)
		if err != nil {
			return nil, err
		}
		a.accum.Add(key, v)
		a.stats.Pairs++
		if a.exceeds(a.accum) {
			if err := a.promote(); err != nil {
				return nil, err
			}
		}
	}
	if !a.promoted {
		return a.newProducer(direct, a.accum.Iter(), nil), nil
	}
	if err := a.promote(); err != nil {
		return nil, err
	}
	if a.spill == nil {
		return a.newProducer(partialOnly, a.partials.Iter(), nil), nil
	}
	if err := a.flush(); err != nil {
		return nil, err
	}
	merger, err := spill.NewMerger(a.spill)
	if err != nil {
		return nil, err
	}
	a.logger.Info("merging spill file",
		zap.String("path", a.spill.Name()),
		zap.Int("chunks", a.spill.NumChunks()),
		zap.Int64("bytes", a.spill.Size()),
	)
	return a.newProducer(merged, nil, merger), nil
}

func splitPair(val *jaql.Value) (*jaql.Value, *jaql.Value, error) {
	if val.Kind() != jaql.KindArray || val.Len() != 2 {
		return nil, nil, jqe.ErrInvalid("groupCombine input must be a [key,value] pair: %s", val)
	}
	elems := val.Elements()
	return elems[0].Copy(), elems[1].Copy(), nil
}

func (a *Aggregator) exceeds(t *Table) bool {
	if t.NumKeys() == 0 {
		return false
	}
	return int64(t.MemSize()) >= int64(a.conf.MemoryLimit) || t.NumKeys() >= a.conf.KeyLimit
}

// promote moves the accumulator into the partial table by way of the
// initial stage, then spills the partial table if it has grown past the
// limits.
func (a *Aggregator) promote() error {
	if a.accum.NumKeys() == 0 {
		return nil
	}
	a.promoted = true
	a.stats.Promotions++
	a.rctx.Metrics.Promotions.Inc()
	a.logger.Debug("promoting accumulator",
		zap.Int("keys", a.accum.NumKeys()),
		zap.Int("memsize", a.accum.MemSize()),
	)
	it := a.accum.Iter()
	for it.Next() {
		key := it.Key()
		out, err := a.initial.Call(key, jio.NewArray(it.Values()...))
		if err != nil {
			return err
		}
		for {
			val, err := out.Read()
			if err != nil {
				return err
			}
			if val == nil {
				break
			}
			a.partials.Add(key, val.Copy())
		}
	}
	a.accum.Reset()
	if a.exceeds(a.partials) {
		return a.flush()
	}
	return nil
}

// flush writes the partial table as a sorted chunk to the spill file,
// creating the file on first use.
func (a *Aggregator) flush() error {
	if a.partials.NumKeys() == 0 {
		return nil
	}
	if a.spill == nil {
		f, err := a.rctx.Temp.CreateTempFile(spillPrefix, spillSuffix)
		if err != nil {
			return jqe.ErrIO(err)
		}
		if a.spill, err = spill.NewFile(f); err != nil {
			return err
		}
		a.logger.Debug("created spill file", zap.String("path", f.Name()))
	}
	before := a.spill.Size()
	if err := a.spill.WriteChunk(a.partials); err != nil {
		return err
	}
	n := a.spill.Size() - before
	a.stats.Chunks++
	a.stats.SpillBytes += n
	a.rctx.Metrics.Chunks.Inc()
	a.rctx.Metrics.SpillBytes.Add(float64(n))
	a.logger.Debug("spilled chunk",
		zap.Int("chunk", a.spill.NumChunks()-1),
		zap.Int("keys", a.partials.NumKeys()),
		zap.Int64("bytes", n),
	)
	a.partials.Reset()
	return nil
}
