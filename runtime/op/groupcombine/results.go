package groupcombine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/taksan/jaql"
	"github.com/taksan/jaql/jio"
	"github.com/taksan/jaql/runtime/expr/stage"
	"github.com/taksan/jaql/runtime/op/spill"
)

// mode selects where groups come from and which stages remain to be
// applied to them.
type mode int

const (
	// direct reads the accumulator; all three stages remain.
	direct mode = iota
	// partialOnly reads the partial table; partial and final remain.
	partialOnly
	// merged reads the spill chunks in key order; only final remains.
	merged
)

func (m mode) String() string {
	switch m {
	case direct:
		return "direct"
	case partialOnly:
		return "partial"
	case merged:
		return "merged"
	}
	return "unknown"
}

// producer flattens the output of the remaining stages over each group of
// its source into one sequence.
type producer struct {
	mode    mode
	iter    *TableIter
	merger  *spill.Merger
	initial stage.Function
	partial stage.Function
	final   stage.Function
	groups  prometheus.Counter
	inner   jio.Reader
}

func (a *Aggregator) newProducer(m mode, iter *TableIter, merger *spill.Merger) *producer {
	return &producer{
		mode:    m,
		iter:    iter,
		merger:  merger,
		initial: a.initial,
		partial: a.partial,
		final:   a.final,
		groups:  a.rctx.Metrics.Groups.WithLabelValues(m.String()),
	}
}

func (p *producer) Read() (*jaql.Value, error) {
	for {
		if p.inner != nil {
			val, err := p.inner.Read()
			if val != nil || err != nil {
				return val, err
			}
			p.inner = nil
		}
		inner, err := p.nextGroup()
		if inner == nil || err != nil {
			return nil, err
		}
		p.inner = inner
		p.groups.Inc()
	}
}

// nextGroup returns the final stage output for the next group or nil when
// the source is exhausted.
func (p *producer) nextGroup() (jio.Reader, error) {
	if p.mode == merged {
		key, err := p.merger.NextKey()
		if key == nil || err != nil {
			return nil, err
		}
		return p.final.Call(key, p.merger)
	}
	if !p.iter.Next() {
		return nil, nil
	}
	key := p.iter.Key()
	var vals jio.Reader = jio.NewArray(p.iter.Values()...)
	var err error
	if p.mode == direct {
		if vals, err = p.initial.Call(key, vals); err != nil {
			return nil, err
		}
	}
	if vals, err = p.partial.Call(key, vals); err != nil {
		return nil, err
	}
	return p.final.Call(key, vals)
}
