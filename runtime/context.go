package runtime

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Context provides states used by all operators to provide the outside
// context in which they are running.  The context owns the temporary files
// operators create through Temp and removes them on Cancel.
type Context struct {
	context.Context
	Logger  *zap.Logger
	Temp    TempFileProvider
	Metrics *Metrics
	cancel  context.CancelFunc
	temp    *TempDir
}

// NewContext returns a Context whose temporary files live in tempDir (the
// system default if empty) and whose metrics register with registerer (a
// private registry if nil).
func NewContext(ctx context.Context, logger *zap.Logger, tempDir string, registerer prometheus.Registerer) *Context {
	ctx, cancel := context.WithCancel(ctx)
	if logger == nil {
		logger = zap.NewNop()
	}
	temp := NewTempDir(tempDir)
	return &Context{
		Context: ctx,
		Logger:  logger,
		Temp:    temp,
		Metrics: NewMetrics(registerer),
		cancel:  cancel,
		temp:    temp,
	}
}

func DefaultContext() *Context {
	return NewContext(context.Background(), nil, "", nil)
}

// Cancel cancels the context and removes any temporary files created through
// the context's own provider.  Cancel must be called to ensure spill files
// are cleaned up.
func (c *Context) Cancel() error {
	c.cancel()
	return c.temp.Cleanup()
}
