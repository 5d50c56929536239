package groupcombine

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/taksan/jaql/cmd/jaql/root"
	"github.com/taksan/jaql/jio"
	"github.com/taksan/jaql/jio/jsonio"
	"github.com/taksan/jaql/pkg/charm"
	"github.com/taksan/jaql/runtime"
	"github.com/taksan/jaql/runtime/expr/stage"
	"github.com/taksan/jaql/runtime/op/groupcombine"
	"go.uber.org/multierr"
)

var Cmd = &charm.Spec{
	Name:  "groupcombine",
	Usage: "groupcombine [options] [file ...]",
	Short: "group key/value pairs with a combinable aggregation",
	Long: `
The groupcombine command reads [key,value] pairs as newline-delimited JSON
from the named files, or standard input if none are given or a file is "-",
and groups the values by key.  Each group is reduced by the aggregation given
with -agg, one of: ` + strings.Join(stage.Names(), ", ") + `.

Values are held in memory until a table grows past -memlimit bytes or
-keylimit keys.  Past that point, values are reduced early and then written
in sorted runs to a temporary file in -tempdir, and the runs are merged at
the end of input.  Results come out sorted by key when this happens and in
order of first appearance otherwise.

Settings may also be read from a YAML file given with -config, with the keys
memory_limit, key_limit and temp_dir.  Flags given on the command line take
precedence over the file.`,
	New: New,
}

type Command struct {
	*root.Command
	flags      *flag.FlagSet
	agg        string
	conf       groupcombine.Config
	configPath string
	tempDir    string
	keyed      bool
	stats      bool
	outputPath string
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{
		Command: parent.(*root.Command),
		flags:   f,
		conf:    groupcombine.DefaultConfig(),
	}
	f.StringVar(&c.agg, "agg", "values", "aggregation to apply to each group")
	f.Var(&c.conf.MemoryLimit, "memlimit", "size at which an in-memory table is flushed (e.g., 64MiB)")
	f.IntVar(&c.conf.KeyLimit, "keylimit", c.conf.KeyLimit, "number of keys at which an in-memory table is flushed")
	f.StringVar(&c.configPath, "config", "", "YAML file of settings")
	f.StringVar(&c.tempDir, "tempdir", "", "directory for spill files (default is the system temp directory)")
	f.BoolVar(&c.keyed, "keyed", true, "emit {key,value} records rather than bare results")
	f.BoolVar(&c.stats, "stats", false, "print spill statistics to stderr when done")
	f.StringVar(&c.outputPath, "o", "", "write output to the named file rather than standard output")
	return c, nil
}

func (c *Command) Run(args []string) error {
	ctx, cleanup, err := c.Init()
	if err != nil {
		return err
	}
	defer cleanup()
	if err := c.loadConfig(); err != nil {
		return err
	}
	agg, err := stage.Lookup(c.agg)
	if err != nil {
		return err
	}
	final := agg.Final
	if c.keyed {
		final = stage.Keyed(final)
	}
	logger, err := c.LogFlags.Open()
	if err != nil {
		return err
	}
	defer logger.Sync()
	registry := prometheus.NewRegistry()
	rctx := runtime.NewContext(ctx, logger, c.tempDir, registry)
	input, err := openInputs(args)
	if err != nil {
		return multierr.Append(err, rctx.Cancel())
	}
	err = c.run(rctx, input, agg, final)
	err = multierr.Combine(err, input.Close(), rctx.Cancel())
	if err != nil || !c.stats {
		return err
	}
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	return printStats(os.Stderr, families)
}

func (c *Command) run(rctx *runtime.Context, input jio.Reader, agg *stage.Aggregate, final stage.Function) error {
	a, err := groupcombine.New(rctx, input, agg.Initial, agg.Partial, final, c.conf)
	if err != nil {
		return err
	}
	out, err := c.openOutput()
	if err != nil {
		return err
	}
	w := jsonio.NewWriter(out)
	return multierr.Append(jio.Copy(w, a), w.Close())
}

func (c *Command) openOutput() (io.WriteCloser, error) {
	if c.outputPath == "" || c.outputPath == "-" {
		return jio.NopCloser(os.Stdout), nil
	}
	return os.Create(c.outputPath)
}

// openInputs returns a reader over the concatenated pairs in the named
// files.  The returned ReadCloser closes every file.
func openInputs(paths []string) (jio.ReadCloser, error) {
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	var readers []jio.Reader
	var files multiCloser
	for _, path := range paths {
		if path == "-" {
			readers = append(readers, jsonio.NewReader(os.Stdin))
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, multierr.Append(err, files.Close())
		}
		files = append(files, f)
		readers = append(readers, jsonio.NewReader(f))
	}
	return jio.NewReadCloser(jio.ConcatReader(readers...), files), nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var err error
	for _, c := range m {
		err = multierr.Append(err, c.Close())
	}
	return err
}

func printStats(w io.Writer, families []*dto.MetricFamily) error {
	for _, family := range families {
		for _, m := range family.GetMetric() {
			name := family.GetName()
			var labels []string
			for _, pair := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", pair.GetName(), pair.GetValue()))
			}
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			if _, err := fmt.Fprintf(w, "%s %g\n", name, m.GetCounter().GetValue()); err != nil {
				return err
			}
		}
	}
	return nil
}
