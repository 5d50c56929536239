// Package jtest runs groupCombine tests described in YAML files.
//
// A test names a built-in aggregation, gives NDJSON input pairs and the
// expected NDJSON output, and lists the limits to run under.  Every listed
// configuration must produce the same output, so a single file checks that
// the result does not depend on how much the operator spilled.
//
//	agg: count
//	input: |
//	  [1,"a"]
//	  [2,"b"]
//	  [1,"c"]
//	output: |
//	  {"key":1,"value":2}
//	  {"key":2,"value":1}
//
// Output lines are compared as a set unless ordered is true.  When error is
// set, the run must fail with an error containing that text instead.
package jtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taksan/jaql/jio"
	"github.com/taksan/jaql/jio/jsonio"
	"github.com/taksan/jaql/runtime"
	"github.com/taksan/jaql/runtime/expr/stage"
	"github.com/taksan/jaql/runtime/op/groupcombine"
	"go.uber.org/zap/zaptest"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

type JTest struct {
	Skip  string `yaml:"skip,omitempty"`
	Agg   string `yaml:"agg"`
	Keyed *bool  `yaml:"keyed,omitempty"`
	// Limits lists the configurations to run under.  If empty, the test
	// runs with the defaults and with every table flushed on each insertion.
	Limits  []groupcombine.Config `yaml:"limits,omitempty"`
	Input   string                `yaml:"input"`
	Output  string                `yaml:"output,omitempty"`
	Ordered bool                  `yaml:"ordered,omitempty"`
	Error   string                `yaml:"error,omitempty"`
}

// Load decodes the test in path.  Unknown fields are an error.
func Load(path string) (*JTest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d := yaml.NewDecoder(bytes.NewReader(b))
	d.KnownFields(true)
	var j JTest
	if err := d.Decode(&j); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty test", path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if j.Agg == "" {
		return nil, fmt.Errorf("%s: agg is required", path)
	}
	return &j, nil
}

func (j *JTest) ShouldSkip() string {
	return j.Skip
}

func (j *JTest) limits() []groupcombine.Config {
	if len(j.Limits) > 0 {
		return j.Limits
	}
	return []groupcombine.Config{groupcombine.DefaultConfig(), {}}
}

// Run runs every .yaml test in dir as a subtest of t.
func Run(t *testing.T, dir string) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatalf("no tests found in %s", dir)
	}
	for _, path := range paths {
		path := path
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			j, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if msg := j.ShouldSkip(); msg != "" {
				t.Skip(msg)
			}
			for k, conf := range j.limits() {
				conf := conf
				t.Run(fmt.Sprintf("limits%d", k), func(t *testing.T) {
					if err := j.RunConfig(t, conf); err != nil {
						t.Fatal(err)
					}
				})
			}
		})
	}
}

// RunConfig runs the test under conf and reports any mismatch as an error.
func (j *JTest) RunConfig(t *testing.T, conf groupcombine.Config) error {
	out, err := j.run(t, conf)
	if j.Error != "" {
		if err == nil {
			return fmt.Errorf("expected error containing %q, got output:\n%s", j.Error, out)
		}
		if !strings.Contains(err.Error(), j.Error) {
			return fmt.Errorf("expected error containing %q, got %q", j.Error, err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	expected, actual := lines(j.Output), lines(out)
	if !j.Ordered {
		slices.Sort(expected)
		slices.Sort(actual)
	}
	if !slices.Equal(expected, actual) {
		return fmt.Errorf("output mismatch with %+v\n=== expected ===\n%s\n=== actual ===\n%s",
			conf, strings.Join(expected, "\n"), strings.Join(actual, "\n"))
	}
	return nil
}

func (j *JTest) run(t *testing.T, conf groupcombine.Config) (string, error) {
	agg, err := stage.Lookup(j.Agg)
	if err != nil {
		return "", err
	}
	final := agg.Final
	if j.Keyed == nil || *j.Keyed {
		final = stage.Keyed(final)
	}
	rctx := runtime.NewContext(context.Background(), zaptest.NewLogger(t), t.TempDir(), nil)
	defer rctx.Cancel()
	a, err := groupcombine.New(rctx, jsonio.NewReader(strings.NewReader(j.Input)), agg.Initial, agg.Partial, final, conf)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	w := jsonio.NewWriter(jio.NopCloser(&buf))
	if err := jio.Copy(w, a); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func lines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
