package charm

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCommand struct {
	name  string
	value string
	runs  *[]string
}

func (c *testCommand) Run(args []string) error {
	if c.name == "root" && len(args) > 0 {
		return ErrNoRun
	}
	*c.runs = append(*c.runs, c.name+":"+c.value)
	*c.runs = append(*c.runs, args...)
	return nil
}

func newTree(runs *[]string) *Spec {
	newCmd := func(name string) Constructor {
		return func(parent Command, f *flag.FlagSet) (Command, error) {
			c := &testCommand{name: name, runs: runs}
			f.StringVar(&c.value, "x", "def", "a test flag")
			return c, nil
		}
	}
	root := &Spec{Name: "root", Usage: "root [cmd]", Short: "root command", New: newCmd("root")}
	root.Add(&Spec{Name: "sub", Usage: "sub [args]", Short: "a sub-command", New: newCmd("sub")})
	root.Add(&Spec{Name: "secret", Short: "hidden", Hidden: true, New: newCmd("secret")})
	return root
}

func TestExecRoot(t *testing.T) {
	var runs []string
	root := newTree(&runs)
	require.NoError(t, root.ExecRoot([]string{"-x", "r", "sub", "-x", "s", "a", "b"}))
	assert.Equal(t, []string{"sub:s", "a", "b"}, runs)

	runs = nil
	require.NoError(t, root.ExecRoot(nil))
	assert.Equal(t, []string{"root:def"}, runs)
}

func TestNoSuchSubCommand(t *testing.T) {
	var runs []string
	err := newTree(&runs).ExecRoot([]string{"nope"})
	assert.EqualError(t, err, `"root": no such sub-command "nope": options are: sub`)
}

func TestBadFlag(t *testing.T) {
	var runs []string
	err := newTree(&runs).ExecRoot([]string{"sub", "-y"})
	assert.ErrorContains(t, err, "sub: flag provided but not defined: -y")
	assert.Empty(t, runs)
}

func TestHelpOutput(t *testing.T) {
	var runs []string
	root := newTree(&runs)
	p, _, err := parse(root, []string{"sub"}, nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	displayHelp(&buf, p, false)
	out := buf.String()
	assert.Contains(t, out, "sub - a sub-command")
	assert.Contains(t, out, `-x a test flag (default "def")`)
	assert.Contains(t, out, "[root flags]")

	p, _, err = parse(root, nil, nil)
	require.NoError(t, err)
	buf.Reset()
	displayHelp(&buf, p, false)
	assert.Contains(t, buf.String(), "sub - a sub-command")
	assert.NotContains(t, buf.String(), "secret")
}

func TestFormatParagraph(t *testing.T) {
	out := formatParagraph("\naaaaaa bbbbbb\n\ncc\n", 9)
	assert.Equal(t, "    aaaaaa\n    bbbbbb\n\n    cc", out)
}
