// Package charm is minimilast CLI framework inspired by cobra and urfave/cli.
package charm

import (
	"errors"
	"flag"
	"os"
)

var (
	NeedHelp = errors.New("help")
	ErrNoRun = errors.New("no run method")
)

type Constructor func(Command, *flag.FlagSet) (Command, error)

type Command interface {
	Run([]string) error
}

type Spec struct {
	Name  string
	Usage string
	Short string
	Long  string
	New   Constructor
	// Hidden hides this command from help.
	Hidden bool
	// Hidden flags (comma-separated) marks these flags as hidden.
	HiddenFlags string
	children    []*Spec
	parent      *Spec
}

func (c *Spec) Add(child *Spec) {
	c.children = append(c.children, child)
	child.parent = c
}

func (c *Spec) lookupSub(name string) *Spec {
	for _, child := range c.children {
		if name == child.Name {
			return child
		}
	}
	return nil
}

// Root returns the top of the command tree containing c.
func (c *Spec) Root() *Spec {
	for c.parent != nil {
		c = c.parent
	}
	return c
}

// ExecRoot parses args against the command tree rooted at s and runs the
// command they select.  A command returning NeedHelp, or a -h flag, prints
// help for that command instead.
func (s *Spec) ExecRoot(args []string) error {
	path, rest, err := parse(s, args, nil)
	if err == nil {
		err = path.run(rest)
	}
	if err == NeedHelp && len(path) > 0 {
		displayHelp(os.Stderr, path, false)
		return nil
	}
	return err
}
