package root

import (
	"flag"

	"github.com/taksan/jaql/cli"
	"github.com/taksan/jaql/cli/logflags"
	"github.com/taksan/jaql/pkg/charm"
)

var Jaql = &charm.Spec{
	Name:  "jaql",
	Usage: "jaql <command> [options] [arguments...]",
	Short: "run jaql operators",
	Long: `
jaql is a command-line tool for running jaql operators over streams of
newline-delimited JSON.`,
	New: New,
}

type Command struct {
	charm.Command
	cli.Flags
	LogFlags logflags.Flags
}

func New(parent charm.Command, f *flag.FlagSet) (charm.Command, error) {
	c := &Command{}
	c.SetFlags(f)
	c.LogFlags.SetFlags(f)
	return c, nil
}

func (c *Command) Run(args []string) error {
	_, cancel, err := c.Init()
	if err != nil {
		return err
	}
	defer cancel()
	if len(args) == 0 {
		return charm.NeedHelp
	}
	return charm.ErrNoRun
}
