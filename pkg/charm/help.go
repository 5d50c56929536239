package charm

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kr/text"
	"github.com/taksan/jaql/pkg/terminal"
)

var Help = &Spec{
	Name:  "help",
	Usage: "help [command]",
	Short: "display help for a command",
	Long: `
For help on the top-level command just type "help".
For help on a subcommand, type "help command" where command is the name of
the command.  For help on command nested further, type "help cmd1 cmd2" and
so forth.`,
	HiddenFlags: "v",
	New: func(parent Command, f *flag.FlagSet) (Command, error) {
		c := &HelpCommand{}
		f.BoolVar(&c.vflag, "v", false, "show hidden commands and flags")
		return c, nil
	},
}

type HelpCommand struct {
	vflag bool
}

// flagMap creates a map that maps a name to a boolean based on the existence
// of that name in the comma-separated string of flags.  Whitespace is removed
// from each name in the flags list.
func flagMap(flags string) map[string]bool {
	m := make(map[string]bool)
	for _, flag := range strings.Split(flags, ",") {
		if flag = strings.TrimSpace(flag); flag != "" {
			m[flag] = true
		}
	}
	return m
}

func (c *HelpCommand) search(args []string) (path, error) {
	parent, err := newInstance(nil, Help.Root())
	if err != nil {
		return nil, err
	}
	p := path{parent}
	for k, arg := range args {
		subcmd := parent.spec.lookupSub(arg)
		if subcmd == nil {
			return nil, fmt.Errorf("no such command: %s", strings.Join(args[:k+1], " "))
		}
		child, err := newInstance(parent.command, subcmd)
		if err != nil {
			return nil, err
		}
		p = append(p, child)
		parent = child
	}
	return p, nil
}

func (c *HelpCommand) Run(args []string) error {
	p, err := c.search(args)
	if err != nil {
		return err
	}
	displayHelp(os.Stdout, p, c.vflag)
	return nil
}

const tab = "    "

func formatParagraph(body string, lineWidth int) string {
	var chunks []string
	for _, paragraph := range strings.Split(strings.TrimSpace(body), "\n\n") {
		paragraph = text.Wrap(strings.TrimSpace(paragraph), lineWidth)
		chunks = append(chunks, text.Indent(paragraph, tab))
	}
	return strings.Join(chunks, "\n\n")
}

func header(heading string) string {
	if !terminal.IsTerminal(os.Stderr) {
		return heading
	}
	return "\033[1m" + heading + "\033[0m"
}

func helpItem(w io.Writer, heading, body string) {
	fmt.Fprintf(w, "%s\n%s%s\n\n", header(heading), tab, body)
}

func helpDesc(w io.Writer, heading, body string) {
	lineWidth := terminal.Width() - len(tab) - 5
	fmt.Fprintf(w, "%s\n%s\n\n", header(heading), formatParagraph(body, lineWidth))
}

func helpList(w io.Writer, heading string, lines []string) {
	fmt.Fprintf(w, "%s\n%s%s\n\n", header(heading), tab, strings.Join(lines, "\n"+tab))
}

func commandList(target *Spec, vflag bool) []string {
	var lines []string
	for _, cmd := range target.children {
		name := cmd.Name
		if cmd.Hidden {
			if !vflag {
				continue
			}
			name = "[" + name + "]"
		}
		lines = append(lines, name+" - "+cmd.Short)
	}
	return lines
}

// optionsSection lists the flags of the last command in p followed by the
// flags of each enclosing command, nearest first.
func optionsSection(p path, vflag bool) []string {
	options := p.last().options(vflag)
	if len(options) == 0 {
		options = []string{"no flags for this command"}
	}
	for k := len(p) - 2; k >= 0; k-- {
		parentOptions := p[k].options(vflag)
		if len(parentOptions) == 0 {
			continue
		}
		options = append(options, "", "["+p[:k+1].pathname()+" flags]")
		options = append(options, parentOptions...)
	}
	return options
}

func displayHelp(w io.Writer, p path, vflag bool) {
	spec := p.last().spec
	helpItem(w, "NAME", spec.Name+" - "+spec.Short)
	helpDesc(w, "USAGE", spec.Usage)
	helpList(w, "OPTIONS", optionsSection(p, vflag))
	if len(spec.children) > 0 {
		helpList(w, "COMMANDS", commandList(spec, vflag))
	}
	helpDesc(w, "DESCRIPTION", spec.Long)
}
