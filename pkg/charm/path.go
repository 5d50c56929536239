package charm

import (
	"fmt"
	"strings"
)

type path []*instance

// parse walks down the command tree from spec, creating an instance and
// parsing flags at each level, until the remaining args no longer name a
// sub-command.
func parse(spec *Spec, args []string, parent Command) (path, []string, error) {
	var p path
	for {
		inst, err := newInstance(parent, spec)
		if err != nil {
			return p, nil, err
		}
		p = append(p, inst)
		rest, err := parseFlags(inst.flags, args)
		if err != nil {
			return p, nil, err
		}
		if len(rest) == 0 {
			return p, rest, nil
		}
		child := spec.lookupSub(rest[0])
		if child == nil {
			return p, rest, nil
		}
		spec, parent, args = child, inst.command, rest[1:]
	}
}

func (p path) run(args []string) error {
	err := p.last().command.Run(args)
	if err == ErrNoRun {
		if len(args) == 0 {
			err = fmt.Errorf("%q: requires a sub-command: %s", p.pathname(), p.subCommands())
		} else {
			err = fmt.Errorf("%q: no such sub-command %q: options are: %s", p.pathname(), args[0], p.subCommands())
		}
	}
	return err
}

func (p path) last() *instance {
	return p[len(p)-1]
}

func (p path) pathname() string {
	names := make([]string, 0, len(p))
	for _, sub := range p {
		names = append(names, sub.spec.Name)
	}
	return strings.Join(names, " ")
}

func (p path) subCommands() string {
	var names []string
	for _, spec := range p.last().spec.children {
		if !spec.Hidden {
			names = append(names, spec.Name)
		}
	}
	return strings.Join(names, " ")
}
