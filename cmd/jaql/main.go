package main

import (
	"fmt"
	"os"

	"github.com/taksan/jaql/cmd/jaql/groupcombine"
	"github.com/taksan/jaql/cmd/jaql/root"
	"github.com/taksan/jaql/pkg/charm"
)

func main() {
	root.Jaql.Add(groupcombine.Cmd)
	root.Jaql.Add(charm.Help)
	if err := root.Jaql.ExecRoot(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
