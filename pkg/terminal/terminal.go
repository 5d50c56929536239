package terminal

import (
	"os"

	"golang.org/x/term"
)

const defaultWidth = 80

// Width returns the width of the terminal attached to stdout or, failing
// that, stderr.  It returns 80 when neither is a terminal.
func Width() int {
	for _, f := range []*os.File{os.Stdout, os.Stderr} {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
