package repl

import (
	"sort"
	"strings"
)

// Builtins are handled by the shell itself.
var Builtins = []string{"help", "history", "exit", "quit"}

// Completer provides command completion for the shell.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over the given command paths, such as
// "cache get". Builtins are always included.
func NewCompleter(commands []string) *Completer {
	all := append(append([]string{}, commands...), Builtins...)
	sort.Strings(all)
	return &Completer{commands: all}
}

// Complete returns completion suggestions for the given prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Commands returns every known command path.
func (c *Completer) Commands() []string {
	return append([]string(nil), c.commands...)
}
