// Package core provides shared functionality for shellbox builtins.
package core

import (
	"fmt"
	"io"
	"strings"
)

// Exit codes following POSIX conventions
const (
	ExitSuccess  = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNotFound = 127
)

// Stdio holds the standard I/O streams for a command.
// This allows for easy testing by injecting mock streams.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Errorf writes a formatted error message to stderr.
func (s *Stdio) Errorf(format string, args ...any) {
	fmt.Fprintf(s.Err, format, args...)
}

// Printf writes a formatted message to stdout.
func (s *Stdio) Printf(format string, args ...any) {
	fmt.Fprintf(s.Out, format, args...)
}

// Print writes a message to stdout.
func (s *Stdio) Print(args ...any) {
	fmt.Fprint(s.Out, args...)
}

// Println writes a message to stdout with a newline.
func (s *Stdio) Println(args ...any) {
	fmt.Fprintln(s.Out, args...)
}

// UsageError prints a usage error and returns ExitUsage.
func UsageError(stdio *Stdio, command, message string) int {
	stdio.Errorf("%s: %s\n", command, message)
	return ExitUsage
}

// FileError prints a file-related error and returns ExitFailure.
func FileError(stdio *Stdio, command, path string, err error) int {
	stdio.Errorf("%s: %s: %v\n", command, path, err)
	return ExitFailure
}

// ParseBoolFlags parses short boolean flags (e.g., -abc) and returns remaining args.
func ParseBoolFlags(stdio *Stdio, command string, args []string, flags map[byte]*bool) ([]string, int) {
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i+1:]...)
			break
		}
		if len(arg) > 1 && arg[0] == '-' && !strings.HasPrefix(arg, "--") {
			for _, c := range arg[1:] {
				target, ok := flags[byte(c)]
				if !ok {
					return nil, UsageError(stdio, command, "invalid option -- '"+string(c)+"'")
				}
				if target != nil {
					*target = true
				}
			}
		} else {
			rest = append(rest, arg)
		}
	}
	return rest, ExitSuccess
}
