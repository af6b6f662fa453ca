// Package shell implements the interactive command language: tokenizing a
// line, validating arity, and dispatching to a storage engine.
package shell

import (
	"fmt"
	"strings"

	"github.com/ridgedb/ridgedb/internal/storage"
)

// Tokenize splits a line on whitespace, treating a double-quoted segment as
// a single token with its quotes stripped. Unmatched quotes consume the
// rest of the line as one token.
func Tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	hasToken := false

	flush := func() {
		if hasToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasToken = false
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			hasToken = true
		case r == ' ' || r == '\t':
			if inQuotes {
				cur.WriteRune(r)
			} else {
				flush()
			}
		default:
			cur.WriteRune(r)
			hasToken = true
		}
	}
	flush()
	return tokens
}

// Result is the outcome of dispatching one command.
type Result struct {
	// Output is the text to print to the user, if any.
	Output string
	// ClearScreen requests an ANSI clear-screen sequence be written.
	ClearScreen bool
	// Exit requests the REPL loop terminate.
	Exit bool
}

// ErrUsage is returned when a command is called with the wrong arity.
type ErrUsage struct {
	Command string
	Usage   string
}

func (e *ErrUsage) Error() string {
	return fmt.Sprintf("usage: %s", e.Usage)
}

// ErrUnknownCommand is returned when the first token names no command.
type ErrUnknownCommand struct {
	Command string
}

func (e *ErrUnknownCommand) Error() string {
	return fmt.Sprintf("unknown command: %s", e.Command)
}

const helpText = `commands:
  set key value   store value under key
  get key         fetch the value stored under key
  del key         delete key
  help            show this message
  clear           clear the screen
  exit            leave the shell`

// Dispatch tokenizes and runs one line against engine.
func Dispatch(engine *storage.LSM, line string) (Result, error) {
	tokens := Tokenize(line)
	if len(tokens) == 0 {
		return Result{}, nil
	}

	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "set":
		if len(args) != 2 {
			return Result{}, &ErrUsage{Command: cmd, Usage: "set key value"}
		}
		if err := engine.Put([]byte(args[0]), []byte(args[1])); err != nil {
			return Result{}, err
		}
		return Result{Output: "OK"}, nil

	case "get":
		if len(args) != 1 {
			return Result{}, &ErrUsage{Command: cmd, Usage: "get key"}
		}
		status, value := engine.Get([]byte(args[0]))
		switch status {
		case storage.Found:
			return Result{Output: string(value)}, nil
		case storage.Deleted:
			return Result{Output: "(deleted)"}, nil
		default:
			return Result{Output: "(not found)"}, nil
		}

	case "del":
		if len(args) != 1 {
			return Result{}, &ErrUsage{Command: cmd, Usage: "del key"}
		}
		if err := engine.Remove([]byte(args[0])); err != nil {
			return Result{}, err
		}
		return Result{Output: "OK"}, nil

	case "help":
		return Result{Output: helpText}, nil

	case "clear":
		return Result{ClearScreen: true}, nil

	case "exit", "quit":
		return Result{Exit: true}, nil

	default:
		return Result{}, &ErrUnknownCommand{Command: cmd}
	}
}
