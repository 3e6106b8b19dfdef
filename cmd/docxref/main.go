package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"docxref/internal/errors"
)

// Process exit codes.
const (
	exitClean     = 0
	exitFindings  = 1
	exitFatal     = 2
	exitCancelled = 130
)

// exitError carries a specific exit code out of a command. A nil err means
// the command already reported everything it had to say.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the root command with args and maps the outcome to an exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err == nil {
		return exitClean
	}

	var ee *exitError
	if stderrors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	var coded *errors.Error
	if stderrors.As(err, &coded) && coded.Hint != "" {
		fmt.Fprintf(stderr, "Hint: %s\n", coded.Hint)
	}
	return exitFatal
}
