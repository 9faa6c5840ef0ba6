package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ReadPassword prints prompt to out and reads a line from in without echo.
// in must be a terminal; otherwise the password has to come from a flag.
func ReadPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	if !IsTerminal(in) {
		return "", Invalid("--password", "is required when stdin is not a terminal")
	}

	fmt.Fprint(out, prompt)
	b, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
