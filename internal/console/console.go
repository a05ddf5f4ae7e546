// Package console implements the interactive prompts used by stages and
// by `tinyorch prompt-enter`. Every prompt is skipped when stdin is not
// a terminal, so scripts never block on a missing operator.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// DefaultEnterMessage is shown by WaitEnter when no message is given.
const DefaultEnterMessage = "Press Enter to continue... "

// Console reads answers from In and writes prompts to Out.
type Console struct {
	In  io.Reader
	Out io.Writer

	// Interactive reports whether In is attached to an operator.
	Interactive bool

	reader *bufio.Reader
}

// New returns a Console on stdin and stderr.
func New() *Console {
	fd := os.Stdin.Fd()
	return &Console{
		In:          os.Stdin,
		Out:         os.Stderr,
		Interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

func (c *Console) readLine() (string, error) {
	if c.reader == nil {
		c.reader = bufio.NewReader(c.In)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Confirm asks a yes/no question. It returns true only for "y" or "yes"
// (case-insensitive). A non-interactive console or EOF counts as no.
func (c *Console) Confirm(question string) bool {
	if !c.Interactive {
		return false
	}
	fmt.Fprintf(c.Out, "%s [y/N]: ", question)
	answer, err := c.readLine()
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// WaitEnter shows message (or DefaultEnterMessage) and waits for a line.
// It returns immediately when the console is not interactive; EOF ends
// the wait quietly.
func (c *Console) WaitEnter(message string) {
	if !c.Interactive {
		return
	}
	if message == "" {
		message = DefaultEnterMessage
	}
	fmt.Fprint(c.Out, message)
	_, _ = c.readLine()
}
