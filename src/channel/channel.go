// Package channel moves dialogue text between the user and the controller.
package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Channel is one side of a conversation. Read returns io.EOF when the user
// has gone away.
type Channel interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
}

type line struct {
	text string
	err  error
}

// Console is a line-based text channel. Input is scanned on its own
// goroutine so a pending Read returns as soon as ctx is cancelled.
type Console struct {
	in     *bufio.Scanner
	out    io.Writer
	prompt string
	speak  string

	once  sync.Once
	lines chan line
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:     bufio.NewScanner(in),
		out:    out,
		prompt: "You: ",
		speak:  "Assistant: ",
		lines:  make(chan line),
	}
}

func (c *Console) scan() {
	defer close(c.lines)
	for c.in.Scan() {
		c.lines <- line{text: c.in.Text()}
	}
	if err := c.in.Err(); err != nil {
		c.lines <- line{err: err}
	}
}

func (c *Console) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(c.out, c.prompt); err != nil {
		return "", err
	}
	c.once.Do(func() { go c.scan() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		if l.err != nil {
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	}
}

func (c *Console) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "%s%s\n\n", c.speak, text)
	return err
}
