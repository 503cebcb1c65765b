package dashboard

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// PromptConfirmer asks on out and reads the answer from in.
// Only "y" and "yes" (any case) confirm.
type PromptConfirmer struct {
	in  io.Reader
	out io.Writer

	once  sync.Once
	lines chan string
}

func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: in, out: out, lines: make(chan string)}
}

// Confirm returns false when ctx ends first. A line typed after that
// answers the next prompt.
func (p *PromptConfirmer) Confirm(ctx context.Context, message string) bool {
	p.once.Do(func() { go p.readLines() })
	fmt.Fprintf(p.out, "%s [y/N]: ", message)

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return false
	case line, ok := <-p.lines:
		if !ok {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

// readLines is the only reader of in; it closes lines at EOF.
func (p *PromptConfirmer) readLines() {
	r := bufio.NewReader(p.in)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			p.lines <- line
		}
		if err != nil {
			close(p.lines)
			return
		}
	}
}
