package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type readRequest struct {
	secret bool
	reply  chan readResult
}

type readResult struct {
	line string
	err  error
}

// Prompter reads lines and masked secrets. Reads happen on one goroutine so
// a prompt can be abandoned when its context is done.
type Prompter struct {
	out  io.Writer
	reqs chan readRequest
}

// NewPrompter reads from in and writes prompts to out. Secrets are masked
// when in is a terminal.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{out: out, reqs: make(chan readRequest)}

	reader := bufio.NewReader(in)
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}

	go func() {
		for req := range p.reqs {
			var res readResult
			if req.secret && fd >= 0 {
				b, err := term.ReadPassword(fd)
				fmt.Fprintln(out)
				res = readResult{line: string(b), err: err}
			} else {
				line, err := reader.ReadString('\n')
				if err == io.EOF && line != "" {
					err = nil
				}
				res = readResult{line: strings.TrimRight(line, "\r\n"), err: err}
			}
			req.reply <- res
		}
	}()

	return p
}

// Line prints label and reads one line.
func (p *Prompter) Line(ctx context.Context, label string) (string, error) {
	return p.read(ctx, label, false)
}

// Secret prints label and reads one line without echo.
func (p *Prompter) Secret(ctx context.Context, label string) (string, error) {
	return p.read(ctx, label, true)
}

func (p *Prompter) read(ctx context.Context, label string, secret bool) (string, error) {
	if label != "" {
		fmt.Fprint(p.out, label)
	}

	req := readRequest{secret: secret, reply: make(chan readResult, 1)}
	select {
	case p.reqs <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
