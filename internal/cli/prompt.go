package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers for interactive commands. Secrets are read without
// echo when in is a terminal.
type prompter struct {
	in    *bufio.Reader
	out   io.Writer
	stdin *os.File // nil when in is not a terminal
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.stdin = f
	}
	return p
}

// line asks for a value, returning def on an empty answer.
func (p *prompter) line(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	return input, nil
}

// required asks until a non-empty value is given.
func (p *prompter) required(label string, secret bool) (string, error) {
	for {
		var v string
		var err error
		if secret {
			v, err = p.secret(label)
		} else {
			v, err = p.line(label, "")
		}
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintf(p.out, "  Error: %s is required\n", strings.ToLower(label))
	}
}

// secret asks for a value without echoing it on a terminal.
func (p *prompter) secret(label string) (string, error) {
	if p.stdin == nil {
		return p.line(label, "")
	}
	fmt.Fprintf(p.out, "%s: ", label)
	data, err := term.ReadPassword(int(p.stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// integer asks for a positive integer, returning def on an empty or invalid answer.
func (p *prompter) integer(label string, def int) (int, error) {
	s, err := p.line(label, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		fmt.Fprintf(p.out, "  Invalid number, using %d\n", def)
		return def, nil
	}
	return v, nil
}

// yes asks a y/N question.
func (p *prompter) yes(label string) (bool, error) {
	s, err := p.line(label+" [y/N]", "")
	if err != nil {
		return false, err
	}
	s = strings.ToLower(s)
	return s == "y" || s == "yes", nil
}
