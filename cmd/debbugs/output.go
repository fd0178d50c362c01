package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/smnsjas/go-debbugs/bug"
)

// printer writes command output, colouring severities when w is a
// terminal.
type printer struct {
	w      io.Writer
	colors map[bug.Severity]*color.Color
	dim    *color.Color
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		return p
	}

	p.colors = map[bug.Severity]*color.Color{
		bug.Critical:  color.New(color.FgRed, color.Bold),
		bug.Grave:     color.New(color.FgRed, color.Bold),
		bug.Serious:   color.New(color.FgRed),
		bug.Important: color.New(color.FgYellow),
		bug.Normal:    color.New(color.Reset),
		bug.Minor:     color.New(color.FgCyan),
		bug.Wishlist:  color.New(color.FgBlue),
	}
	p.dim = color.New(color.FgHiBlack)
	for _, c := range p.colors {
		c.EnableColor()
	}
	p.dim.EnableColor()
	return p
}

func (p *printer) severity(s bug.Severity) string {
	if c, ok := p.colors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}

func (p *printer) faint(s string) string {
	if p.dim == nil {
		return s
	}
	return p.dim.Sprint(s)
}

// report prints one summary line for r.
func (p *printer) report(r *bug.Report) {
	state := ""
	switch {
	case r.Archived:
		state = " " + p.faint("(archived)")
	case r.Done:
		state = " " + p.faint("(done)")
	}

	tags := ""
	if len(r.Tags) > 0 {
		tags = " [" + strings.Join(r.Tags, " ") + "]"
	}

	fmt.Fprintf(p.w, "#%d %s %s: %s%s%s\n", r.BugNum, p.severity(r.Severity), r.Package, r.Subject, tags, state)
}

func (p *printer) ints(ids []int) {
	for _, id := range ids {
		fmt.Fprintln(p.w, id)
	}
}

// log prints the messages of one bug.
func (p *printer) log(id int, logs []*bug.Log, raw bool) {
	fmt.Fprintf(p.w, "=== #%d (%d messages) ===\n", id, len(logs))
	for _, l := range logs {
		fmt.Fprintln(p.w, p.faint(fmt.Sprintf("--- message %d ---", l.MsgNum)))
		if raw {
			fmt.Fprintf(p.w, "%s\n\n%s\n", l.Header, l.Body)
			continue
		}

		if from, err := l.From(); err == nil {
			if from.Name != "" {
				fmt.Fprintf(p.w, "From: %s <%s>\n", from.Name, from.Address)
			} else {
				fmt.Fprintf(p.w, "From: %s\n", from.Address)
			}
		}
		if date, err := l.Date(); err == nil {
			fmt.Fprintf(p.w, "Date: %s\n", date.Format("2006-01-02 15:04:05 -0700"))
		}
		fmt.Fprintf(p.w, "Subject: %s\n\n", l.Subject())

		text, err := l.Text()
		if err != nil {
			text = l.Body
		}
		fmt.Fprintln(p.w, strings.TrimRight(text, "\n"))
	}
}
