package login

import (
	"fmt"
	"io"
	"strings"
)

// PlainReporter renders the TIME_WAIT countdown as plain text, one
// carriage-returned line per tick. It is the fallback for non-interactive
// terminals and --plain.
type PlainReporter struct {
	w    io.Writer
	port int
}

// NewPlainReporter writes countdown progress to w.
func NewPlainReporter(w io.Writer) *PlainReporter {
	return &PlainReporter{w: w}
}

func (r *PlainReporter) Start(port, budget int) {
	r.port = port
	fmt.Fprintf(r.w, "\nPort %d is in TIME_WAIT state (from a recent login).\n", port)
	fmt.Fprintf(r.w, "Waiting up to %d seconds for the port to become available...\n", budget)
	fmt.Fprintf(r.w, "Press Ctrl+C to cancel and use a different port instead.\n\n")
}

func (r *PlainReporter) Tick(remaining int) {
	fmt.Fprintf(r.w, "\rWaiting... %d seconds remaining", remaining)
}

func (r *PlainReporter) Finish(available bool) {
	// Clear the countdown line before the verdict.
	fmt.Fprintf(r.w, "\r%s\r", strings.Repeat(" ", 50))
	if available {
		fmt.Fprintf(r.w, "Port %d is now available!\n", r.port)
	}
}
