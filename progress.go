package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/grailbio/base/log"
	"golang.org/x/term"
)

// DefaultProgressInterval is how many accepted passphrases pass between
// progress reports
const DefaultProgressInterval = 1000

// progress reports every Nth accepted passphrase. On a terminal it keeps
// a single status line; otherwise it logs.
type progress struct {
	w        io.Writer
	every    int64
	terminal bool
	drawn    bool
}

// progressFor draws on f when f is a terminal and nothing else is
// logging to it
func progressFor(f *os.File, every int64, verbosity int) *progress {
	return &progress{
		w:        f,
		every:    every,
		terminal: verbosity == 0 && term.IsTerminal(int(f.Fd())),
	}
}

func (p *progress) Accepted(n int64, passphrase []byte) {
	if p == nil || p.every <= 0 || n%p.every != 0 {
		return
	}
	if p.terminal {
		fmt.Fprintf(p.w, "\rkey no. %d: %s\x1b[K", n, passphrase)
		p.drawn = true
		return
	}
	log.Printf("key no. %d: %s", n, passphrase)
}

func (p *progress) Done(st runStats) {
	if p != nil && p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
	log.Printf("%d passphrases tested in %.2f seconds: %.2f passphrases/second",
		st.Accepted, st.Elapsed.Seconds(), st.Rate())
}

// runStats summarizes one precomputation run
type runStats struct {
	Accepted int64
	Rejected int64
	Written  int64
	Failed   int64
	Elapsed  time.Duration
}

// Rate returns accepted passphrases per second
func (s runStats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Accepted) / s.Elapsed.Seconds()
}
