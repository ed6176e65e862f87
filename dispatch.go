package main

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// appender stores one finished record
type appender interface {
	Append(passphrase []byte, pmk PMK) error
}

// dispatcher hashes the dictionary in groups of Width passphrases. A
// group runs fully in parallel and must finish before the next group is
// read, which bounds the work in flight to Width.
type dispatcher struct {
	// Width is the group size; zero means runtime.NumCPU().
	Width      int
	SSID       []byte
	Iterations int
	// Derive defaults to derivePMK.
	Derive   deriveFunc
	Metrics  *metrics
	Progress *progress
}

func (d *dispatcher) width() int {
	if d.Width > 0 {
		return d.Width
	}
	return runtime.NumCPU()
}

// Run drains src into db. Cancellation of ctx is only observed between
// groups: a started group always finishes and its records are kept.
// Per-passphrase failures are logged and counted, never returned.
func (d *dispatcher) Run(ctx context.Context, src *passphraseSource, db appender) (runStats, error) {
	var (
		st      runStats
		written int64
		failed  int64
		start   = time.Now()
		width   = d.width()
		group   = make([][]byte, 0, width)
		t       = traverse.Limit(width)
	)
	derive := d.Derive
	if derive == nil {
		derive = derivePMK
	}
	for ctx.Err() == nil {
		group = group[:0]
		for len(group) < width {
			p, ok := src.Next()
			if !ok {
				break
			}
			st.Accepted++
			if d.Metrics != nil {
				d.Metrics.Accepted.Inc()
			}
			d.Progress.Accepted(st.Accepted, p)
			group = append(group, p)
		}
		if len(group) == 0 {
			break
		}
		groupStart := time.Now()
		err := t.Each(len(group), func(i int) error {
			if d.store(derive, db, group[i]) {
				atomic.AddInt64(&written, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
		if err != nil {
			log.Error.Printf("group of %d passphrases: %v", len(group), err)
		}
		if d.Metrics != nil {
			d.Metrics.GroupDuration.Observe(time.Since(groupStart).Seconds())
		}
	}
	if ctx.Err() != nil {
		log.Printf("interrupted: stopped after %d passphrases", st.Accepted)
	}
	st.Rejected = src.Rejected()
	st.Written = atomic.LoadInt64(&written)
	st.Failed = atomic.LoadInt64(&failed)
	st.Elapsed = time.Since(start)
	if d.Metrics != nil {
		d.Metrics.Rejected.Add(float64(st.Rejected))
	}
	return st, src.Err()
}

// store hashes one passphrase and appends its record
// A panic in derive or Append fails only this passphrase; traverse would
// otherwise re-raise it and take the whole run down.
func (d *dispatcher) store(derive deriveFunc, db appender, passphrase []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error.Printf("%q: panic: %v\n%s", passphrase, r, debug.Stack())
			d.failure("panic")
			ok = false
		}
	}()
	log.Level(2).Printf("Calculating PMK for %q.", passphrase)
	pmk, err := derive(passphrase, d.SSID, d.Iterations)
	if err != nil {
		log.Error.Printf("%q: %v", passphrase, err)
		d.failure("derive")
		return false
	}
	log.Level(3).Printf("PMK for %q is %x", passphrase, pmk[:])
	if err := db.Append(passphrase, pmk); err != nil {
		log.Error.Printf("%q: %v", passphrase, err)
		d.failure("append")
		return false
	}
	if d.Metrics != nil {
		d.Metrics.Written.Inc()
	}
	return true
}

func (d *dispatcher) failure(stage string) {
	if d.Metrics != nil {
		d.Metrics.Failures.WithLabelValues(stage).Inc()
	}
}
