package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
)

// generate precomputes PMKs for every word in the dictionary and appends
// them to the hash file, creating it if needed.
func generate(ctx context.Context, cfg Config) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.SetLevel(cfg.logLevel())

	// Interrupts stop the run between groups; what was hashed is kept
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	dict, err := openDictionary(cfg.Dictionary)
	if err != nil {
		return err
	}
	defer fileio.CloseAndReport(dict, &err)

	ssid := []byte(cfg.SSID)
	db, err := openOrCreateDB(ctx, cfg.Database, ssid)
	if err != nil {
		return err
	}
	defer fileio.CloseAndReport(db, &err)

	m := newMetrics()
	if cfg.MetricsAddr != "" {
		m.serve(ctx, cfg.MetricsAddr)
	}

	d := &dispatcher{
		Width:      cfg.Workers,
		SSID:       ssid,
		Iterations: cfg.Iterations,
		Metrics:    m,
		Progress:   progressFor(os.Stderr, cfg.Progress, cfg.Verbose),
	}
	log.Printf("%d CPUs online, hashing %d passphrases at a time.", runtime.NumCPU(), d.width())

	st, err := d.Run(ctx, newPassphraseSource(dict), db)
	d.Progress.Done(st)
	if st.Failed > 0 {
		log.Error.Printf("%d of %d passphrases could not be stored", st.Failed, st.Accepted)
	}
	return err
}
