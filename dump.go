package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// dump writes the SSID and every record of a hash file to w, one
// "passphrase<TAB>pmk" line per record
func dump(path string, w io.Writer) (err error) {
	r, err := openReader(path)
	if err != nil {
		return err
	}
	defer fileio.CloseAndReport(r, &err)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# ssid %q\n", r.SSID())
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			bw.Flush()
			return err
		}
		fmt.Fprintln(bw, rec)
	}
	return bw.Flush()
}

type verifyStats struct {
	Records    int64
	Mismatched int64
}

// verify recomputes the PMK of every record against the SSID in the
// header, width records at a time
func verify(ctx context.Context, path string, width, iterations int) (st verifyStats, err error) {
	if width <= 0 {
		width = runtime.NumCPU()
	}
	r, err := openReader(path)
	if err != nil {
		return st, err
	}
	defer fileio.CloseAndReport(r, &err)

	ssid := r.SSID()
	var (
		mismatched int64
		group      = make([]Record, 0, width)
		t          = traverse.Limit(width)
		readErr    error
	)
	for ctx.Err() == nil && readErr == nil {
		group = group[:0]
		for len(group) < width {
			rec, err := r.Next()
			if err != nil {
				if err != io.EOF {
					readErr = err
				}
				break
			}
			group = append(group, rec)
		}
		if len(group) == 0 {
			break
		}
		st.Records += int64(len(group))
		err := t.Each(len(group), func(i int) error {
			rec := group[i]
			pmk, err := derivePMK(rec.Passphrase, ssid, iterations)
			if err != nil {
				return err
			}
			if !bytes.Equal(pmk[:], rec.PMK[:]) {
				log.Error.Printf("PMK mismatch for %q: have %x, want %x", rec.Passphrase, rec.PMK[:], pmk[:])
				atomic.AddInt64(&mismatched, 1)
			}
			return nil
		})
		if err != nil {
			return st, err
		}
	}
	st.Mismatched = atomic.LoadInt64(&mismatched)
	if readErr != nil {
		return st, readErr
	}
	if st.Mismatched > 0 {
		return st, errors.E(errors.Integrity, fmt.Sprintf("%d of %d records have a wrong PMK", st.Mismatched, st.Records))
	}
	return st, nil
}
