package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/flock"
	"github.com/grailbio/base/log"
)

type fileLock interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// hashDB is the single writer of a hash database file. Appends from many
// goroutines are serialized so each record lands contiguously.
type hashDB struct {
	path string
	ssid []byte
	lock fileLock

	mu      sync.Mutex
	f       *os.File
	size    int64
	records int64
}

// createDB creates a new hash file bound to ssid. It fails if the file
// already exists.
func createDB(ctx context.Context, path string, ssid []byte) (*hashDB, error) {
	return withLock(ctx, path, func() (*hashDB, error) {
		return create(path, ssid, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND)
	})
}

// openForAppend opens an existing hash file for appending. The header is
// read and checked through the same handle that later appends use.
func openForAppend(ctx context.Context, path string, ssid []byte) (*hashDB, error) {
	return withLock(ctx, path, func() (*hashDB, error) {
		return openAppend(path, ssid)
	})
}

// openOrCreateDB resumes an existing hash file, or creates one when the
// path is missing or empty.
func openOrCreateDB(ctx context.Context, path string, ssid []byte) (*hashDB, error) {
	return withLock(ctx, path, func() (*hashDB, error) {
		fi, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			log.Printf("File %s does not exist, creating.", path)
			return create(path, ssid, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND)
		case err != nil:
			return nil, errors.E("failed to stat hash file", path, err)
		case fi.Size() == 0:
			log.Printf("File %s is empty, creating.", path)
			return create(path, ssid, os.O_WRONLY|os.O_TRUNC|os.O_APPEND)
		}
		log.Printf("File %s exists, appending new data.", path)
		return openAppend(path, ssid)
	})
}

func withLock(ctx context.Context, path string, open func() (*hashDB, error)) (*hashDB, error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(ctx); err != nil {
		return nil, errors.E("failed to lock hash file", path, err)
	}
	db, err := open()
	if err != nil {
		if uerr := lock.Unlock(); uerr != nil {
			log.Error.Printf("unlock %s.lock: %v", path, uerr)
		}
		return nil, err
	}
	db.lock = lock
	return db, nil
}

func create(path string, ssid []byte, flag int) (*hashDB, error) {
	hdr, err := newHeader(ssid)
	if err != nil {
		return nil, err
	}
	b, err := hdr.MarshalBinary()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.E(errors.Exists, "hash file", path, err)
		}
		return nil, errors.E("failed to create hash file", path, err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return nil, errors.E("failed to write header", path, err)
	}
	return &hashDB{
		path: path,
		ssid: append([]byte(nil), ssid...),
		f:    f,
		size: int64(len(b)),
	}, nil
}

func openAppend(path string, ssid []byte) (_ *hashDB, err error) {
	if err := validateSSID(ssid); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0)
	if err != nil {
		return nil, errors.E("failed to open hash file", path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
		}
	}()
	hdr, err := readHeader(f)
	if err != nil {
		return nil, errors.E(path, err)
	}
	if !bytes.Equal(hdr.SSIDBytes(), ssid) {
		return nil, errors.E(errors.Precondition, fmt.Sprintf(
			"specified SSID %q and the SSID in the output file (%q) do not match; create a new file, or change SSID to match",
			ssid, hdr.SSIDBytes()))
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.E("failed to stat hash file", path, err)
	}
	return &hashDB{
		path: path,
		ssid: append([]byte(nil), ssid...),
		f:    f,
		size: fi.Size(),
	}, nil
}

// Append writes one record. A failed write is rolled back to the last
// complete record so earlier records stay readable.
func (db *hashDB) Append(passphrase []byte, pmk PMK) error {
	if err := validatePassphrase(passphrase); err != nil {
		return err
	}
	rec := encodeRecord(passphrase, pmk)

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.f == nil {
		return errors.E(errors.Precondition, "hash file is closed", db.path)
	}
	n, err := db.f.Write(rec)
	if err != nil {
		if n > 0 {
			if terr := db.f.Truncate(db.size); terr != nil {
				return errors.E(errors.Integrity, "failed to roll back partial record", db.path, fmt.Sprintf("(%v)", terr), err)
			}
		}
		return errors.E("failed to write record", db.path, err)
	}
	db.size += int64(n)
	db.records++
	return nil
}

// Records returns the number of records appended through db
func (db *hashDB) Records() int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.records
}

// SSID returns the network name the file is bound to
func (db *hashDB) SSID() []byte {
	return db.ssid
}

func (db *hashDB) Close() (err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.f == nil {
		return nil
	}
	f := db.f
	db.f = nil
	defer func() {
		if uerr := db.lock.Unlock(); uerr != nil && err == nil {
			err = errors.E("failed to unlock hash file", db.path, uerr)
		}
	}()
	defer fileio.CloseAndReport(f, &err)
	if err := f.Sync(); err != nil {
		return errors.E("failed to sync hash file", db.path, err)
	}
	return nil
}

// hashDBReader reads a hash database back record by record
type hashDBReader struct {
	r      *bufio.Reader
	c      io.Closer
	header HashDBHeader
	n      int64
}

func openReader(path string) (*hashDBReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E("failed to open hash file", path, err)
	}
	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, errors.E(path, err)
	}
	r.c = f
	return r, nil
}

func newReader(r io.Reader) (*hashDBReader, error) {
	br := bufio.NewReader(r)
	hdr, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	return &hashDBReader{r: br, header: hdr}, nil
}

func (r *hashDBReader) SSID() []byte {
	return r.header.SSIDBytes()
}

// Next returns the next record, io.EOF after the last one, or an
// Integrity error if the file ends inside a record.
func (r *hashDBReader) Next() (Record, error) {
	rec, err := decodeRecord(r.r)
	if err != nil {
		if err != io.EOF {
			err = errors.E(fmt.Sprintf("record %d", r.n+1), err)
		}
		return rec, err
	}
	r.n++
	return rec, nil
}

func (r *hashDBReader) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}
