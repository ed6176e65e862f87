package main

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
)

const (
	// HashDBMagic identifies a genpmk hash database
	HashDBMagic uint32 = 0x43575041

	MaxSSIDLen = 32
	PMKLen     = 32

	// IEEE 802.11i passphrase bounds
	MinPassphraseLen = 8
	MaxPassphraseLen = 63

	headerLen     = 4 + 1 + MaxSSIDLen
	recordSizeLen = 2
	minRecordSize = recordSizeLen + PMKLen
)

// PMK is a WPA pairwise master key
type PMK [PMKLen]byte

// HashDBHeader is written once at the start of every database file
type HashDBHeader struct {
	Magic   uint32
	SSIDLen uint8
	SSID    [MaxSSIDLen]byte
}

// Record is one precomputed passphrase/PMK pair
type Record struct {
	Passphrase []byte
	PMK        PMK
}

func newHeader(ssid []byte) (HashDBHeader, error) {
	if err := validateSSID(ssid); err != nil {
		return HashDBHeader{}, err
	}
	h := HashDBHeader{Magic: HashDBMagic, SSIDLen: uint8(len(ssid))}
	copy(h.SSID[:], ssid)
	return h, nil
}

// SSIDBytes returns the meaningful prefix of the SSID buffer
func (h HashDBHeader) SSIDBytes() []byte {
	return h.SSID[:h.SSIDLen]
}

func (h HashDBHeader) Validate() error {
	if h.Magic != HashDBMagic {
		return errors.E(errors.Integrity, fmt.Sprintf("bad magic %#08x (is it a genpmk hash file?)", h.Magic))
	}
	if h.SSIDLen == 0 || h.SSIDLen > MaxSSIDLen {
		return errors.E(errors.Integrity, fmt.Sprintf("bad ssid length %d in header", h.SSIDLen))
	}
	return nil
}

func (h HashDBHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	b[4] = h.SSIDLen
	copy(b[5:], h.SSID[:])
	return b, nil
}

func (h *HashDBHeader) UnmarshalBinary(data []byte) error {
	if len(data) < headerLen {
		return errors.E(errors.Integrity, fmt.Sprintf("short header: %d bytes", len(data)))
	}
	h.Magic = binary.LittleEndian.Uint32(data[0:4])
	h.SSIDLen = data[4]
	copy(h.SSID[:], data[5:headerLen])
	return nil
}

// readHeader reads and validates a header from the start of r
func readHeader(r io.Reader) (HashDBHeader, error) {
	var h HashDBHeader
	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return h, errors.E(errors.Integrity, "truncated header", err)
		}
		return h, errors.E("failed to read header", err)
	}
	if err := h.UnmarshalBinary(buf); err != nil {
		return h, err
	}
	return h, h.Validate()
}

func validateSSID(ssid []byte) error {
	if len(ssid) == 0 || len(ssid) > MaxSSIDLen {
		return errors.E(errors.Invalid, fmt.Sprintf("ssid must be 1 to %d bytes, got %d", MaxSSIDLen, len(ssid)))
	}
	return nil
}

func validatePassphrase(p []byte) error {
	if len(p) < MinPassphraseLen || len(p) > MaxPassphraseLen {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid passphrase length: %q (%d)", p, len(p)))
	}
	return nil
}

// encodeRecord lays out size | passphrase | pmk. The passphrase has no
// length field of its own; readers recover it from the size.
func encodeRecord(passphrase []byte, pmk PMK) []byte {
	size := recordSizeLen + len(passphrase) + PMKLen
	b := make([]byte, size)
	binary.LittleEndian.PutUint16(b[0:recordSizeLen], uint16(size))
	copy(b[recordSizeLen:], passphrase)
	copy(b[recordSizeLen+len(passphrase):], pmk[:])
	return b
}

// decodeRecord reads one record. It returns io.EOF only when r ends
// exactly on a record boundary.
func decodeRecord(r io.Reader) (Record, error) {
	var rec Record
	var sizeBuf [recordSizeLen]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		if err == io.EOF {
			return rec, io.EOF
		}
		return rec, truncated("record size", err)
	}
	size := int(binary.LittleEndian.Uint16(sizeBuf[:]))
	if size < minRecordSize {
		return rec, errors.E(errors.Integrity, fmt.Sprintf("record size %d below minimum %d", size, minRecordSize))
	}
	body := make([]byte, size-recordSizeLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return rec, truncated(fmt.Sprintf("record of %d bytes", size), err)
	}
	n := len(body) - PMKLen
	rec.Passphrase = body[:n:n]
	copy(rec.PMK[:], body[n:])
	return rec, nil
}

func truncated(what string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.E(errors.Integrity, "truncated", what)
	}
	return errors.E("failed to read", what, err)
}

// String renders the record as a Go-quoted passphrase and the hex PMK,
// separated by a tab. Passphrases may hold tabs and control bytes.
func (r Record) String() string {
	return fmt.Sprintf("%q\t%x", r.Passphrase, r.PMK[:])
}
