package main

import (
	"crypto/sha1"
	"fmt"

	"github.com/grailbio/base/errors"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations is the PBKDF2 round count fixed by WPA-PSK
const DefaultIterations = 4096

// deriveFunc computes the PMK for one passphrase. Implementations must be
// safe to call from many goroutines at once.
type deriveFunc func(passphrase, ssid []byte, iterations int) (PMK, error)

// derivePMK derives a WPA-PSK PMK using PBKDF2-HMAC-SHA1
func derivePMK(passphrase, ssid []byte, iterations int) (PMK, error) {
	var pmk PMK
	if err := validateSSID(ssid); err != nil {
		return pmk, errors.E("derive", err)
	}
	if iterations < 1 {
		return pmk, errors.E(errors.Invalid, "derive", fmt.Sprintf("iterations must be at least 1, got %d", iterations))
	}
	key := pbkdf2.Key(passphrase, ssid, iterations, PMKLen, sha1.New)
	copy(pmk[:], key)
	zeroBytes(key)
	return pmk, nil
}
