package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDB(t *testing.T, ssid string, iterations int, passphrases ...string) string {
	t.Helper()
	path := dbPath(t)
	db, err := createDB(context.Background(), path, []byte(ssid))
	require.NoError(t, err)
	for _, p := range passphrases {
		pmk, err := derivePMK([]byte(p), []byte(ssid), iterations)
		require.NoError(t, err)
		require.NoError(t, db.Append([]byte(p), pmk))
	}
	require.NoError(t, db.Close())
	return path
}

func TestDump(t *testing.T) {
	path := buildDB(t, "MyWifi", testIterations, "password1", "password2")
	var out bytes.Buffer
	require.NoError(t, dump(path, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `# ssid "MyWifi"`, lines[0])
	pmk, err := derivePMK([]byte("password1"), []byte("MyWifi"), testIterations)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("\"password1\"\t%x", pmk[:]), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "\"password2\"\t"))
}

func TestDumpControlBytes(t *testing.T) {
	tricky := "pass\tword\x1b[2J"
	path := buildDB(t, "MyWifi", testIterations, tricky)
	var out bytes.Buffer
	require.NoError(t, dump(path, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[1], "\x1b")
	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 2)
	p, err := strconv.Unquote(fields[0])
	require.NoError(t, err)
	assert.Equal(t, tricky, p)
	pmk, err := derivePMK([]byte(tricky), []byte("MyWifi"), testIterations)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", pmk[:]), fields[1])
}

func TestDumpTruncated(t *testing.T) {
	path := buildDB(t, "MyWifi", testIterations, "password1", "password2")
	require.NoError(t, os.Truncate(path, headerLen+43+5))
	var out bytes.Buffer
	err := dump(path, &out)
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
	assert.Contains(t, out.String(), "password1")
}

func TestVerify(t *testing.T) {
	path := buildDB(t, "TestNet1", testIterations, words(10)...)
	st, err := verify(context.Background(), path, 3, testIterations)
	require.NoError(t, err)
	assert.Equal(t, verifyStats{Records: 10}, st)
}

func TestVerifyMismatch(t *testing.T) {
	path := buildDB(t, "TestNet1", testIterations, words(4)...)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip the last PMK byte of the second record
	b[headerLen+2*44-1] ^= 0x01
	require.NoError(t, os.WriteFile(path, b, 0644))

	st, err := verify(context.Background(), path, 2, testIterations)
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
	assert.Equal(t, verifyStats{Records: 4, Mismatched: 1}, st)

	// Records were hashed with fewer rounds than verify assumes
	_, err = verify(context.Background(), path, 2, DefaultIterations)
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
}

func TestVerifyTruncated(t *testing.T) {
	path := buildDB(t, "TestNet1", testIterations, words(3)...)
	require.NoError(t, os.Truncate(path, headerLen+44+10))
	st, err := verify(context.Background(), path, 8, testIterations)
	assert.True(t, errors.Is(errors.Integrity, err), "%v", err)
	assert.EqualValues(t, 1, st.Records)
	assert.Zero(t, st.Mismatched)
}
