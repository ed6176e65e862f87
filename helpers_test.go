package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeDict writes lines to a dictionary file in a fresh temp dir
func writeDict(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "words.txt")
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// readAll reads back every record of a hash file
func readAll(t *testing.T, path string) (ssid string, recs []Record) {
	t.Helper()
	r, err := openReader(path)
	require.NoError(t, err)
	defer r.Close()
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return string(r.SSID()), recs
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
}

// recordSet keys records by passphrase and PMK so runs can be compared
// without regard to order
func recordSet(recs []Record) map[string]int {
	m := make(map[string]int)
	for _, r := range recs {
		m[r.String()]++
	}
	return m
}

func dbPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.genpmk")
}
