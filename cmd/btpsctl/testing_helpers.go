package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureOutput returns what fn writes to stdout.
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	// Drain concurrently so large outputs cannot fill the pipe.
	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	return string(<-done), fnErr
}

// assertJSON fails the test unless output holds one JSON document.
func assertJSON(t *testing.T, output string) {
	t.Helper()
	require.True(t, json.Valid([]byte(output)), "output is not valid JSON:\n%s", output)
}

// withFlags sets global output flags for the duration of a test
func withFlags(t *testing.T, json, q bool) {
	t.Helper()
	oldJSON, oldQuiet := jsonOut, quiet
	jsonOut, quiet = json, q
	t.Cleanup(func() { jsonOut, quiet = oldJSON, oldQuiet })
}
