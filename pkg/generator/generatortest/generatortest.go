// Package generatortest checks that generators render the same bytes in
// separate processes. Generator packages call Main from TestMain and
// SameAcrossProcesses from a test.
package generatortest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacktea/xavatar/pkg/generator"
)

const (
	envHash = "XAVATAR_GENERATOR_HASH"
	envSize = "XAVATAR_GENERATOR_SIZE"
)

// Main runs the package tests. When the test binary was started by
// SameAcrossProcesses it instead writes the rendered avatar to stdout and
// exits.
func Main(m *testing.M, g generator.Generator) {
	if hash := os.Getenv(envHash); hash != "" {
		size, err := strconv.Atoi(os.Getenv(envSize))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		data, err := g.Build(hash, size)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		_, _ = os.Stdout.Write(data)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// Digest is the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SameAcrossProcesses renders hash at size in this process and in a fresh
// copy of the test binary and requires identical digests. It returns the
// digest.
func SameAcrossProcesses(t *testing.T, g generator.Generator, hash string, size int) string {
	t.Helper()
	want, err := g.Build(hash, size)
	require.NoError(t, err)

	cmd := exec.Command(os.Args[0], "-test.run=^$")
	cmd.Env = append(os.Environ(), envHash+"="+hash, envSize+"="+strconv.Itoa(size))
	got, err := cmd.Output()
	require.NoError(t, err)

	require.Equal(t, Digest(want), Digest(got))
	return Digest(want)
}
