package workload

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	apperrors "github.com/kbukum/fifokit/errors"
	"github.com/kbukum/fifokit/fifo"
	"github.com/kbukum/fifokit/logger"
)

func newExecutor[T any](t *testing.T, n int) *fifo.Executor[T] {
	t.Helper()
	e, err := fifo.New[T](n, fifo.WithLogger(logger.Nop()))
	require.NoError(t, err)
	return e
}

func TestSpec_PlansAreReproducible(t *testing.T) {
	spec := Spec{Tasks: 50, MaxDelay: time.Millisecond, FailRatio: 0.3, Seed: 42}
	assert.Equal(t, spec.plans(), spec.plans())

	other := spec
	other.Seed = 43
	assert.NotEqual(t, spec.plans(), other.plans())

	for _, p := range spec.plans() {
		assert.LessOrEqual(t, p.delay, time.Millisecond)
	}
}

func TestSpec_FailRatioBounds(t *testing.T) {
	for _, p := range (Spec{Tasks: 100, FailRatio: 0}).plans() {
		assert.False(t, p.fail)
	}
	for _, p := range (Spec{Tasks: 100, FailRatio: 1}).plans() {
		assert.True(t, p.fail)
	}
}

func TestRun_OrderedAtEveryConcurrency(t *testing.T) {
	for _, n := range []int{1, 4, 16} {
		spec := Spec{Tasks: 200, MaxDelay: 2 * time.Millisecond, FailRatio: 0.1, Seed: uint64(n)}
		var out bytes.Buffer

		report, err := Run(context.Background(), newExecutor[Outcome](t, n), spec, &out)
		require.NoError(t, err)
		assert.True(t, report.Ordered())
		assert.Equal(t, 200, report.Succeeded+report.Failed)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 200)
		assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "0 "))
		assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[199]), "199 "))
	}
}

func TestRun_CountsInjectedFailures(t *testing.T) {
	spec := Spec{Tasks: 20, FailRatio: 1, Seed: 7}
	var out bytes.Buffer

	report, err := Run(context.Background(), newExecutor[Outcome](t, 4), spec, &out)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Failed)
	assert.Zero(t, report.Succeeded)
	assert.Contains(t, out.String(), "INJECTED_FAILURE")
}

func TestRun_SubmitAfterShutdown(t *testing.T) {
	e := newExecutor[Outcome](t, 1)
	e.Shutdown()

	_, err := Run(context.Background(), e, Spec{Tasks: 3}, nil)
	assert.ErrorIs(t, err, fifo.ErrShutdown)
}

func TestChecker_DetectsViolation(t *testing.T) {
	c := &checker{}
	c.observe(0, false)
	c.observe(2, false)
	c.observe(1, true)
	assert.Equal(t, 2, c.violations)
	assert.Equal(t, 1, c.failed)
	assert.Equal(t, 2, c.succeeded)
}

func TestReport_Ordered(t *testing.T) {
	assert.True(t, Report{Tasks: 2, Succeeded: 1, Failed: 1}.Ordered())
	assert.False(t, Report{Tasks: 2, Succeeded: 1}.Ordered())
	assert.False(t, Report{Tasks: 1, Succeeded: 1, Violations: 1}.Ordered())
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDigest_PrintsInArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.txt", strings.Repeat("a", 1<<20))
	b := writeTemp(t, dir, "b.txt", "b")
	missing := filepath.Join(dir, "missing.txt")
	c := writeTemp(t, dir, "c.txt", "")

	var out bytes.Buffer
	summary, err := Digest(context.Background(), newExecutor[FileDigest](t, 3), AlgoSHA256, []string{a, b, missing, c}, &out)
	require.NoError(t, err)
	assert.Equal(t, DigestSummary{Files: 4, Failed: 1, Bytes: 1<<20 + 1}, summary)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "  "+a))
	assert.Equal(t, "3e23e8160039594a33894f6564e1b1348bbd7a0088d42c4acb73eeaed59c009d  "+b, lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "error: "+missing))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855  "+c, lines[3])
}

func TestDigest_BLAKE2b(t *testing.T) {
	p := writeTemp(t, t.TempDir(), "x", "fifokit")
	var out bytes.Buffer

	_, err := Digest(context.Background(), newExecutor[FileDigest](t, 2), AlgoBLAKE2b, []string{p}, &out)
	require.NoError(t, err)

	sum := blake2b.Sum256([]byte("fifokit"))
	assert.Equal(t, hex.EncodeToString(sum[:])+"  "+p+"\n", out.String())
}

func TestDigest_UnsupportedAlgorithm(t *testing.T) {
	e := newExecutor[FileDigest](t, 1)
	_, err := Digest(context.Background(), e, "md5", []string{"x"}, nil)
	assert.Equal(t, apperrors.ErrCodeInvalidConfig, apperrors.CodeOf(err))
	assert.NotEqual(t, fifo.StateRunning, e.State())
}

func TestNewHash(t *testing.T) {
	for _, algo := range Algorithms {
		h, err := NewHash(algo)
		require.NoError(t, err, algo)
		assert.Equal(t, 32, h.Size(), algo)
	}
	_, err := NewHash("crc32")
	assert.Error(t, err)
}

func TestBench(t *testing.T) {
	spec := Spec{Tasks: 40, MaxDelay: 2 * time.Millisecond, Seed: 3}
	results, err := Bench(context.Background(), spec, 3, fifo.WithLogger(logger.Nop()))
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i+1, r.Concurrency)
		assert.True(t, r.Ordered)
		assert.Positive(t, r.Elapsed)
	}
	assert.InDelta(t, 1.0, results[0].Speedup(results[0]), 1e-9)
}
