package workload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/blake2b"

	apperrors "github.com/kbukum/fifokit/errors"
	"github.com/kbukum/fifokit/logger"
)

// Hash algorithms accepted by Digest.
const (
	AlgoSHA256  = "sha256"
	AlgoBLAKE2b = "blake2b"
)

// Algorithms lists the supported algorithms.
var Algorithms = []string{AlgoSHA256, AlgoBLAKE2b}

// NewHash returns a fresh hash for algo.
func NewHash(algo string) (hash.Hash, error) {
	switch algo {
	case AlgoSHA256:
		return sha256.New(), nil
	case AlgoBLAKE2b:
		return blake2b.New256(nil)
	default:
		return nil, apperrors.InvalidConfig("algo", fmt.Sprintf("unsupported hash algorithm %q", algo)).
			WithDetail("supported", Algorithms)
	}
}

// FileDigest is the result of hashing one file.
type FileDigest struct {
	Path  string
	Sum   string
	Bytes int64
}

// DigestSummary counts what Digest printed.
type DigestSummary struct {
	Files  int
	Failed int
	Bytes  int64
}

type digestState struct {
	mu      sync.Mutex
	summary DigestSummary
}

func (s *digestState) snapshot() DigestSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

type digestTask struct {
	ctx   context.Context
	path  string
	algo  string
	out   io.Writer
	state *digestState
}

func (t *digestTask) RunParallel(context.Context) (FileDigest, error) {
	h, err := NewHash(t.algo)
	if err != nil {
		return FileDigest{}, err
	}
	f, err := os.Open(t.path)
	if err != nil {
		return FileDigest{}, err
	}
	defer f.Close()

	n, err := io.Copy(h, &ctxReader{ctx: t.ctx, r: f})
	if err != nil {
		return FileDigest{}, fmt.Errorf("read %s: %w", t.path, err)
	}
	return FileDigest{Path: t.path, Sum: hex.EncodeToString(h.Sum(nil)), Bytes: n}, nil
}

// RunSequential prints in the sha256sum layout.
func (t *digestTask) RunSequential(d FileDigest) {
	t.state.mu.Lock()
	t.state.summary.Files++
	t.state.summary.Bytes += d.Bytes
	t.state.mu.Unlock()
	fmt.Fprintf(t.out, "%s  %s\n", d.Sum, d.Path)
}

func (t *digestTask) OnError(err error) {
	t.state.mu.Lock()
	t.state.summary.Files++
	t.state.summary.Failed++
	t.state.mu.Unlock()
	fmt.Fprintf(t.out, "error: %s: %v\n", t.path, err)
}

// ctxReader stops a long read once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Digest hashes paths on exec and prints one line per path, in argument
// order, as each becomes ready. Unreadable files print an error line in
// their slot. An unsupported algo shuts exec down and returns an error.
func Digest(ctx context.Context, exec Executor[FileDigest], algo string, paths []string, out io.Writer) (DigestSummary, error) {
	if _, err := NewHash(algo); err != nil {
		exec.Shutdown()
		return DigestSummary{}, err
	}
	if out == nil {
		out = io.Discard
	}

	state := &digestState{}
	var submitErr error
	for _, p := range paths {
		err := exec.Submit(ctx, &digestTask{ctx: ctx, path: p, algo: algo, out: out, state: state})
		if err != nil {
			if apperrors.CodeOf(err) != apperrors.ErrCodeAdmissionCancelled {
				submitErr = err
			}
			break
		}
	}

	err := drain(ctx, exec, submitErr)
	summary := state.snapshot()
	logger.Get("workload").Info("digest finished", logger.Fields(
		"algo", algo,
		"files", summary.Files,
		"failed", summary.Failed,
		"bytes", summary.Bytes,
	))
	return summary, err
}
