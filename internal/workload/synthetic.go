package workload

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	apperrors "github.com/kbukum/fifokit/errors"
	"github.com/kbukum/fifokit/logger"
)

var (
	// ErrOrderViolation is returned by Run when an ordered phase ran early.
	ErrOrderViolation = apperrors.New(apperrors.ErrCodeOrderViolation, "ordered phase ran out of submission order")
	// ErrInjected is the failure synthetic tasks return on purpose.
	ErrInjected = apperrors.New(apperrors.ErrCodeInjectedFailure, "injected failure")
)

// Spec describes a synthetic workload.
type Spec struct {
	Tasks     int           `mapstructure:"tasks" validate:"gte=0"`
	MaxDelay  time.Duration `mapstructure:"max_delay" validate:"gte=0"`
	FailRatio float64       `mapstructure:"fail_ratio" validate:"gte=0,lte=1"`
	Seed      uint64        `mapstructure:"seed"`
}

// DefaultSpec mirrors the randomized ordering check: 1000 tasks sleeping up
// to 10ms each.
func DefaultSpec() Spec {
	return Spec{Tasks: 1000, MaxDelay: 10 * time.Millisecond, Seed: 1}
}

// Outcome is what a synthetic task hands to its ordered phase.
type Outcome struct {
	Index int
	Delay time.Duration
}

type plan struct {
	delay time.Duration
	fail  bool
}

// plans draws every task's delay and failure from the seed up front, so a
// run is reproducible whatever the concurrency.
func (s Spec) plans() []plan {
	r := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	out := make([]plan, s.Tasks)
	for i := range out {
		if s.MaxDelay > 0 {
			out[i].delay = time.Duration(r.Int64N(int64(s.MaxDelay) + 1))
		}
		out[i].fail = s.FailRatio > 0 && r.Float64() < s.FailRatio
	}
	return out
}

// Report summarizes a run.
type Report struct {
	Tasks      int
	Succeeded  int
	Failed     int
	Violations int
	Elapsed    time.Duration
}

// Ordered reports whether every ordered phase ran in submission order.
func (r Report) Ordered() bool { return r.Violations == 0 && r.Succeeded+r.Failed == r.Tasks }

// checker verifies that ordered phases arrive as 0, 1, 2, ...
type checker struct {
	mu         sync.Mutex
	next       int
	succeeded  int
	failed     int
	violations int
}

func (c *checker) observe(index int, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index != c.next {
		c.violations++
	}
	c.next = index + 1
	if failed {
		c.failed++
	} else {
		c.succeeded++
	}
}

type syntheticTask struct {
	index int
	plan  plan
	check *checker
	out   io.Writer
}

func (t *syntheticTask) RunParallel(ctx context.Context) (Outcome, error) {
	if t.plan.delay > 0 {
		timer := time.NewTimer(t.plan.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
	if t.plan.fail {
		return Outcome{}, ErrInjected.Detail("index", t.index)
	}
	return Outcome{Index: t.index, Delay: t.plan.delay}, nil
}

func (t *syntheticTask) RunSequential(o Outcome) {
	t.check.observe(o.Index, false)
	fmt.Fprintf(t.out, "%6d ok    %v\n", o.Index, o.Delay.Round(time.Microsecond))
}

func (t *syntheticTask) OnError(err error) {
	t.check.observe(t.index, true)
	fmt.Fprintf(t.out, "%6d error %v\n", t.index, err)
}

// Run submits spec.Tasks synthetic tasks to exec, drains it and checks the
// order ordered phases ran in. Each ordered phase writes one line to out.
func Run(ctx context.Context, exec Executor[Outcome], spec Spec, out io.Writer) (Report, error) {
	if out == nil {
		out = io.Discard
	}
	log := logger.Get("workload")
	check := &checker{}
	start := time.Now()

	var submitErr error
	for i, p := range spec.plans() {
		err := exec.Submit(ctx, &syntheticTask{index: i, plan: p, check: check, out: out})
		if err != nil && apperrors.CodeOf(err) != apperrors.ErrCodeAdmissionCancelled {
			submitErr = err
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	err := drain(ctx, exec, submitErr)

	check.mu.Lock()
	report := Report{
		Tasks:      spec.Tasks,
		Succeeded:  check.succeeded,
		Failed:     check.failed,
		Violations: check.violations,
		Elapsed:    time.Since(start),
	}
	check.mu.Unlock()

	log.Info("synthetic workload finished", logger.MergeWithDuration(logger.Fields(
		"tasks", report.Tasks,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"violations", report.Violations,
	), report.Elapsed))

	if err != nil {
		return report, err
	}
	if report.Violations > 0 {
		return report, ErrOrderViolation.Detail("violations", report.Violations)
	}
	return report, nil
}
