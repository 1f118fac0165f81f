package fifo

import (
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/kbukum/fifokit/logger"
)

// Spawner starts a function on some worker. Go must not drop fn.
// A Spawner that also implements io.Closer is closed once the executor
// has drained.
type Spawner interface {
	Go(fn func())
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(fn func())

func (f SpawnerFunc) Go(fn func()) { f(fn) }

// GoroutineSpawner starts a new goroutine per call.
type GoroutineSpawner struct{}

func (GoroutineSpawner) Go(fn func()) { go fn() }

// WorkerPool is a fixed set of long-lived goroutines.
type WorkerPool struct {
	mu     sync.RWMutex
	work   chan func()
	closed bool
	size   int
	wg     sync.WaitGroup
	log    *logger.Logger
}

// NewWorkerPool starts size workers. size <= 0 means runtime.NumCPU().
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &WorkerPool{
		work: make(chan func(), size),
		size: size,
		log:  logger.Get("fifo.pool"),
	}
	p.wg.Add(size)
	for range size {
		go p.loop()
	}
	return p
}

func (p *WorkerPool) loop() {
	defer p.wg.Done()
	for fn := range p.work {
		var pc panics.Catcher
		pc.Try(fn)
		if r := pc.Recovered(); r != nil {
			p.log.Error("worker recovered from panic", logger.Fields(logger.FieldError, r.String()))
		}
	}
}

// Go hands fn to an idle worker, waiting for one if all are busy.
// After Close, fn runs on a fresh goroutine.
func (p *WorkerPool) Go(fn func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		go fn()
		return
	}
	p.work <- fn
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int {
	return p.size
}

// Close stops accepting work and waits for queued work to finish.
func (p *WorkerPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.work)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}
