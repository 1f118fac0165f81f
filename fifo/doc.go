// Package fifo runs tasks concurrently while delivering their results in
// submission order.
//
// Every Task has two phases. RunParallel is the expensive part and runs on
// a bounded set of workers, in any order. RunSequential (or OnError when
// the parallel phase failed) is the visible side effect and runs strictly
// in the order tasks were submitted, one at a time:
//
//	exec, err := fifo.New[[]byte](8)
//	if err != nil {
//	    return err
//	}
//	for _, path := range paths {
//	    err := exec.Submit(ctx, fifo.TaskFuncs[[]byte]{
//	        Parallel:   func(ctx context.Context) ([]byte, error) { return os.ReadFile(path) },
//	        Sequential: func(b []byte) { fmt.Println(path, len(b)) },
//	        Error:      func(err error) { fmt.Println(path, err) },
//	    })
//	    if err != nil {
//	        return err
//	    }
//	}
//	exec.Shutdown()
//	exec.AwaitTermination(time.Minute)
//
// Submit blocks while maxConcurrency parallel phases are in flight, so a
// fast producer is throttled at the call site instead of growing a queue.
//
// Ordered callbacks run while the executor holds its ordering lock. They
// should return quickly; a blocking callback stalls every later result.
package fifo
