// Package resilience provides concurrency limiting for fifokit.
//
// Bulkhead caps how many callers hold a slot at once. Depending on
// MaxWait an Acquire fails fast, waits for a bounded time, or blocks until
// a slot frees up:
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{
//	    Name:          "admission",
//	    MaxConcurrent: 8,
//	    MaxWait:       resilience.WaitIndefinitely,
//	})
//	if err := bh.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer bh.Release()
package resilience
