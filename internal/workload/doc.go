// Package workload holds the task sets the fifokit CLI drives through an
// ordered executor: a seeded synthetic workload with an ordering check,
// and parallel file hashing with results printed in argument order.
package workload
