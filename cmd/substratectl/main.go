// Command substratectl is a tiny demo/config binary: it loads a TOML
// config, wires a stack-allocator-backed free list, an executor, a
// scheduler, and an AsyncScope, runs a short demonstration workload through
// them, and reports what happened. It exists to give the library packages
// a runnable entry point, the way the teacher monorepo ships small cmd/
// binaries alongside its libraries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/joeycumines/substrate/alloc"
	"github.com/joeycumines/substrate/block"
	"github.com/joeycumines/substrate/diag"
	"github.com/joeycumines/substrate/executor"
	"github.com/joeycumines/substrate/scheduler"
	"github.com/joeycumines/substrate/scope"
)

func main() {
	configPath := flag.String("config", "", "path to a substratectl TOML config (optional)")
	flag.Parse()

	diag.Init()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "substratectl: loading config: %v\n", err)
		os.Exit(1)
	}

	stack := alloc.NewConcurrentStack(cfg.StackCapacity, alloc.MaxAlign)
	arena := alloc.NewFreeList(stack, alloc.Config{
		Min:    32,
		Max:    uintptr(cfg.StackCapacity),
		Fit:    alloc.BestFit,
		MaxLen: 256,
	})

	pool := executor.New(executor.WithWorkers(cfg.Workers))
	defer pool.Stop(context.Background())

	sched := scheduler.New(pool, scheduler.WithInFlightLimit(cfg.InFlightLimit))
	defer sched.Stop()

	sc := scope.New(pool)

	fmt.Printf("substratectl: %d workers, %d byte arena, %s tick\n", pool.NumWorkers(), cfg.StackCapacity, cfg.TickResolution())

	var completed atomic.Int32
	for i := 0; i < pool.NumWorkers()*2; i++ {
		sc.Spawn(context.Background(), func(ctx context.Context) {
			b := arena.Allocate(block.Layout{Size: 64, Align: alloc.MaxAlign})
			defer arena.Deallocate(b)
			completed.Add(1)
		})
	}

	deadline := time.Now().Add(cfg.TickResolution() * 3)
	done := make(chan struct{})
	sched.Post(context.Background(), deadline, func(ctx context.Context) {
		close(done)
	})

	<-sc.WaitIdle()
	<-done

	fmt.Printf("substratectl: %d units of work completed, scheduler pending=%d\n", completed.Load(), sched.Pending())
}
