// Package sched implements the cooperative periodic scheduler used when the
// kernel runs without an RTOS.
//
// A Scheduler holds a fixed table of Tasks, each with a period in ticks.
// ProcessOnce reads the tick counter, adds the elapsed ticks to every entry
// and runs each entry whose accumulator reached its period, in registration
// order, then clears that entry's accumulator. Timers repeat; there are no
// one-shot entries.
//
//	s := sched.New(sched.Config{Clock: clock})
//	_ = s.Add(sched.TaskFunc(poll), 10)
//	s.Run(ctx)
//
// Run and ProcessOnce are alternative ways to drive the table; a program
// picks one.
//
// Tasks run on the caller's goroutine. The Scheduler is not safe for
// concurrent use.
package sched
