package sched

import "errors"

var (
	// ErrFull indicates that the task table has no free entry.
	ErrFull = errors.New("sched: task table full")

	// ErrNilTask indicates an Add with a nil task.
	ErrNilTask = errors.New("sched: nil task")

	// ErrNotInitialized indicates use of a zero Scheduler.
	ErrNotInitialized = errors.New("sched: scheduler not initialized")
)
