package scheduler

import "errors"

var (
	// ErrDispatcherNotRunning is returned when submitting to a stopped dispatcher
	ErrDispatcherNotRunning = errors.New("scheduler: dispatcher is not running")

	// ErrQueueFull is returned when the dispatch queue is full
	ErrQueueFull = errors.New("scheduler: dispatch queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("scheduler: invalid dispatcher configuration")
)
