package guda

import (
	"fmt"
	"sync"
	"time"
)

// CommandType identifies the command an event tracks.
type CommandType int

const (
	CommandWriteBuffer CommandType = iota
	CommandReadBuffer
	CommandNDRangeKernel
)

func (c CommandType) String() string {
	switch c {
	case CommandWriteBuffer:
		return "WriteBuffer"
	case CommandReadBuffer:
		return "ReadBuffer"
	case CommandNDRangeKernel:
		return "NDRangeKernel"
	default:
		return fmt.Sprintf("CommandType(%d)", int(c))
	}
}

// EventStatus is the execution state of a command.
type EventStatus int

const (
	EventQueued EventStatus = iota
	EventSubmitted
	EventRunning
	EventComplete
)

// ProfilingParam selects one of the timestamps an event records.
type ProfilingParam int

const (
	ProfilingCommandQueued ProfilingParam = iota
	ProfilingCommandSubmit
	ProfilingCommandStart
	ProfilingCommandEnd
)

// Event tracks one enqueued command. Timestamps are nanoseconds since the
// owning context was created and are only available from queues created
// with QueueProfilingEnable.
type Event struct {
	cmd       CommandType
	profiling bool
	done      chan struct{}

	mu     sync.Mutex
	status EventStatus
	stamps [4]uint64
	err    error
}

func newEvent(cmd CommandType, profiling bool, queued uint64) *Event {
	e := &Event{
		cmd:       cmd,
		profiling: profiling,
		done:      make(chan struct{}),
	}
	e.stamps[ProfilingCommandQueued] = queued
	return e
}

func (e *Event) mark(status EventStatus, param ProfilingParam, at uint64) {
	e.mu.Lock()
	e.status = status
	e.stamps[param] = at
	e.mu.Unlock()
}

func (e *Event) complete(at uint64, err error) {
	e.mu.Lock()
	e.status = EventComplete
	e.stamps[ProfilingCommandEnd] = at
	e.err = err
	e.mu.Unlock()
	close(e.done)
}

// Command returns the command type the event tracks.
func (e *Event) Command() CommandType {
	return e.cmd
}

// Status returns the current execution state.
func (e *Event) Status() EventStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Wait blocks until the command completes and returns its error. There is
// no timeout; a kernel that never finishes blocks the caller.
func (e *Event) Wait() error {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// ProfilingInfo returns the requested timestamp in nanoseconds.
func (e *Event) ProfilingInfo(param ProfilingParam) (uint64, error) {
	if param < ProfilingCommandQueued || param > ProfilingCommandEnd {
		return 0, NewInvalidArgError("ProfilingInfo", fmt.Sprintf("unknown profiling parameter %d", param))
	}
	if !e.profiling {
		return 0, ErrProfilingInfoNotAvailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != EventComplete {
		return 0, ErrProfilingInfoNotAvailable
	}
	return e.stamps[param], nil
}

// Duration returns the time between command start and end.
func (e *Event) Duration() (time.Duration, error) {
	start, err := e.ProfilingInfo(ProfilingCommandStart)
	if err != nil {
		return 0, err
	}
	end, err := e.ProfilingInfo(ProfilingCommandEnd)
	if err != nil {
		return 0, err
	}
	return time.Duration(end - start), nil
}

// WaitForEvents waits for every event and returns the first error.
func WaitForEvents(events ...*Event) error {
	var first error
	for _, e := range events {
		if err := e.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
