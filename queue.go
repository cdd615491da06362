package guda

import (
	"fmt"
)

// QueueProperties configure a command queue.
type QueueProperties uint

const (
	// QueueProfilingEnable makes events record profiling timestamps.
	QueueProfilingEnable QueueProperties = 1 << iota
)

// CommandQueue is an in-order queue of buffer transfers and kernel
// launches backed by its own stream.
type CommandQueue struct {
	ctx       *Context
	stream    *Stream
	profiling bool
}

// NewCommandQueue creates an in-order command queue on the context.
func (ctx *Context) NewCommandQueue(props QueueProperties) (*CommandQueue, error) {
	if ctx.destroyed.Load() {
		return nil, ErrContextDestroyed
	}
	return &CommandQueue{
		ctx:       ctx,
		stream:    ctx.CreateStream(),
		profiling: props&QueueProfilingEnable != 0,
	}, nil
}

// Profiling reports whether events from this queue carry timestamps.
func (q *CommandQueue) Profiling() bool {
	return q.profiling
}

// enqueue submits run to the queue's stream and returns its event.
func (q *CommandQueue) enqueue(cmd CommandType, run func() error) (*Event, error) {
	ev := newEvent(cmd, q.profiling, q.ctx.since())
	err := q.ctx.submit(q.stream, func() error {
		ev.mark(EventRunning, ProfilingCommandStart, q.ctx.since())
		err := run()
		ev.complete(q.ctx.since(), err)
		return err
	}, func() {
		ev.mark(EventSubmitted, ProfilingCommandSubmit, q.ctx.since())
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// EnqueueWriteBuffer copies size bytes from host into buf starting at
// offset bytes. A blocking write returns once the copy completed.
func (q *CommandQueue) EnqueueWriteBuffer(buf DevicePtr, blocking bool, offset, size int, host interface{}) (*Event, error) {
	if err := checkRange("EnqueueWriteBuffer", buf, offset, size); err != nil {
		return nil, err
	}
	ev, err := q.enqueue(CommandWriteBuffer, func() error {
		return q.ctx.Memcpy(buf.Offset(offset), host, size, MemcpyHostToDevice)
	})
	if err != nil {
		return nil, err
	}
	if blocking {
		return ev, ev.Wait()
	}
	return ev, nil
}

// EnqueueReadBuffer copies size bytes of buf starting at offset into host.
func (q *CommandQueue) EnqueueReadBuffer(buf DevicePtr, blocking bool, offset, size int, host interface{}) (*Event, error) {
	if err := checkRange("EnqueueReadBuffer", buf, offset, size); err != nil {
		return nil, err
	}
	ev, err := q.enqueue(CommandReadBuffer, func() error {
		return q.ctx.Memcpy(host, buf.Offset(offset), size, MemcpyDeviceToHost)
	})
	if err != nil {
		return nil, err
	}
	if blocking {
		return ev, ev.Wait()
	}
	return ev, nil
}

// EnqueueNDRangeKernel launches k over globalSize work items grouped into
// work groups of localSize. Each global dimension must be a multiple of
// the matching local dimension. Arguments are captured at enqueue time.
func (q *CommandQueue) EnqueueNDRangeKernel(k *Kernel, globalSize, localSize Dim3) (*Event, error) {
	if k.program.ctx != q.ctx {
		return nil, NewInvalidArgError("EnqueueNDRangeKernel", fmt.Sprintf("kernel %q belongs to another context", k.def.Name))
	}
	grid, err := workGroups(globalSize, localSize)
	if err != nil {
		return nil, err
	}
	l, err := k.launch("EnqueueNDRangeKernel", grid, localSize)
	if err != nil {
		return nil, err
	}
	if err := l.normalize(); err != nil {
		return nil, err
	}
	return q.enqueue(CommandNDRangeKernel, func() error {
		return q.ctx.execute(l)
	})
}

// Flush is a no-op: commands are handed to the device as they are enqueued.
func (q *CommandQueue) Flush() error {
	return nil
}

// Finish blocks until every enqueued command has completed and returns
// the first error among them.
func (q *CommandQueue) Finish() error {
	return q.stream.Synchronize()
}

// workGroups converts an NDRange into a grid of blocks.
func workGroups(global, local Dim3) (Dim3, error) {
	global, local = global.Normalize(), local.Normalize()
	if local.X <= 0 || local.Y <= 0 || local.Z <= 0 {
		return Dim3{}, NewInvalidArgError("EnqueueNDRangeKernel", fmt.Sprintf("invalid work-group size %v", local))
	}
	if global.X < 0 || global.Y < 0 || global.Z < 0 {
		return Dim3{}, NewInvalidArgError("EnqueueNDRangeKernel", fmt.Sprintf("invalid global size %v", global))
	}
	if global.X%local.X != 0 || global.Y%local.Y != 0 || global.Z%local.Z != 0 {
		return Dim3{}, NewInvalidArgError("EnqueueNDRangeKernel", fmt.Sprintf("global size %v is not a multiple of work-group size %v", global, local))
	}
	return Dim3{X: global.X / local.X, Y: global.Y / local.Y, Z: global.Z / local.Z}, nil
}

func checkRange(op string, buf DevicePtr, offset, size int) error {
	if buf.IsNil() {
		return ErrNullPointer
	}
	if offset < 0 || size < 0 || offset+size > buf.Size() {
		return NewInvalidArgError(op, fmt.Sprintf("range [%d, %d) outside buffer of %d bytes", offset, offset+size, buf.Size()))
	}
	return nil
}
