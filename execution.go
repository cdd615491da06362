package guda

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

// SharedKernelFunc is a cooperative kernel. All threads of a block run
// concurrently and may synchronize through blk.SyncThreads and exchange
// data through blk.Shared.
type SharedKernelFunc func(tid ThreadID, blk *Block, args ...interface{})

// GroupFunc is a block-level kernel invoked once per thread block. It is
// responsible for every thread of the block; barriers become boundaries
// between its loop phases.
type GroupFunc func(grp Group, args ...interface{})

// Block is the per-block state handed to cooperative kernels.
type Block struct {
	barrier *barrier
	shared  DevicePtr
}

// SyncThreads blocks until every live thread of the block has reached it.
// Threads that already returned from the kernel no longer count.
func (b *Block) SyncThreads() {
	b.barrier.wait()
}

// Shared returns the block's scratch memory. It is zeroed when the block
// starts and discarded when the block finishes.
func (b *Block) Shared() DevicePtr {
	return b.shared
}

// Group identifies the block a GroupFunc is executing.
type Group struct {
	BlockIdx Dim3
	BlockDim Dim3
	GridDim  Dim3
	shared   DevicePtr
}

// Shared returns the group's scratch memory.
func (g Group) Shared() DevicePtr {
	return g.shared
}

// Thread returns the ThreadID of the linear thread index within the group.
func (g Group) Thread(linear int) ThreadID {
	return ThreadID{
		BlockIdx:  g.BlockIdx,
		ThreadIdx: linearTo3D(linear, g.BlockDim),
		BlockDim:  g.BlockDim,
		GridDim:   g.GridDim,
	}
}

// launchSpec describes one kernel launch independent of its kernel form.
type launchSpec struct {
	op       string
	grid     Dim3
	block    Dim3
	shared   int
	args     []interface{}
	runBlock func(l *launchSpec, blockIdx Dim3) error
}

func sequentialLaunch(op string, fn KernelFunc, grid, block Dim3, args []interface{}) *launchSpec {
	return &launchSpec{
		op: op, grid: grid, block: block, args: args,
		runBlock: func(l *launchSpec, blockIdx Dim3) error {
			return protect(l.op, func() {
				// Threads of a block run in order on one worker. This
				// maximizes cache reuse for kernels without barriers.
				for threadID := 0; threadID < l.block.Size(); threadID++ {
					fn(ThreadID{
						BlockIdx:  blockIdx,
						ThreadIdx: linearTo3D(threadID, l.block),
						BlockDim:  l.block,
						GridDim:   l.grid,
					}, l.args...)
				}
			})
		},
	}
}

func cooperativeLaunch(op string, fn SharedKernelFunc, grid, block Dim3, sharedMem int, args []interface{}) *launchSpec {
	return &launchSpec{
		op: op, grid: grid, block: block, shared: sharedMem, args: args,
		runBlock: func(l *launchSpec, blockIdx Dim3) error {
			n := l.block.Size()
			blk := &Block{
				barrier: newBarrier(n),
				shared:  newScratch(l.shared),
			}

			var (
				wg       sync.WaitGroup
				errOnce  sync.Once
				firstErr error
			)
			wg.Add(n)
			for threadID := 0; threadID < n; threadID++ {
				tid := ThreadID{
					BlockIdx:  blockIdx,
					ThreadIdx: linearTo3D(threadID, l.block),
					BlockDim:  l.block,
					GridDim:   l.grid,
				}
				go func() {
					defer wg.Done()
					defer blk.barrier.leave()
					if err := protect(l.op, func() { fn(tid, blk, l.args...) }); err != nil {
						errOnce.Do(func() { firstErr = err })
					}
				}()
			}
			wg.Wait()
			return firstErr
		},
	}
}

func groupLaunch(op string, fn GroupFunc, grid, block Dim3, sharedMem int, args []interface{}) *launchSpec {
	return &launchSpec{
		op: op, grid: grid, block: block, shared: sharedMem, args: args,
		runBlock: func(l *launchSpec, blockIdx Dim3) error {
			grp := Group{
				BlockIdx: blockIdx,
				BlockDim: l.block,
				GridDim:  l.grid,
				shared:   newScratch(l.shared),
			}
			return protect(l.op, func() { fn(grp, l.args...) })
		},
	}
}

// launchInternal validates a launch and queues it on stream.
func (ctx *Context) launchInternal(stream *Stream, l *launchSpec) error {
	if err := l.normalize(); err != nil {
		return err
	}

	return ctx.submit(stream, func() error {
		return ctx.execute(l)
	}, nil)
}

// submit queues task on stream unless the context was destroyed. onSubmit
// runs under the context lock just before the task is handed over.
func (ctx *Context) submit(stream *Stream, task func() error, onSubmit func()) error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if ctx.destroyed.Load() {
		return ErrContextDestroyed
	}
	if onSubmit != nil {
		onSubmit()
	}
	stream.Submit(task)
	return nil
}

// normalize fills in defaulted dimensions and rejects launches the device
// cannot run.
func (l *launchSpec) normalize() error {
	if l.grid.X < 0 || l.grid.Y < 0 || l.grid.Z < 0 ||
		l.block.X < 0 || l.block.Y < 0 || l.block.Z < 0 {
		return NewInvalidArgError(l.op, fmt.Sprintf("negative launch dimensions grid=%v block=%v", l.grid, l.block))
	}
	l.grid = l.grid.Normalize()
	l.block = l.block.Normalize()

	if l.grid.Size() > 0 && l.block.Size() == 0 {
		return NewInvalidArgError(l.op, "block must contain at least one thread")
	}
	if l.block.Size() > MaxThreadsPerBlock {
		return NewInvalidArgError(l.op, fmt.Sprintf("block of %d threads exceeds limit of %d", l.block.Size(), MaxThreadsPerBlock))
	}
	if l.shared < 0 || l.shared > MaxSharedMemPerBlock {
		return NewInvalidArgError(l.op, fmt.Sprintf("shared memory of %d bytes outside [0, %d]", l.shared, MaxSharedMemPerBlock))
	}
	return nil
}

// execute runs every block of the launch and blocks until they finish.
func (ctx *Context) execute(l *launchSpec) error {
	gridSize := l.grid.Size()

	// Handle edge case where grid size is zero
	if gridSize == 0 {
		return nil
	}

	// Determine parallelism strategy
	numWorkers := min(runtime.NumCPU(), gridSize)

	// Workers steal blocks one at a time. Block cost is uniform for the
	// kernels here, and stealing keeps the tail short when it is not.
	var next atomic.Int64
	g, gctx := errgroup.WithContext(context.Background())
	for range numWorkers {
		g.Go(func() error {
			for gctx.Err() == nil {
				blockID := int(next.Add(1)) - 1
				if blockID >= gridSize {
					return nil
				}
				if err := l.runBlock(l, linearTo3D(blockID, l.grid)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// protect runs fn and converts a panic into an execution error.
func protect(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewExecutionError(op, fmt.Sprintf("kernel panic: %v", r), ErrKernelFailed)
		}
	}()
	fn()
	return nil
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

// newScratch allocates zeroed block-local memory aligned for float64 access.
func newScratch(size int) DevicePtr {
	if size <= 0 {
		return DevicePtr{}
	}
	words := make([]float64, (size+7)/8)
	return DevicePtr{
		ptr:  unsafe.Pointer(&words[0]),
		size: size,
	}
}

// barrier is a reusable block-wide barrier. parties shrinks as threads exit
// so that an early return cannot strand the threads still waiting.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	arrived int
	gen     uint64
}

func newBarrier(parties int) *barrier {
	b := &barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrier) wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.arrived++
	if b.arrived >= b.parties {
		b.release()
		return
	}
	for gen == b.gen {
		b.cond.Wait()
	}
}

func (b *barrier) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.parties--
	if b.arrived > 0 && b.arrived >= b.parties {
		b.release()
	}
}

func (b *barrier) release() {
	b.arrived = 0
	b.gen++
	b.cond.Broadcast()
}
