package guda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueueProfiling(t *testing.T) {
	ctx := NewContextOrFail(t)
	q, err := ctx.NewCommandQueue(QueueProfilingEnable)
	require.NoError(t, err)
	assert.True(t, q.Profiling())

	k, err := testPrograms(t, ctx)[FormSource].Kernel("scale")
	require.NoError(t, err)
	d := MallocOrFail(t, ctx, 256*4)
	host := make([]float32, 256)
	for i := range host {
		host[i] = float32(i)
	}

	write, err := q.EnqueueWriteBuffer(d, true, 0, 256*4, host)
	require.NoError(t, err)
	assert.Equal(t, EventComplete, write.Status())
	assert.Equal(t, CommandWriteBuffer, write.Command())

	require.NoError(t, k.SetArgs(d, float32(2), 256))
	run, err := q.EnqueueNDRangeKernel(k, Dim3{X: 256}, Dim3{X: 64})
	require.NoError(t, err)
	require.NoError(t, q.Flush())
	require.NoError(t, run.Wait())
	assert.Equal(t, "NDRangeKernel", run.Command().String())

	var stamps []uint64
	for _, p := range []ProfilingParam{ProfilingCommandQueued, ProfilingCommandSubmit, ProfilingCommandStart, ProfilingCommandEnd} {
		v, err := run.ProfilingInfo(p)
		require.NoError(t, err)
		stamps = append(stamps, v)
	}
	assert.IsNonDecreasing(t, stamps)

	dur, err := run.Duration()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(stamps[3]-stamps[2]), dur)

	_, err = run.ProfilingInfo(ProfilingParam(7))
	assert.True(t, IsInvalidArgError(err))

	out := make([]float32, 256)
	_, err = q.EnqueueReadBuffer(d, true, 0, 256*4, out)
	require.NoError(t, err)
	assert.Equal(t, float32(510), out[255])
}

func TestProfilingRequiresEnabledQueue(t *testing.T) {
	ctx := NewContextOrFail(t)
	q, err := ctx.NewCommandQueue(0)
	require.NoError(t, err)
	assert.False(t, q.Profiling())

	d := MallocOrFail(t, ctx, 16)
	ev, err := q.EnqueueWriteBuffer(d, true, 0, 16, make([]float32, 4))
	require.NoError(t, err)

	_, err = ev.ProfilingInfo(ProfilingCommandStart)
	assert.ErrorIs(t, err, ErrProfilingInfoNotAvailable)
	_, err = ev.Duration()
	assert.ErrorIs(t, err, ErrProfilingInfoNotAvailable)
}

func TestProfilingUnavailableBeforeCompletion(t *testing.T) {
	ctx := NewContextOrFail(t)
	q, err := ctx.NewCommandQueue(QueueProfilingEnable)
	require.NoError(t, err)
	d := MallocOrFail(t, ctx, 16)

	// Hold the queue's stream until the first event has been inspected
	gate := make(chan struct{})
	q.stream.Submit(func() error {
		<-gate
		return nil
	})

	ev, err := q.EnqueueReadBuffer(d, false, 0, 16, make([]float32, 4))
	require.NoError(t, err)
	assert.Equal(t, EventSubmitted, ev.Status())
	_, err = ev.ProfilingInfo(ProfilingCommandEnd)
	assert.ErrorIs(t, err, ErrProfilingInfoNotAvailable)

	close(gate)
	require.NoError(t, q.Finish())
	assert.Equal(t, EventComplete, ev.Status())
	_, err = ev.ProfilingInfo(ProfilingCommandEnd)
	assert.NoError(t, err)
}

func TestNonBlockingTransfersKeepOrder(t *testing.T) {
	ctx := NewContextOrFail(t)
	q, err := ctx.NewCommandQueue(QueueProfilingEnable)
	require.NoError(t, err)
	d := MallocOrFail(t, ctx, 8*4)

	first := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	second := []float32{9, 9, 9, 9}
	out := make([]float32, 8)

	w1, err := q.EnqueueWriteBuffer(d, false, 0, 8*4, first)
	require.NoError(t, err)
	w2, err := q.EnqueueWriteBuffer(d, false, 4*4, 4*4, second)
	require.NoError(t, err)
	r, err := q.EnqueueReadBuffer(d, false, 0, 8*4, out)
	require.NoError(t, err)

	require.NoError(t, WaitForEvents(w1, w2, r))
	assert.Equal(t, []float32{1, 2, 3, 4, 9, 9, 9, 9}, out)

	end1, err := w1.ProfilingInfo(ProfilingCommandEnd)
	require.NoError(t, err)
	start2, err := w2.ProfilingInfo(ProfilingCommandStart)
	require.NoError(t, err)
	assert.LessOrEqual(t, end1, start2, "in-order queue")
}

func TestEnqueueValidation(t *testing.T) {
	ctx := NewContextOrFail(t)
	q, err := ctx.NewCommandQueue(0)
	require.NoError(t, err)
	d := MallocOrFail(t, ctx, 16)

	_, err = q.EnqueueWriteBuffer(d, true, 8, 16, make([]float32, 4))
	assert.True(t, IsInvalidArgError(err), "write past the end")
	_, err = q.EnqueueReadBuffer(d, true, -4, 4, make([]float32, 1))
	assert.True(t, IsInvalidArgError(err), "negative offset")
	_, err = q.EnqueueReadBuffer(DevicePtr{}, true, 0, 4, make([]float32, 1))
	assert.ErrorIs(t, err, ErrNullPointer)

	k, err := testPrograms(t, ctx)[FormBinary].Kernel("scale")
	require.NoError(t, err)
	require.NoError(t, k.SetArgs(MallocOrFail(t, ctx, 100*4), float32(1), 100))

	_, err = q.EnqueueNDRangeKernel(k, Dim3{X: 100}, Dim3{X: 64})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a multiple")

	_, err = q.EnqueueNDRangeKernel(k, Dim3{X: 128}, Dim3{})
	assert.True(t, IsInvalidArgError(err))

	_, err = q.EnqueueNDRangeKernel(k, Dim3{X: 2048}, Dim3{X: 2048})
	assert.True(t, IsInvalidArgError(err), "work group above the thread limit")
}

func TestKernelErrorReachesEvent(t *testing.T) {
	ctx := NewContextOrFail(t)
	q, err := ctx.NewCommandQueue(0)
	require.NoError(t, err)

	k, err := testPrograms(t, ctx)[FormSource].Kernel("scale")
	require.NoError(t, err)
	// n larger than the buffer makes the kernel index out of range
	require.NoError(t, k.SetArgs(MallocOrFail(t, ctx, 4*4), float32(1), 64))

	ev, err := q.EnqueueNDRangeKernel(k, Dim3{X: 64}, Dim3{X: 16})
	require.NoError(t, err)
	assert.True(t, IsExecutionError(ev.Wait()))
	assert.True(t, IsExecutionError(q.Finish()))
	assert.NoError(t, q.Finish())
}

func TestWorkGroups(t *testing.T) {
	grid, err := workGroups(Dim3{X: 512, Y: 512}, Dim3{X: 16, Y: 16})
	require.NoError(t, err)
	assert.Equal(t, Dim3{X: 32, Y: 32, Z: 1}, grid)

	grid, err = workGroups(Dim3{X: 1024}, Dim3{X: 256})
	require.NoError(t, err)
	assert.Equal(t, Dim3{X: 4, Y: 1, Z: 1}, grid)

	_, err = workGroups(Dim3{X: 512, Y: 500}, Dim3{X: 16, Y: 16})
	assert.Error(t, err)
	_, err = workGroups(Dim3{X: -16}, Dim3{X: 16})
	assert.Error(t, err)
}
