// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package guda is a CPU device runtime with a GPU-style programming model.
//
// A Context owns device memory, streams and command queues. Kernels run
// over a grid of thread blocks in one of three forms:
//
//   - KernelFunc runs the threads of a block one after another.
//   - SharedKernelFunc runs every thread of a block concurrently with
//     block-shared scratch memory and a barrier (Block.SyncThreads).
//   - GroupFunc is invoked once per block and handles all of its threads.
//
// Kernels are packaged as a Module of KernelDefs, each carrying a
// per-thread source body and a block-level binary body. BuildProgram turns
// a registered module into a source Program; EncodeBinary and LoadBinary
// round-trip its kernel table through a checksummed binary image whose
// programs run the block-level bodies.
//
// A CommandQueue gives the in-order enqueue model: buffer writes and reads,
// NDRange kernel launches where the global size must be a multiple of the
// work-group size, and Events that carry profiling timestamps when the
// queue was created with QueueProfilingEnable.
//
// Reference holds host implementations of the sample kernels, and
// RelativeL2Error and VerifyFloat32Array compare device results against
// them.
package guda
