// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps key material out of swap, core dumps, and the
// Go heap.
//
// A [Buffer] is an anonymous mmap region locked with mlock and marked
// MADV_DONTDUMP. Close zeroes it before unmapping. The vault holds its
// master key and every derived entry key in a Buffer for exactly as
// long as it needs them.
//
// [ReadAll] reads a secret from a stream (a pipe or the terminal) into
// a Buffer without leaving a heap copy behind.
package secret
