// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time-driven code run against either the system
// clock or a deterministic fake.
//
// The daemon's temp-file reaper is the main consumer: a decrypted file
// must exist for exactly the protocol TTL, and tests need to observe it
// just before and just after that deadline without sleeping.
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	r := reaper.New(reaper.Config{Clock: fake, ...})
//	r.Schedule(path, 5*time.Second)
//	fake.WaitForTimers(1)
//	fake.Advance(5 * time.Second) // the reap runs inside Advance
//
// Socket deadlines are not routed through Clock; the kernel enforces
// them against wall time.
package clock
