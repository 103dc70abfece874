// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package reaper deletes decrypted temp files when their exposure
// window closes.
//
// Every successful DecryptFile leaves plaintext on disk at a temp path.
// [Reaper.Schedule] arms a timer for that path; when it fires the
// reaper takes ownership of the file back for the service identity and
// then removes it. The deadline is hard: nothing the client does
// extends it, and there is no way to cancel a single reap.
//
// Both steps are best-effort. A failure is logged at error level,
// counted in [Stats], and not retried. The pending registry makes the
// outstanding work visible, and [Reaper.Flush] reaps everything at once
// when the daemon shuts down.
package reaper
