// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package ownership is dusa's access-control primitive. Kernel file
// ownership is the authorization boundary: a plaintext file is readable
// by whoever owns it, and handing it to the service identity takes it
// away from everyone else.
//
// The client uses [Transfer] to give a source file to the service
// identity before asking the daemon to store it. The daemon's reaper
// uses it to take a decrypted temp file back just before deleting it.
// The daemon itself uses [LookupIdentity] and [DropPrivileges] once at
// startup, [RestrictSocket] after binding, and [PeerCredentials] to
// check who is on the other end of each connection.
package ownership
