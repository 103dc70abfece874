// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed wraps filippo.io/age for the one job dusa gives it:
// keeping the vault master key encrypted at rest.
//
// The daemon holds an age X25519 identity in a file readable only by
// the service account. The master key is sealed to that identity's
// recipient and written ASCII-armored to master.age. Opening the vault
// reads the identity, unseals the master key into a [secret.Buffer],
// and drops every heap copy it can.
//
// Additional recipients may be passed to [Seal] so an operator can hold
// an escrow copy of the master key.
package sealed
