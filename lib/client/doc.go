// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Package client drives dusad's socket protocol from the caller's
// side.
//
// Every operation opens its own connection, sends one envelope, reads
// the reply, sends an Acknowledge, waits for the daemon's Acknowledge,
// and closes. An ErrorResponse surfaces as a [*RemoteError]. A reply
// of an unexpected type at the acknowledge stage is logged and
// otherwise ignored.
//
// [Client.StoreFile] hands the source file to the service identity
// before sending it: file ownership is the authorization for the
// daemon to read it. [Client.RetrieveFile] copies the decrypted temp
// file out before the daemon reaps it.
package client
