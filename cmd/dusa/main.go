// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

// Dusa is the client for the dusad encryption daemon.
package main

import (
	"os"

	"github.com/Dj-Codeman/dusa/cmd/dusa/commands"
	"github.com/Dj-Codeman/dusa/lib/process"
)

func main() {
	if err := commands.Root(commands.Standard()).Execute(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}
