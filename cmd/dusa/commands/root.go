// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"os"

	"github.com/Dj-Codeman/dusa/cmd/dusa/cli"
)

// Environment is the process context commands read from and write
// to. Tests substitute buffers for the standard streams.
type Environment struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Standard returns an Environment bound to the process's streams.
func Standard() *Environment {
	return &Environment{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Root builds the complete dusa command tree.
func Root(env *Environment) *cli.Command {
	return &cli.Command{
		Name: "dusa",
		Description: `Dusa: encrypted file and text storage.

Files are handed to the dusad daemon, which encrypts them into its vault
under an owner and a name. Decrypted files are written to a temporary
path that the daemon removes a few seconds later.`,
		Output: env.Stderr,
		Subcommands: []*cli.Command{
			encryptFileCommand(env),
			decryptFileCommand(env),
			removeFileCommand(env),
			encryptTextCommand(env),
			decryptTextCommand(env),
			pingCommand(env),
			versionCommand(env),
		},
	}
}
