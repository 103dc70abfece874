// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/Dj-Codeman/dusa/cmd/dusa/cli"
	"github.com/Dj-Codeman/dusa/lib/process"
)

const (
	defaultOwner = "system"
	defaultName  = "lost"
)

// entryFlags name a stored entry.
type entryFlags struct {
	owner string
	name  string
}

func (f *entryFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.owner, "owner", "o", defaultOwner, "owner of the stored entry")
	flags.StringVarP(&f.name, "name", "n", defaultName, "name of the stored entry")
}

func encryptFileCommand(env *Environment) *cli.Command {
	var (
		connection connectionFlags
		entry      entryFlags
		path       string
	)
	return &cli.Command{
		Name:    "encrypt-file",
		Summary: "Encrypt a file into the vault",
		Description: `Encrypt a file into the vault under an owner and a name.

Ownership of the file passes to the service account before the daemon
reads it. By default the daemon deletes the plaintext once it is stored.`,
		Usage: "dusa encrypt-file --path FILE [--owner OWNER] [--name NAME]",
		Examples: []cli.Example{
			{Description: "Store an SSH key", Command: "dusa encrypt-file -p ~/.ssh/id_ed25519 -o alice -n ssh-key"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("encrypt-file", pflag.ContinueOnError)
			flags.StringVarP(&path, "path", "p", "", "file to encrypt (required)")
			entry.register(flags)
			connection.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if path == "" && len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return usageError("--path is required")
			}
			c, _, err := connection.connect(env, true)
			if err != nil {
				return err
			}
			confirmation, err := c.StoreFile(context.Background(), path, entry.owner, entry.name)
			if err != nil {
				return err
			}
			fmt.Fprintln(env.Stdout, confirmation)
			return nil
		},
	}
}

func decryptFileCommand(env *Environment) *cli.Command {
	var (
		connection  connectionFlags
		entry       entryFlags
		destination string
		tempOnly    bool
	)
	return &cli.Command{
		Name:    "decrypt-file",
		Summary: "Decrypt a file from the vault",
		Description: `Decrypt a stored file.

The plaintext is copied back to the path it was stored from, or to
--path when given. With --temp the command prints the daemon's
temporary path instead, which is removed a few seconds later.`,
		Usage: "dusa decrypt-file [--owner OWNER] [--name NAME] [--path DEST | --temp]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("decrypt-file", pflag.ContinueOnError)
			flags.StringVarP(&destination, "path", "p", "", "where to write the plaintext (default: original path)")
			flags.BoolVar(&tempOnly, "temp", false, "print the temporary plaintext path without copying")
			entry.register(flags)
			connection.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if tempOnly && destination != "" {
				return usageError("--temp and --path are mutually exclusive")
			}
			c, _, err := connection.connect(env, false)
			if err != nil {
				return err
			}
			ctx := context.Background()
			if tempOnly {
				decrypted, err := c.DecryptFile(ctx, entry.owner, entry.name)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Stdout, "%s (original %s, removed after %s)\n",
					decrypted.TempPath, decrypted.OriginalPath, decrypted.TTL)
				return nil
			}
			written, err := c.RetrieveFile(ctx, entry.owner, entry.name, destination)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "file %s restored\n", written)
			return nil
		},
	}
}

func removeFileCommand(env *Environment) *cli.Command {
	var (
		connection connectionFlags
		entry      entryFlags
	)
	return &cli.Command{
		Name:    "remove-file",
		Summary: "Remove a file from the vault",
		Usage:   "dusa remove-file [--owner OWNER] [--name NAME]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("remove-file", pflag.ContinueOnError)
			entry.register(flags)
			connection.register(flags)
			return flags
		},
		Run: func(args []string) error {
			c, _, err := connection.connect(env, false)
			if err != nil {
				return err
			}
			if err := c.RemoveFile(context.Background(), entry.owner, entry.name); err != nil {
				return err
			}
			fmt.Fprintf(env.Stdout, "%s/%s removed\n", entry.owner, entry.name)
			return nil
		},
	}
}

// usageError is a command-line mistake, reported with exit status 2.
func usageError(format string, args ...any) error {
	return &process.ExitError{Code: 2, Err: fmt.Errorf(format, args...)}
}
