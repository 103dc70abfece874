// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/Dj-Codeman/dusa/cmd/dusa/cli"
	"github.com/Dj-Codeman/dusa/lib/protocol"
	"github.com/Dj-Codeman/dusa/lib/version"
)

func pingCommand(env *Environment) *cli.Command {
	var (
		connection connectionFlags
		entry      entryFlags
		file       bool
	)
	return &cli.Command{
		Name:    "ping",
		Summary: "Check that the daemon is reachable",
		Description: `Check that the daemon is reachable and speaks a compatible protocol.

With --file a PingFile request is sent for --owner/--name instead.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("ping", pflag.ContinueOnError)
			flags.BoolVar(&file, "file", false, "send a PingFile request for an entry")
			entry.register(flags)
			connection.register(flags)
			return flags
		},
		Run: func(args []string) error {
			c, _, err := connection.connect(env, false)
			if err != nil {
				return err
			}
			ctx := context.Background()
			if file {
				answer, err := c.PingFile(ctx, entry.owner, entry.name)
				if err != nil {
					return err
				}
				fmt.Fprintln(env.Stdout, answer)
				return nil
			}
			if err := c.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintln(env.Stdout, "ok")
			return nil
		},
	}
}

func versionCommand(env *Environment) *cli.Command {
	var showHash bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flags.BoolVar(&showHash, "hash", false, "also print the BLAKE3 hash of this binary")
			return flags
		},
		Run: func(args []string) error {
			fmt.Fprintf(env.Stdout, "dusa %s\n", version.Full(protocol.Version))
			if showHash {
				hash, err := version.SelfHash()
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Stdout, "binary blake3 %s\n", hash)
			}
			return nil
		},
	}
}
