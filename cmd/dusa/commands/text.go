// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/Dj-Codeman/dusa/cmd/dusa/cli"
	"github.com/Dj-Codeman/dusa/lib/vault"
)

func encryptTextCommand(env *Environment) *cli.Command {
	var (
		connection connectionFlags
		data       string
	)
	return &cli.Command{
		Name:    "encrypt-text",
		Summary: "Encrypt a short text value",
		Description: `Encrypt a text value and print the encrypted form.

Without --data the text is read from the terminal without echo, or from
stdin when it is not a terminal. The printed value carries its own key;
keep it secret.`,
		Usage: "dusa encrypt-text [--data TEXT]",
		Examples: []cli.Example{
			{Description: "Encrypt from a pipe", Command: "printf 'hunter2' | dusa encrypt-text"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("encrypt-text", pflag.ContinueOnError)
			flags.StringVarP(&data, "data", "d", "", "text to encrypt (visible in process listings)")
			connection.register(flags)
			return flags
		},
		Run: func(args []string) error {
			c, _, err := connection.connect(env, false)
			if err != nil {
				return err
			}
			text := data
			if text == "" {
				buffer, err := cli.ReadSecret(env.Stdin, env.Stderr, vault.MaxRawSize)
				if err != nil {
					return err
				}
				text = buffer.String()
				buffer.Close()
			}
			encrypted, err := c.EncryptText(context.Background(), text)
			if err != nil {
				return err
			}
			fmt.Fprintln(env.Stdout, encrypted)
			return nil
		},
	}
}

func decryptTextCommand(env *Environment) *cli.Command {
	var (
		connection connectionFlags
		data       string
	)
	return &cli.Command{
		Name:    "decrypt-text",
		Summary: "Decrypt a value printed by encrypt-text",
		Usage:   "dusa decrypt-text --data VALUE",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("decrypt-text", pflag.ContinueOnError)
			flags.StringVarP(&data, "data", "d", "", "encrypted value (default: read from stdin)")
			connection.register(flags)
			return flags
		},
		Run: func(args []string) error {
			if data == "" && len(args) == 1 {
				data = args[0]
			}
			c, _, err := connection.connect(env, false)
			if err != nil {
				return err
			}
			if data == "" {
				buffer, err := cli.ReadSecret(env.Stdin, env.Stderr, 4*vault.MaxRawSize)
				if err != nil {
					return err
				}
				data = buffer.String()
				buffer.Close()
			}
			text, err := c.DecryptText(context.Background(), data)
			if err != nil {
				return err
			}
			fmt.Fprintln(env.Stdout, text)
			return nil
		},
	}
}
