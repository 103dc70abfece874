// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/Dj-Codeman/dusa/cmd/dusa/cli"
	"github.com/Dj-Codeman/dusa/lib/client"
	"github.com/Dj-Codeman/dusa/lib/config"
	"github.com/Dj-Codeman/dusa/lib/ownership"
)

// connectionFlags are the flags every daemon-facing command accepts.
// Zero values defer to the configuration file.
type connectionFlags struct {
	configPath string
	socketPath string
	timeout    time.Duration
	verbose    bool
}

func (f *connectionFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.configPath, "config", "", "path to dusa.yaml (default $DUSA_CONFIG, then built-in defaults)")
	flags.StringVar(&f.socketPath, "socket", "", "daemon socket path (overrides client.socket_path)")
	flags.DurationVar(&f.timeout, "timeout", 0, "per-request timeout (overrides client.timeout)")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")
}

// connect resolves configuration and returns a client and its logger.
func (f *connectionFlags) connect(env *Environment, needService bool) (*client.Client, *slog.Logger, error) {
	cfg, err := config.Resolve(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := cli.NewCommandLogger(env.Stderr, level)

	socketPath := cfg.Client.SocketPath
	if f.socketPath != "" {
		socketPath = f.socketPath
	}
	timeout := cfg.Client.Timeout.Std()
	if f.timeout > 0 {
		timeout = f.timeout
	}

	var service *ownership.Identity
	if needService {
		identity, err := serviceIdentity(cfg.Client.ServiceAccount, logger)
		if err != nil {
			return nil, nil, err
		}
		service = &identity
	}

	c, err := client.New(client.Config{
		SocketPath:      socketPath,
		Timeout:         timeout,
		ServiceIdentity: service,
		Logger:          logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return c, logger, nil
}

// serviceIdentity resolves the account stored files are handed to. An
// unprivileged user without that account keeps ownership, which only
// works against a daemon running as the same user.
func serviceIdentity(account string, logger *slog.Logger) (ownership.Identity, error) {
	identity, err := ownership.LookupIdentity(account)
	if err == nil {
		return identity, nil
	}
	if os.Geteuid() == 0 {
		return ownership.Identity{}, err
	}
	current := ownership.Current()
	logger.Debug("service account not found, keeping file ownership",
		"account", account,
		"identity", current.String(),
	)
	return current, nil
}
