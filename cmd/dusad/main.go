// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Dj-Codeman/dusa/lib/config"
	"github.com/Dj-Codeman/dusa/lib/daemon"
	"github.com/Dj-Codeman/dusa/lib/ownership"
	"github.com/Dj-Codeman/dusa/lib/process"
	"github.com/Dj-Codeman/dusa/lib/protocol"
	"github.com/Dj-Codeman/dusa/lib/reaper"
	"github.com/Dj-Codeman/dusa/lib/vault"
	"github.com/Dj-Codeman/dusa/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		showVersion bool
		checkConfig bool
	)
	flags := pflag.NewFlagSet("dusad", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to dusa.yaml (default $DUSA_CONFIG, then built-in defaults)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	flags.BoolVar(&checkConfig, "check-config", false, "validate the configuration and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &process.ExitError{Code: 2, Err: err}
	}

	if showVersion {
		fmt.Printf("dusad %s\n", version.Full(protocol.Version))
		return nil
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if checkConfig {
		fmt.Println("configuration ok")
		return nil
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	service, drop, err := serviceIdentity(cfg.Daemon.ServiceAccount, ownership.Current(), cfg.Daemon.DropPrivileges, logger)
	if err != nil {
		return err
	}

	// Directories are created before dropping privileges so that a root
	// start can populate /var/lib and /var/run.
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	if drop {
		if err := handOver(cfg, service); err != nil {
			return err
		}
		if err := ownership.DropPrivileges(service); err != nil {
			return fmt.Errorf("dropping privileges: %w", err)
		}
		logger.Info("dropped privileges", "identity", service.String())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	compression, err := vault.ParseCompression(cfg.Vault.Compression)
	if err != nil {
		return err
	}
	store, err := vault.Open(ctx, vault.Config{
		Root:             cfg.Vault.Root,
		IdentityPath:     cfg.Vault.IdentityPath,
		TempDir:          cfg.Vault.TempDir,
		Compression:      compression,
		ChunkSize:        cfg.Vault.ChunkSize,
		RemoveSource:     cfg.Vault.RemoveSource,
		EscrowRecipients: cfg.Vault.EscrowRecipients,
		PoolSize:         cfg.Vault.PoolSize,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}
	defer store.Close()

	temps := reaper.New(reaper.Config{Identity: service, Logger: logger})
	defer func() {
		if removed := temps.Flush(); removed > 0 {
			logger.Info("removed pending temp files", "count", removed)
		}
	}()

	server, err := daemon.New(daemon.Config{
		SocketPath:       cfg.Daemon.SocketPath,
		SocketGroup:      &service,
		Store:            store,
		Reaper:           temps,
		ReadTimeout:      cfg.Daemon.ReadTimeout.Std(),
		WriteTimeout:     cfg.Daemon.WriteTimeout.Std(),
		AckTimeout:       cfg.Daemon.AckTimeout.Std(),
		StrictVersion:    cfg.Daemon.StrictVersion,
		AuthenticatePeer: cfg.Daemon.AuthenticatePeer,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	logger.Info("dusad starting",
		"version", version.Full(protocol.Version),
		"socket", cfg.Daemon.SocketPath,
		"vault", cfg.Vault.Root,
		"environment", string(cfg.Environment),
	)
	if err := server.Serve(ctx); err != nil {
		return err
	}
	stats := server.Stats()
	logger.Info("dusad stopped",
		"accepted", stats.Accepted,
		"requests", stats.Requests,
		"error_responses", stats.ErrorResponses,
	)
	return nil
}

// newLogger builds the daemon's JSON logger at the configured level.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// serviceIdentity resolves the account the daemon runs as and reports
// whether the process must drop to it. A daemon started by an
// unprivileged user with no such account serves as that user instead.
// Any other mismatch between the running and service identities is an
// error: temp files handed to the service account could not be
// reclaimed by the reaper.
func serviceIdentity(account string, current ownership.Identity, dropPrivileges bool, logger *slog.Logger) (ownership.Identity, bool, error) {
	service, err := ownership.LookupIdentity(account)
	if err != nil {
		if current.UID == 0 {
			return ownership.Identity{}, false, fmt.Errorf("service account: %w", err)
		}
		logger.Warn("service account not found, serving as current user",
			"account", account,
			"identity", current.String(),
		)
		return current, false, nil
	}
	if current.UID == 0 && dropPrivileges {
		return service, true, nil
	}
	if service.UID != current.UID {
		if current.UID == 0 {
			return ownership.Identity{}, false, fmt.Errorf(
				"service account %s differs from root and daemon.drop_privileges is off", service)
		}
		return ownership.Identity{}, false, fmt.Errorf(
			"running as %s cannot serve as %s: start as root or as the service account", current, service)
	}
	return service, false, nil
}

// handOver gives the service identity the directories it needs once
// root is gone.
func handOver(cfg *config.Config, service ownership.Identity) error {
	for _, path := range []string{cfg.Vault.Root, filepath.Dir(cfg.Daemon.SocketPath)} {
		if err := ownership.Transfer(path, service); err != nil {
			return err
		}
	}
	return nil
}
