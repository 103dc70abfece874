// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Dj-Codeman/dusa/lib/clock"
	"github.com/Dj-Codeman/dusa/lib/sealed"
	"github.com/Dj-Codeman/dusa/lib/secret"
	"github.com/Dj-Codeman/dusa/lib/sqlitepool"
)

var (
	// ErrExists is returned by Store when (owner, name) is taken.
	ErrExists = errors.New("vault: entry already exists")

	// ErrNotFound is returned when no entry matches (owner, name).
	ErrNotFound = errors.New("vault: entry not found")

	// ErrPermissionDenied is returned by Retrieve when the requesting
	// uid neither wrote the entry nor is root, and by Store when the
	// source lies inside the vault or belongs to another uid.
	ErrPermissionDenied = errors.New("vault: permission denied")

	// ErrInvalidKey is returned for an empty owner or name, or one
	// containing a NUL byte.
	ErrInvalidKey = errors.New("vault: invalid owner or name")
)

const (
	// DefaultChunkSize is the plaintext size of each file chunk.
	DefaultChunkSize = 64 * 1024

	// RawChunkSize is the plaintext size of each raw text chunk.
	RawChunkSize = 4 * 1024

	// maxChunkSize bounds ChunkSize and any size read from a chunk
	// header.
	maxChunkSize = 4 * 1024 * 1024
)

// Config describes where a vault lives and how it writes.
type Config struct {
	// Root is the vault directory. Required.
	Root string

	// IdentityPath is the age identity file. Defaults to
	// Root/identity.txt.
	IdentityPath string

	// TempDir receives decrypted files. Defaults to Root/tmp.
	TempDir string

	// Compression applies to file chunks.
	Compression Compression

	// ChunkSize is the plaintext size of a file chunk. Defaults to
	// DefaultChunkSize.
	ChunkSize int

	// RemoveSource deletes the source file after a successful Store.
	RemoveSource bool

	// EscrowRecipients are extra age recipients the master key is
	// sealed to when it is first generated.
	EscrowRecipients []string

	// PoolSize is the SQLite connection count.
	PoolSize int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Vault is an open encrypted store. It is safe for concurrent use.
type Vault struct {
	chunkDir     string
	tempDir      string
	pool         *sqlitepool.Pool
	masterKey    *secret.Buffer
	compression  Compression
	chunkSize    int
	removeSource bool
	clock        clock.Clock
	logger       *slog.Logger

	// protected holds the resolved root, identity, and temp paths
	// that Store refuses to read.
	protected  []string
	serviceUID int
}

// Open opens the vault at cfg.Root, creating the directory layout,
// identity, master key, and index on first use.
func Open(ctx context.Context, cfg Config) (*Vault, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("vault: Root is required")
	}
	if cfg.IdentityPath == "" {
		cfg.IdentityPath = filepath.Join(cfg.Root, "identity.txt")
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(cfg.Root, "tmp")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkSize > maxChunkSize {
		return nil, fmt.Errorf("vault: chunk size %d exceeds maximum %d", cfg.ChunkSize, maxChunkSize)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	chunkDir := filepath.Join(cfg.Root, "chunks")
	for _, directory := range []struct {
		path string
		mode fs.FileMode
	}{
		{cfg.Root, 0o700},
		{chunkDir, 0o700},
		// Group members need to traverse to the temp file they were
		// handed; they cannot list the directory.
		{cfg.TempDir, 0o710},
	} {
		if err := os.MkdirAll(directory.path, directory.mode); err != nil {
			return nil, fmt.Errorf("vault: creating %s: %w", directory.path, err)
		}
	}

	identity, created, err := sealed.LoadOrCreateIdentity(cfg.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	defer identity.Close()
	if created {
		cfg.Logger.Info("vault identity created", "path", cfg.IdentityPath, "recipient", identity.Recipient)
	}

	masterKey, err := loadMasterKey(filepath.Join(cfg.Root, "master.age"), identity, cfg.EscrowRecipients, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}

	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:       filepath.Join(cfg.Root, "index.db"),
		PoolSize:   cfg.PoolSize,
		Migrations: migrations,
		Logger:     cfg.Logger,
	})
	if err != nil {
		masterKey.Close()
		return nil, fmt.Errorf("vault: %w", err)
	}

	protected, err := resolvePaths(cfg.Root, cfg.IdentityPath, cfg.TempDir)
	if err != nil {
		pool.Close()
		masterKey.Close()
		return nil, fmt.Errorf("vault: %w", err)
	}

	return &Vault{
		protected:    protected,
		serviceUID:   os.Geteuid(),
		chunkDir:     chunkDir,
		tempDir:      cfg.TempDir,
		pool:         pool,
		masterKey:    masterKey,
		compression:  cfg.Compression,
		chunkSize:    cfg.ChunkSize,
		removeSource: cfg.RemoveSource,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}, nil
}

// loadMasterKey unseals the master key at path, or generates and seals
// a new one if the file does not exist.
func loadMasterKey(path string, identity *sealed.Identity, escrow []string, logger *slog.Logger) (*secret.Buffer, error) {
	ciphertext, err := os.ReadFile(path)
	if err == nil {
		key, err := sealed.Open(ciphertext, identity)
		if err != nil {
			return nil, fmt.Errorf("unsealing master key: %w", err)
		}
		if key.Len() != KeySize {
			key.Close()
			return nil, fmt.Errorf("master key is %d bytes, want %d", key.Len(), KeySize)
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading master key: %w", err)
	}

	raw, err := randomBytes(KeySize)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(raw)

	recipients := append([]string{identity.Recipient}, escrow...)
	ciphertext, err = sealed.Seal(raw, recipients...)
	if err != nil {
		return nil, fmt.Errorf("sealing master key: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating master key file: %w", err)
	}
	_, writeErr := file.Write(ciphertext)
	syncErr := file.Sync()
	closeErr := file.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing master key file: %w", err)
	}
	logger.Info("vault master key generated", "path", path, "recipients", len(recipients))
	return secret.NewFromBytes(raw)
}

// Close releases the index and zeroes the master key.
func (v *Vault) Close() error {
	poolErr := v.pool.Close()
	keyErr := v.masterKey.Close()
	return errors.Join(poolErr, keyErr)
}

func validateKey(owner, name string) error {
	if owner == "" || name == "" || strings.ContainsRune(owner, 0) || strings.ContainsRune(name, 0) {
		return ErrInvalidKey
	}
	return nil
}

// Store encrypts the regular file at path under (owner, name) and
// records uid as its writer.
func (v *Vault) Store(ctx context.Context, path, owner, name string, uid uint32) error {
	if err := validateKey(owner, name); err != nil {
		return err
	}
	id := NewEntryID(owner, name)

	if err := v.pool.With(ctx, func(conn *sqlite.Conn) error {
		_, err := lookupEntry(conn, id)
		if err == nil {
			return ErrExists
		}
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}); err != nil {
		return err
	}

	resolved, err := v.resolveSource(path)
	if err != nil {
		return err
	}
	source, err := os.OpenFile(resolved, os.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer source.Close()
	if err := v.checkSourceOwner(source, path); err != nil {
		return err
	}
	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("source %s is not a regular file", path)
	}

	generation, err := randomBytes(generationSize)
	if err != nil {
		return err
	}
	entryKey, err := deriveEntryKey(v.masterKey, id)
	if err != nil {
		return err
	}
	defer entryKey.Close()

	var written []string
	cleanup := func() {
		for _, chunkPath := range written {
			os.Remove(chunkPath)
		}
	}

	buffer := make([]byte, v.chunkSize)
	defer secret.Zero(buffer)
	var sequence uint32
	var size int64
	for {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		n, readErr := io.ReadFull(source, buffer)
		if n > 0 {
			chunkPath, err := v.writeChunk(buffer[:n], entryKey, id, generation, sequence)
			if err != nil {
				cleanup()
				return err
			}
			written = append(written, chunkPath)
			sequence++
			size += int64(n)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			cleanup()
			return fmt.Errorf("reading source: %w", readErr)
		}
	}

	row := &entry{
		ID:           id,
		Owner:        owner,
		Name:         name,
		OriginalPath: path,
		Mode:         info.Mode().Perm(),
		Size:         size,
		Chunks:       sequence,
		WriterUID:    uid,
		Generation:   generation,
		Compression:  v.compression,
		CreatedAt:    v.clock.Now(),
	}
	if err := v.pool.With(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("begin store transaction: %w", err)
		}
		defer endTransaction(&err)

		if _, err := lookupEntry(conn, id); err == nil {
			return ErrExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return insertEntry(conn, row)
	}); err != nil {
		cleanup()
		return err
	}

	v.logger.Info("entry stored",
		"entry", id.String(),
		"owner", owner,
		"chunks", sequence,
		"size", size,
		"writer_uid", uid,
	)

	if v.removeSource {
		if err := os.Remove(resolved); err != nil {
			v.logger.Warn("removing stored source failed", "path", resolved, "error", err)
		}
	}
	return nil
}

// writeChunk seals one chunk and writes it under its obscured name.
func (v *Vault) writeChunk(data []byte, entryKey *secret.Buffer, id EntryID, generation []byte, sequence uint32) (string, error) {
	frame, err := encodeChunk(data, v.compression)
	if err != nil {
		return "", err
	}
	blob, err := sealBlob(frame, entryKey, entryAAD(id, generation, sequence))
	secret.Zero(frame)
	if err != nil {
		return "", err
	}
	chunkPath := filepath.Join(v.chunkDir, chunkReference(v.masterKey, id, generation, sequence))
	if err := writeFileAtomic(chunkPath, blob); err != nil {
		return "", fmt.Errorf("writing chunk %d: %w", sequence, err)
	}
	return chunkPath, nil
}

// Retrieve decrypts (owner, name) into a new temp file on behalf of
// uid and returns the temp path and the path the file was stored from.
// The caller is responsible for scheduling the temp file's removal.
func (v *Vault) Retrieve(ctx context.Context, owner, name string, uid uint32) (string, string, error) {
	if err := validateKey(owner, name); err != nil {
		return "", "", err
	}
	id := NewEntryID(owner, name)

	var row *entry
	if err := v.pool.With(ctx, func(conn *sqlite.Conn) (err error) {
		row, err = lookupEntry(conn, id)
		return err
	}); err != nil {
		return "", "", err
	}
	if uid != 0 && uid != row.WriterUID {
		return "", "", ErrPermissionDenied
	}

	entryKey, err := deriveEntryKey(v.masterKey, id)
	if err != nil {
		return "", "", err
	}
	defer entryKey.Close()

	temp, err := os.CreateTemp(v.tempDir, "dusa-*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()
	fail := func(err error) (string, string, error) {
		temp.Close()
		os.Remove(tempPath)
		return "", "", err
	}

	for sequence := range row.Chunks {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		blob, err := os.ReadFile(filepath.Join(v.chunkDir, chunkReference(v.masterKey, id, row.Generation, sequence)))
		if err != nil {
			return fail(fmt.Errorf("reading chunk %d of %s: %w", sequence, id, err))
		}
		frame, err := openBlob(blob, entryKey, entryAAD(id, row.Generation, sequence))
		if err != nil {
			return fail(fmt.Errorf("chunk %d of %s: %w", sequence, id, err))
		}
		data, err := decodeChunk(frame)
		if err != nil {
			secret.Zero(frame)
			return fail(fmt.Errorf("chunk %d of %s: %w", sequence, id, err))
		}
		_, err = temp.Write(data)
		secret.Zero(data)
		secret.Zero(frame)
		if err != nil {
			return fail(fmt.Errorf("writing temp file: %w", err))
		}
	}

	if err := temp.Chmod(0o640); err != nil {
		return fail(fmt.Errorf("chmod temp file: %w", err))
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return "", "", fmt.Errorf("closing temp file: %w", err)
	}

	// Hand the file to the requester when we have the privilege to.
	// Otherwise it stays readable by the service group.
	if os.Geteuid() == 0 && uid != 0 {
		if err := os.Lchown(tempPath, int(uid), -1); err != nil {
			v.logger.Warn("handing temp file to requester failed", "path", tempPath, "uid", uid, "error", err)
		}
	}

	v.logger.Info("entry retrieved", "entry", id.String(), "owner", owner, "uid", uid, "temp_path", tempPath)
	return tempPath, row.OriginalPath, nil
}

// Remove deletes (owner, name) from the index and its chunk files
// from disk.
func (v *Vault) Remove(ctx context.Context, owner, name string) error {
	if err := validateKey(owner, name); err != nil {
		return err
	}
	id := NewEntryID(owner, name)

	var row *entry
	if err := v.pool.With(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("begin remove transaction: %w", err)
		}
		defer endTransaction(&err)

		row, err = lookupEntry(conn, id)
		if err != nil {
			return err
		}
		return deleteEntry(conn, id)
	}); err != nil {
		return err
	}

	for sequence := range row.Chunks {
		chunkPath := filepath.Join(v.chunkDir, chunkReference(v.masterKey, id, row.Generation, sequence))
		if err := os.Remove(chunkPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			v.logger.Warn("removing chunk failed", "entry", id.String(), "sequence", sequence, "error", err)
		}
	}
	v.logger.Info("entry removed", "entry", id.String(), "owner", owner)
	return nil
}

// Count returns the number of stored entries.
func (v *Vault) Count(ctx context.Context) (int, error) {
	var count int
	err := v.pool.With(ctx, func(conn *sqlite.Conn) (err error) {
		count, err = countEntries(conn)
		return err
	})
	return count, err
}

// writeFileAtomic writes data to path through a temp file and rename,
// so a crash never leaves a truncated chunk under its final name.
func writeFileAtomic(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), ".chunk-*")
	if err != nil {
		return err
	}
	tempPath := temp.Name()
	_, writeErr := temp.Write(data)
	syncErr := temp.Sync()
	closeErr := temp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
