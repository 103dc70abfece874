// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Dj-Codeman/dusa/lib/ownership"
	"github.com/Dj-Codeman/dusa/lib/protocol"
)

// StoreFile transfers the regular file at path to the service identity
// and asks the daemon to encrypt it under (owner, name). It returns
// the daemon's confirmation message.
func (c *Client) StoreFile(ctx context.Context, path, owner, name string) (string, error) {
	if c.service == nil {
		return "", fmt.Errorf("client: no service identity configured")
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Lstat(absolute)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", absolute)
	}
	if err := ownership.Transfer(absolute, *c.service); err != nil {
		return "", err
	}

	var written protocol.WriteResponse
	if err := c.request(ctx, &protocol.WriteRequest{
		Path:  absolute,
		Owner: owner,
		Name:  name,
		UID:   c.uid,
	}, &written); err != nil {
		return "", err
	}
	c.logger.Info("file stored", "path", absolute, "owner", owner, "name", name)
	return written.Ok, nil
}

// DecryptFile asks the daemon to decrypt (owner, name) into a temp
// file. The file is removed TTL after the daemon replies.
func (c *Client) DecryptFile(ctx context.Context, owner, name string) (*protocol.DecryptResponse, error) {
	var decrypted protocol.DecryptResponse
	if err := c.request(ctx, &protocol.SimpleRequest{
		Command: protocol.CommandDecryptFile,
		Owner:   owner,
		Name:    name,
		UID:     c.uid,
	}, &decrypted); err != nil {
		return nil, err
	}
	return &decrypted, nil
}

// RetrieveFile decrypts (owner, name) and copies the plaintext to
// destination, or to the path it was stored from when destination is
// empty. It returns the path written.
func (c *Client) RetrieveFile(ctx context.Context, owner, name, destination string) (string, error) {
	decrypted, err := c.DecryptFile(ctx, owner, name)
	if err != nil {
		return "", err
	}
	if destination == "" {
		destination = decrypted.OriginalPath
	}
	if err := copyFile(decrypted.TempPath, destination); err != nil {
		return "", fmt.Errorf("copying decrypted file within its %s window: %w", decrypted.TTL, err)
	}
	c.logger.Info("file retrieved", "owner", owner, "name", name, "destination", destination)
	return destination, nil
}

// EncryptText encrypts text and returns the value DecryptText takes.
func (c *Client) EncryptText(ctx context.Context, text string) (string, error) {
	var value protocol.ValueResponse
	if err := c.request(ctx, &protocol.PlainTextRequest{
		Command: protocol.CommandEncryptRawText,
		Data:    text,
		UID:     c.uid,
	}, &value); err != nil {
		return "", err
	}
	return value.Value, nil
}

// DecryptText reverses EncryptText.
func (c *Client) DecryptText(ctx context.Context, encrypted string) (string, error) {
	var value protocol.ValueResponse
	if err := c.request(ctx, &protocol.PlainTextRequest{
		Command: protocol.CommandDecryptRawText,
		Data:    encrypted,
		UID:     c.uid,
	}, &value); err != nil {
		return "", err
	}
	return value.Value, nil
}

// RemoveFile deletes (owner, name) from the store.
func (c *Client) RemoveFile(ctx context.Context, owner, name string) error {
	var value protocol.ValueResponse
	if err := c.request(ctx, &protocol.SimpleRequest{
		Command: protocol.CommandRemoveFile,
		Owner:   owner,
		Name:    name,
		UID:     c.uid,
	}, &value); err != nil {
		return err
	}
	if value.Value != protocol.ValueOK {
		return fmt.Errorf("unexpected remove reply %q", value.Value)
	}
	return nil
}

// PingFile sends a PingFile request and returns the daemon's answer.
func (c *Client) PingFile(ctx context.Context, owner, name string) (string, error) {
	var value protocol.ValueResponse
	if err := c.request(ctx, &protocol.SimpleRequest{
		Command: protocol.CommandPingFile,
		Owner:   owner,
		Name:    name,
		UID:     c.uid,
	}, &value); err != nil {
		return "", err
	}
	return value.Value, nil
}

// copyFile copies source to destination, replacing it, with mode 0600.
func copyFile(source, destination string) (err error) {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()
	_, err = io.Copy(out, in)
	return err
}
