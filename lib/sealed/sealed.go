// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/Dj-Codeman/dusa/lib/secret"
)

// Identity is an age X25519 keypair. The private half lives in a
// secret.Buffer; Recipient is the public age1... string.
type Identity struct {
	Private   *secret.Buffer
	Recipient string
}

// Close releases the private key memory.
func (i *Identity) Close() error {
	if i.Private != nil {
		return i.Private.Close()
	}
	return nil
}

// GenerateIdentity creates a new X25519 identity.
func GenerateIdentity() (*Identity, error) {
	generated, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	private, err := secret.NewFromBytes([]byte(generated.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting age identity: %w", err)
	}
	return &Identity{Private: private, Recipient: generated.Recipient().String()}, nil
}

// ParseIdentity parses an identity file's contents held in private:
// one AGE-SECRET-KEY-1... line, with blank and "#" comment lines
// allowed. The buffer is borrowed, not closed.
func ParseIdentity(private *secret.Buffer) (*Identity, error) {
	identities, err := age.ParseIdentities(bytes.NewReader(private.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("invalid age identity: %w", err)
	}
	if len(identities) != 1 {
		return nil, fmt.Errorf("identity file holds %d identities, want 1", len(identities))
	}
	parsed, ok := identities[0].(*age.X25519Identity)
	if !ok {
		return nil, fmt.Errorf("identity is %T, want an X25519 identity", identities[0])
	}
	copied, err := secret.NewFromBytes([]byte(parsed.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting age identity: %w", err)
	}
	return &Identity{Private: copied, Recipient: parsed.Recipient().String()}, nil
}

// LoadOrCreateIdentity reads the identity file at path, generating and
// writing a new one with mode 0600 if it does not exist. The second
// return value reports whether a new identity was created.
func LoadOrCreateIdentity(path string) (*Identity, bool, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, false, fmt.Errorf("identity file %s is empty", path)
		}
		private, err := secret.NewFromBytes(data)
		if err != nil {
			return nil, false, err
		}
		defer private.Close()
		identity, err := ParseIdentity(private)
		if err != nil {
			return nil, false, fmt.Errorf("reading %s: %w", path, err)
		}
		return identity, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("reading identity file: %w", err)
	}

	identity, err := GenerateIdentity()
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		identity.Close()
		return nil, false, fmt.Errorf("creating identity directory: %w", err)
	}
	// O_EXCL so two daemons racing on first start cannot each write a
	// different identity.
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		identity.Close()
		return nil, false, fmt.Errorf("creating identity file: %w", err)
	}
	_, writeErr := fmt.Fprintf(file, "# public key: %s\n%s\n", identity.Recipient, identity.Private.Bytes())
	closeErr := file.Close()
	if writeErr != nil || closeErr != nil {
		identity.Close()
		os.Remove(path)
		return nil, false, fmt.Errorf("writing identity file: %w", errors.Join(writeErr, closeErr))
	}
	return identity, true, nil
}

// Seal encrypts plaintext to every recipient and returns ASCII-armored
// ciphertext.
func Seal(plaintext []byte, recipients ...string) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	parsed := make([]age.Recipient, 0, len(recipients))
	for _, recipient := range recipients {
		r, err := age.ParseX25519Recipient(recipient)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient %q: %w", recipient, err)
		}
		parsed = append(parsed, r)
	}

	var output bytes.Buffer
	armored := armor.NewWriter(&output)
	writer, err := age.Encrypt(armored, parsed...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return output.Bytes(), nil
}

// Open decrypts armored ciphertext produced by Seal. The plaintext is
// returned in a secret.Buffer the caller must close.
func Open(ciphertext []byte, identity *Identity) (*secret.Buffer, error) {
	parsed, err := age.ParseX25519Identity(identity.Private.String())
	if err != nil {
		return nil, fmt.Errorf("invalid age identity: %w", err)
	}

	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(ciphertext)), parsed)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed payload is empty")
	}
	return secret.NewFromBytes(plaintext)
}

// ValidateRecipient reports whether recipient is a well-formed age
// X25519 public key.
func ValidateRecipient(recipient string) error {
	if _, err := age.ParseX25519Recipient(recipient); err != nil {
		return fmt.Errorf("invalid age recipient: %w", err)
	}
	return nil
}
