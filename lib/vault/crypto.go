// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/Dj-Codeman/dusa/lib/secret"
)

// KeySize is the size of the master key, entry keys, and raw text
// keys.
const KeySize = 32

// blobVersion prefixes every sealed blob and is authenticated with it.
const blobVersion byte = 0x01

// blobOverhead is version + nonce + tag.
const blobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// generationSize is the length of the random per-store generation.
const generationSize = 16

var (
	hkdfInfoEntry   = []byte("dusa.vault.entry.v1")
	referenceDomain = []byte("dusa.vault.ref.v1")
	rawDomain       = []byte("dusa.vault.raw.v1")
)

// EntryID identifies a stored entry.
type EntryID [32]byte

// NewEntryID hashes (owner, name) into an entry id. The NUL separator
// keeps ("ab", "c") and ("a", "bc") apart; owner and name may not
// contain NUL.
func NewEntryID(owner, name string) EntryID {
	hasher := blake3.New()
	hasher.Write([]byte(owner))
	hasher.Write([]byte{0})
	hasher.Write([]byte(name))
	var id EntryID
	copy(id[:], hasher.Sum(nil))
	return id
}

func (id EntryID) String() string {
	return hex.EncodeToString(id[:])
}

// deriveEntryKey returns the key for one entry. masterKey is borrowed.
func deriveEntryKey(masterKey *secret.Buffer, id EntryID) (*secret.Buffer, error) {
	info := make([]byte, 0, len(hkdfInfoEntry)+len(id))
	info = append(info, hkdfInfoEntry...)
	info = append(info, id[:]...)

	reader := hkdf.New(sha256.New, masterKey.Bytes(), nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("deriving entry key: %w", err)
	}
	return secret.NewFromBytes(derived)
}

// chunkReference computes the file name of one chunk.
func chunkReference(masterKey *secret.Buffer, id EntryID, generation []byte, sequence uint32) string {
	hasher, err := blake3.NewKeyed(masterKey.Bytes())
	if err != nil {
		panic("vault: BLAKE3 keyed hash requires a 32-byte key: " + err.Error())
	}
	hasher.Write(referenceDomain)
	hasher.Write(id[:])
	hasher.Write(generation)
	hasher.Write(binary.BigEndian.AppendUint32(nil, sequence))
	return hex.EncodeToString(hasher.Sum(nil))
}

// entryAAD binds a chunk to its entry, generation, and position.
func entryAAD(id EntryID, generation []byte, sequence uint32) []byte {
	aad := make([]byte, 0, 1+len(id)+len(generation)+4)
	aad = append(aad, blobVersion)
	aad = append(aad, id[:]...)
	aad = append(aad, generation...)
	return binary.BigEndian.AppendUint32(aad, sequence)
}

// rawAAD binds a raw text chunk to its position and the total count.
func rawAAD(sequence, total uint32) []byte {
	aad := make([]byte, 0, 1+len(rawDomain)+8)
	aad = append(aad, blobVersion)
	aad = append(aad, rawDomain...)
	aad = binary.BigEndian.AppendUint32(aad, sequence)
	return binary.BigEndian.AppendUint32(aad, total)
}

// sealBlob encrypts plaintext into [version][nonce][ciphertext+tag].
// key is borrowed.
func sealBlob(plaintext []byte, key *secret.Buffer, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	output := make([]byte, 1+len(nonce), blobOverhead+len(plaintext))
	output[0] = blobVersion
	copy(output[1:], nonce[:])
	return aead.Seal(output, nonce[:], plaintext, aad), nil
}

// openBlob reverses sealBlob. key is borrowed.
func openBlob(blob []byte, key *secret.Buffer, aad []byte) ([]byte, error) {
	if len(blob) < blobOverhead {
		return nil, fmt.Errorf("sealed blob is %d bytes, minimum is %d", len(blob), blobOverhead)
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("sealed blob version %d is not supported", blob[0])
	}
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], aad)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	return plaintext, nil
}

// randomBytes returns n bytes from crypto/rand.
func randomBytes(n int) ([]byte, error) {
	buffer := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	return buffer, nil
}
