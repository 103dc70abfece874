// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"io"
)

// ReadAll reads r to the end, up to limit bytes, into a Buffer. One
// trailing newline is dropped so that piped input such as
// `echo secret | dusa encrypt-text` stores exactly "secret". Input
// longer than limit is an error.
func ReadAll(r io.Reader, limit int) (*Buffer, error) {
	scratch := make([]byte, 0, 512)
	defer func() { Zero(scratch[:cap(scratch)]) }()

	chunk := make([]byte, 512)
	defer Zero(chunk)
	for {
		n, err := r.Read(chunk)
		if len(scratch)+n > limit {
			return nil, fmt.Errorf("secret: input exceeds %d bytes", limit)
		}
		if len(scratch)+n > cap(scratch) {
			grown := make([]byte, len(scratch), 2*cap(scratch)+n)
			copy(grown, scratch)
			Zero(scratch[:cap(scratch)])
			scratch = grown
		}
		scratch = append(scratch, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("secret: reading input: %w", err)
		}
	}

	data := bytes.TrimSuffix(scratch, []byte("\n"))
	data = bytes.TrimSuffix(data, []byte("\r"))
	if len(data) == 0 {
		return nil, fmt.Errorf("secret: input is empty")
	}
	return NewFromBytes(data)
}
