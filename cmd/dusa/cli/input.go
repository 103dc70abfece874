// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/Dj-Codeman/dusa/lib/secret"
)

// ReadSecret reads a secret from stdin. On a terminal the prompt is
// written to prompt and input is not echoed; otherwise stdin is read
// to EOF, up to limit bytes. The caller closes the returned buffer.
func ReadSecret(stdin io.Reader, prompt io.Writer, limit int) (*secret.Buffer, error) {
	if !isTerminal(stdin) {
		return secret.ReadAll(stdin, limit)
	}

	fmt.Fprint(prompt, "Secret: ")
	line, err := term.ReadPassword(int(stdin.(*os.File).Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, fmt.Errorf("reading secret from terminal: %w", err)
	}
	defer secret.Zero(line)

	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return nil, fmt.Errorf("secret: input is empty")
	}
	if len(line) > limit {
		return nil, fmt.Errorf("secret: input exceeds %d bytes", limit)
	}
	return secret.NewFromBytes(line)
}
