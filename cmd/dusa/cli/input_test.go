// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestReadSecretFromPipe(t *testing.T) {
	var prompt bytes.Buffer
	buffer, err := ReadSecret(strings.NewReader("hello world\n"), &prompt, 1024)
	if err != nil {
		t.Fatalf("ReadSecret: %v", err)
	}
	defer buffer.Close()

	if buffer.String() != "hello world" {
		t.Errorf("secret = %q", buffer.String())
	}
	if prompt.Len() != 0 {
		t.Errorf("prompt written for non-terminal input: %q", prompt.String())
	}
}

func TestReadSecretLimits(t *testing.T) {
	if _, err := ReadSecret(strings.NewReader(""), &bytes.Buffer{}, 1024); err == nil {
		t.Error("empty input accepted")
	}
	if _, err := ReadSecret(strings.NewReader(strings.Repeat("x", 100)), &bytes.Buffer{}, 10); err == nil {
		t.Error("oversized input accepted")
	}
}

func TestCommandLoggerUsesJSONOffTerminal(t *testing.T) {
	var output bytes.Buffer
	logger := NewCommandLogger(&output, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("stored", "owner", "alice")

	if strings.Contains(output.String(), "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(output.String(), `"owner":"alice"`) {
		t.Errorf("expected JSON record, got %q", output.String())
	}
}
