// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Dj-Codeman/dusa/lib/ownership"
	"github.com/Dj-Codeman/dusa/lib/protocol"
	"github.com/Dj-Codeman/dusa/lib/vault"
)

// invalidCommand is the reply to a command that does not belong to
// the request variant carrying it.
const invalidCommand = "Invalid command parsing"

// replyTooLarge replaces a Response that cannot fit in one frame.
const replyTooLarge = "Reply exceeds the maximum frame size"

// dispatch decodes a Request envelope, runs it against the store, and
// returns the reply to send.
func (s *Server) dispatch(ctx context.Context, message *protocol.Message, peer *ownership.Peer, logger *slog.Logger) *protocol.Message {
	request, err := protocol.DecodeRequest(message.Payload)
	if err != nil {
		logger.Warn("malformed request payload", "error", err)
		var protocolErr *protocol.Error
		if errors.As(err, &protocolErr) {
			return protocol.NewErrorResponse(protocolErr.Code, protocolErr.Message)
		}
		return protocol.NewErrorResponse(protocol.ErrorInvalidPayload, "")
	}

	uid := request.RequesterUID()
	if peer != nil && !peer.MayActAs(uid) {
		logger.Warn("request uid does not match peer credentials", "request_uid", uid)
		return protocol.NewErrorResponse(protocol.ErrorInvalidPermissions, "")
	}

	switch request := request.(type) {
	case *protocol.WriteRequest:
		return s.handleWrite(ctx, request, logger)
	case *protocol.PlainTextRequest:
		return s.handlePlainText(ctx, request, logger)
	case *protocol.SimpleRequest:
		return s.handleSimple(ctx, request, logger)
	default:
		return protocol.NewErrorResponse(protocol.ErrorInternal, invalidCommand)
	}
}

func (s *Server) handleWrite(ctx context.Context, request *protocol.WriteRequest, logger *slog.Logger) *protocol.Message {
	logger = logger.With("operation", "write", "owner", request.Owner, "name", request.Name, "uid", request.UID)
	if err := s.store.Store(ctx, request.Path, request.Owner, request.Name, request.UID); err != nil {
		return storeFailure(logger, err, "Error occurred while inserting")
	}
	logger.Info("file stored", "path", request.Path)
	return respond(logger, protocol.WriteResponse{Ok: fmt.Sprintf("file %s written", request.Path)})
}

func (s *Server) handlePlainText(ctx context.Context, request *protocol.PlainTextRequest, logger *slog.Logger) *protocol.Message {
	logger = logger.With("command", request.Command.ShortName(), "uid", request.UID)
	switch request.Command {
	case protocol.CommandEncryptRawText:
		key, ciphertext, chunks, err := s.store.EncryptRaw(ctx, []byte(request.Data))
		if err != nil {
			return storeFailure(logger, err, "Error occurred while encrypting the data")
		}
		logger.Info("text encrypted", "chunks", chunks)
		return respond(logger, protocol.ValueResponse{Value: FormatRawText(ciphertext, key, chunks)})

	case protocol.CommandDecryptRawText:
		ciphertext, key, chunks := ParseRawText(request.Data)
		plaintext, err := s.store.DecryptRaw(ctx, ciphertext, key, chunks)
		if err != nil {
			return storeFailure(logger, err, "Error occurred while decrypting the data")
		}
		if !utf8.Valid(plaintext) {
			logger.Error("decrypted text is not valid UTF-8")
			return protocol.NewErrorResponse(protocol.ErrorInternal, "Error occurred while decrypting the data")
		}
		logger.Info("text decrypted", "chunks", chunks)
		return respond(logger, protocol.ValueResponse{Value: string(plaintext)})

	default:
		logger.Warn("command not valid for plain text request")
		return protocol.NewErrorResponse(protocol.ErrorInternal, invalidCommand)
	}
}

func (s *Server) handleSimple(ctx context.Context, request *protocol.SimpleRequest, logger *slog.Logger) *protocol.Message {
	logger = logger.With("command", request.Command.ShortName(), "owner", request.Owner, "name", request.Name, "uid", request.UID)
	switch request.Command {
	case protocol.CommandDecryptFile:
		tempPath, originalPath, err := s.store.Retrieve(ctx, request.Owner, request.Name, request.UID)
		if err != nil {
			return storeFailure(logger, err, "Error occurred while decrypting the file")
		}
		s.reaper.Schedule(tempPath, protocol.TTL)
		logger.Info("file decrypted", "temp_path", tempPath, "ttl", protocol.TTL)
		return respond(logger, protocol.DecryptResponse{
			TempPath:     tempPath,
			OriginalPath: originalPath,
			TTL:          protocol.TTL,
		})

	case protocol.CommandRemoveFile:
		if err := s.store.Remove(ctx, request.Owner, request.Name); err != nil {
			return storeFailure(logger, err, "Error occurred while removing the file")
		}
		logger.Info("file removed")
		return respond(logger, protocol.ValueResponse{Value: protocol.ValueOK})

	case protocol.CommandPingFile:
		return respond(logger, protocol.ValueResponse{Value: protocol.ValueNotImplemented})

	default:
		logger.Warn("command not valid for simple request")
		return protocol.NewErrorResponse(protocol.ErrorInternal, invalidCommand)
	}
}

// storeFailure logs a store error in full and returns the generic
// reply the client sees.
func storeFailure(logger *slog.Logger, err error, generic string) *protocol.Message {
	if errors.Is(err, vault.ErrPermissionDenied) {
		logger.Warn("store refused request", "error", err)
		return protocol.NewErrorResponse(protocol.ErrorInvalidPermissions, "")
	}
	logger.Error("store operation failed", "error", err)
	return protocol.NewErrorResponse(protocol.ErrorInternal, generic)
}

func respond(logger *slog.Logger, value any) *protocol.Message {
	reply, err := protocol.NewResponse(value)
	if err != nil {
		logger.Error("encoding response failed", "error", err)
		return protocol.NewErrorResponse(protocol.ErrorInternal, "")
	}
	return reply
}

// FormatRawText joins the parts of an encrypted text into the single
// string EncryptRawText returns: "<ciphertext>-<key>-<chunks>". Hex
// ciphertexts and keys never contain '-'.
func FormatRawText(ciphertext, key string, chunks int) string {
	return ciphertext + "-" + key + "-" + strconv.Itoa(chunks)
}

// ParseRawText splits a FormatRawText string. Missing parts are empty
// and a missing or unparseable chunk count is 1; the store rejects
// whatever does not authenticate.
func ParseRawText(data string) (ciphertext, key string, chunks int) {
	parts := strings.Split(data, "-")
	ciphertext = parts[0]
	if len(parts) > 1 {
		key = parts[1]
	}
	chunks = 1
	if len(parts) > 2 {
		if parsed, err := strconv.Atoi(parts[2]); err == nil {
			chunks = parsed
		}
	}
	return ciphertext, key, chunks
}
