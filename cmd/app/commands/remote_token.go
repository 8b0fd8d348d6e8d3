package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	outboxService "github.com/allisson/marketsync/internal/outbox/service"
)

// RunEncryptRemoteToken encrypts the remote API token with the KMS key at keyURI and prints the
// REMOTE_API_TOKEN_CIPHERTEXT value. Supports gcpkms://, awskms://, azurekeyvault://,
// hashivault:// and base64key:// (local development only).
func RunEncryptRemoteToken(ctx context.Context, writer io.Writer, token, keyURI string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("--token is required")
	}
	if keyURI == "" {
		return fmt.Errorf(
			"--kms-key-uri is required\n\nFor local development, use:\n  --kms-key-uri=\"base64key://<32-byte-base64-key>\"",
		)
	}

	ciphertext, err := outboxService.EncryptRemoteToken(ctx, token, keyURI)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(writer, "REMOTE_API_TOKEN_CIPHERTEXT=%q\nKMS_KEY_URI=%q\n", ciphertext, keyURI)
	return err
}
