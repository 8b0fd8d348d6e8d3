package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"gocloud.dev/secrets"

	apperrors "github.com/allisson/marketsync/internal/errors"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// ErrTokenDecryption indicates the remote API token ciphertext could not be decrypted.
var ErrTokenDecryption = apperrors.Wrap(apperrors.ErrMisconfigured, "failed to decrypt remote api token")

// ResolveRemoteToken returns the bearer token used against the remote system.
// A ciphertext takes precedence over the plaintext token and is decrypted through the KMS
// keeper at keyURI. Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func ResolveRemoteToken(ctx context.Context, plaintext, ciphertext, keyURI string) (string, error) {
	if ciphertext == "" {
		return plaintext, nil
	}
	if keyURI == "" {
		return "", apperrors.Wrap(apperrors.ErrMisconfigured, "KMS_KEY_URI is required to decrypt the remote api token")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %w", ErrTokenDecryption, err)
	}

	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return "", fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		_ = keeper.Close()
	}()

	token, err := keeper.Decrypt(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenDecryption, err)
	}
	return string(token), nil
}

// EncryptRemoteToken encrypts a token with the KMS keeper at keyURI and returns base64 ciphertext
// suitable for REMOTE_API_TOKEN_CIPHERTEXT.
func EncryptRemoteToken(ctx context.Context, token, keyURI string) (string, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return "", fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		_ = keeper.Close()
	}()

	ciphertext, err := keeper.Encrypt(ctx, []byte(token))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt remote api token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
