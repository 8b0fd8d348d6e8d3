package commands

import (
	"fmt"
	"io"
	"strings"

	authService "github.com/allisson/marketsync/internal/auth/service"
)

// RunHashOperatorToken prints an OPERATOR_TOKEN_HASH value for the operator API.
// When token is empty a random token is generated and printed once; only its hash belongs in
// the server configuration.
func RunHashOperatorToken(tokenService authService.OperatorTokenService, writer io.Writer, token string) error {
	token = strings.TrimSpace(token)

	if token == "" {
		plainToken, tokenHash, err := tokenService.GenerateToken()
		if err != nil {
			return fmt.Errorf("failed to generate operator token: %w", err)
		}
		_, err = fmt.Fprintf(writer,
			"# Operator token (store it securely, it is not shown again)\nOPERATOR_TOKEN=%q\nOPERATOR_TOKEN_HASH=%q\n",
			plainToken, tokenHash,
		)
		return err
	}

	tokenHash, err := tokenService.HashToken(token)
	if err != nil {
		return fmt.Errorf("failed to hash operator token: %w", err)
	}
	_, err = fmt.Fprintf(writer, "OPERATOR_TOKEN_HASH=%q\n", tokenHash)
	return err
}
