// Package service provides the operator token services used to protect the operator API.
package service

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/marketsync/internal/errors"
)

// OperatorTokenService generates and verifies operator bearer tokens.
// Only the Argon2id hash of a token is ever configured on the server.
type OperatorTokenService interface {
	// GenerateToken returns a new random token and its hash.
	GenerateToken() (plainToken string, tokenHash string, err error)
	// HashToken hashes a plain token.
	HashToken(plainToken string) (string, error)
	// VerifyToken reports whether a plain token matches a hash.
	VerifyToken(plainToken, tokenHash string) bool
}

type operatorTokenService struct {
	hasher *pwdhash.PasswordHasher
}

// NewOperatorTokenService creates an OperatorTokenService using Argon2id with the moderate policy.
func NewOperatorTokenService() OperatorTokenService {
	hasher, err := pwdhash.New(
		pwdhash.WithPolicy(pwdhash.PolicyModerate),
	)
	if err != nil {
		panic(err)
	}

	return &operatorTokenService{hasher: hasher}
}

// GenerateToken creates a 32 byte random token encoded as URL-safe base64.
func (s *operatorTokenService) GenerateToken() (string, string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate operator token")
	}

	plainToken := base64.URLEncoding.EncodeToString(randomBytes)
	tokenHash, err := s.HashToken(plainToken)
	if err != nil {
		return "", "", err
	}
	return plainToken, tokenHash, nil
}

func (s *operatorTokenService) HashToken(plainToken string) (string, error) {
	tokenHash, err := s.hasher.Hash([]byte(plainToken))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash operator token")
	}
	return tokenHash, nil
}

// VerifyToken compares in constant time. A malformed hash never verifies.
func (s *operatorTokenService) VerifyToken(plainToken, tokenHash string) bool {
	ok, err := s.hasher.Verify([]byte(plainToken), tokenHash)
	if err != nil {
		return false
	}
	return ok
}
