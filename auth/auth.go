// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidToken    = errors.New("invalid token format")
	ErrBadSignature    = errors.New("voter token signature mismatch")
)

// NewID creates a random identifier for elections, candidates and ballots
func NewID() string {
	return uuid.NewString()
}

// ValidateAdminKey checks the provided admin key against the configured one.
// Both sides are hashed first so the comparison time does not leak the length.
func ValidateAdminKey(provided, configured string) error {
	if provided == "" || configured == "" {
		return ErrInvalidAdminKey
	}
	a := sha256.Sum256([]byte(provided))
	b := sha256.Sum256([]byte(configured))
	if !hmac.Equal(a[:], b[:]) {
		return ErrInvalidAdminKey
	}
	return nil
}

// SignVoterID produces the token the identity service hands to a verified
// voter: "<voterID>.<signature>"
func SignVoterID(voterID, secret string) string {
	return voterID + "." + voterSignature(voterID, secret)
}

// VerifyVoterToken checks a token issued by the identity service and returns
// the voter identifier it carries
func VerifyVoterToken(token, secret string) (string, error) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", ErrInvalidToken
	}
	voterID, sig := token[:i], token[i+1:]

	expected := voterSignature(voterID, secret)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", ErrBadSignature
	}
	return voterID, nil
}

func voterSignature(voterID, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(voterID))
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(h.Sum(nil)), "=")
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for auditing
	return hex.EncodeToString(sum[:8])
}
