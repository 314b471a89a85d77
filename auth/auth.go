// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrMissingCredentials = errors.New("missing admin credentials")
	ErrInvalidAdminKey    = errors.New("invalid admin key")
)

// Purpose labels keep admin keys and origin hashes from colliding when the
// same salt serves both.
const (
	adminPurpose  = "admin-key\x00"
	originPurpose = "vote-origin\x00"
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func mac(salt, purpose, value string) []byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(purpose))
	h.Write([]byte(value))
	return h.Sum(nil)
}

// AdminKey derives the key an administrator presents with X-Admin-Key.
// Keys are never stored; rotating the salt revokes all of them.
func AdminKey(adminID, salt string) string {
	return base64.RawURLEncoding.EncodeToString(mac(salt, adminPurpose, adminID))
}

// VerifyAdminKey checks an X-Admin-ID / X-Admin-Key pair.
func VerifyAdminKey(adminID, key, salt string) error {
	if adminID == "" || key == "" {
		return ErrMissingCredentials
	}
	if !hmac.Equal([]byte(key), []byte(AdminKey(adminID, salt))) {
		return ErrInvalidAdminKey
	}
	return nil
}

// HashOrigin returns a salted, truncated hash of the network address a
// vote came from. Ports are dropped so one client hashes the same across
// connections. An empty address hashes to "".
func HashOrigin(addr, salt string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.ToLower(strings.Trim(addr, "[]"))
	if addr == "" {
		return ""
	}
	return hex.EncodeToString(mac(salt, originPurpose, addr)[:8])
}
