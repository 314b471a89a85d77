// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication and token generation utilities.

# Admin Keys

Admin keys are HMAC-SHA256 over the administrator ID:

	adminKey := auth.AdminKey(adminID, salt)
	err := auth.VerifyAdminKey(adminID, adminKey, salt)

Keys are raw URL-safe base64 and never stored; the same admin ID and salt
always produce the same key. The admin ID is recorded as the
creator or deactivator of bias entries.

# ID Generation

Random hex IDs for award and nominee records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# Origin Hashing

Votes store a privacy-preserving hash of the submitter's network origin:

	hash := auth.HashOrigin(r.RemoteAddr, salt)

The port is dropped before hashing. Returns 16 hex chars, or "" for an
empty address.
*/
package auth
