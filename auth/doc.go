// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth implements the contracts the election service consumes from the
club's identity and admin collaborators. It does not authenticate anyone
itself.

# Admin Keys

Admin mutations carry the X-Admin-Key header, compared in constant time with
the configured key:

	err := auth.ValidateAdminKey(r.Header.Get("X-Admin-Key"), cfg.AdminKey)

# Voter Tokens

The identity service signs the stable voter identifier with a shared secret:

	token := auth.SignVoterID(voterID, secret)   // "<voterID>.<sig>"
	voterID, err := auth.VerifyVoterToken(token, secret)

The signature is URL-safe base64 HMAC-SHA256 without padding. The voter id
may itself contain dots; the signature is everything after the last one.

# ID Generation

Random UUIDs for database records:

	id := auth.NewID()

# IP Hashing

Ballots keep a salted hash of the client address for auditing:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
