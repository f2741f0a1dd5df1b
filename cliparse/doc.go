// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Precedence

Lowest to highest:

 1. Defaults()
 2. YAML file from -c or CONFIG_FILE
 3. .env file from -env-file (ignored if missing)
 4. Environment: PORT, DATABASE_URL, DATABASE_TYPE, then CLUBVOTE_*
 5. CLI flags

# CLI Flags

	-p                Server port
	-d                Database URL
	-t                Database type (sqlite or postgres)
	-admin-key        Admin key
	-identity-secret  Voter token signing secret
	-log-level        debug, info, warn, error
	-log-format       text or json

# Validation

ParseFlags returns an error if the database URL, admin key or identity
secret is missing.
*/
package cliparse
