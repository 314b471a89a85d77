// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Precedence

CLI flag, then environment variable, then the optional env file
(default .env, loaded with godotenv; a missing file is ignored), then
Defaults().

# CLI Flags

	-p               Server port
	-d               Database URL
	-t               Database type (sqlite or postgres)
	-r               Redis URL (redis://, rediss://) or host:port; empty runs with the in-process cache only
	-env-file        Env file path
	-admin-salt      Admin key salt
	-ip-salt         Origin address hash salt
	-sweep-interval  Consistency sweep interval
	-sweep-autofix   Synchronize inconsistent awards during sweeps (default true)

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE
	REDIS_URL, REDIS_PASSWORD, REDIS_DB
	ADMIN_KEY_SALT, IP_HASH_SALT
	LOCK_TTL, LOCK_RETRY_DELAY, LOCK_MAX_ATTEMPTS
	SUBMIT_MAX_RETRIES, SUBMIT_BASE_DELAY, SUBMIT_MAX_DELAY
	SUBMISSION_RETRY_AFTER, STORE_RETRY_AFTER
	BREAKER_FAILURES, BREAKER_COOLDOWN, CALL_TIMEOUT
	TALLY_TTL, LOCAL_CLEANUP_INTERVAL, UPDATE_QUEUE_SIZE, UPDATE_WORKERS
	SWEEP_INTERVAL, SWEEP_AUTOFIX

Durations use time.ParseDuration syntax ("2s", "150ms", "5m").

# Validation

ParseFlags returns an error if DATABASE_URL or ADMIN_KEY_SALT is missing,
the database type is unknown, or a numeric/duration value does not parse.
*/
package cliparse
