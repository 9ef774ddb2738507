package broker

import "errors"

// Sentinel errors surfaced to the orchestrator so it can map provider
// failures onto the user-facing error taxonomy (spec §8).
var (
	// ErrQuotaExhausted means both the primary and (if present) the backup
	// provider rejected the request as over-quota.
	ErrQuotaExhausted = errors.New("broker: quota exhausted on all configured providers")
	// ErrAuth means a provider rejected the request as unauthenticated or
	// unauthorized; retrying will not help.
	ErrAuth = errors.New("broker: provider authentication failed")
	// ErrNoBackupConfigured is wrapped into ErrQuotaExhausted when a quota
	// error on the primary has no backup to fail over to.
	ErrNoBackupConfigured = errors.New("broker: no backup provider configured")
)
