// Package masking redacts secret-flagged environment variable values from
// progress messages and log lines, and scans build recipes for known
// secret-shaped literals as part of the container-build security check
// (spec §4.4, §9 "Security scan red-flag catalog").
package masking

import "regexp"

// EnvVar is the minimal shape masking needs from session.EnvVar, kept
// independent to avoid an import cycle with package session.
type EnvVar struct {
	Key    string
	Value  string
	Secret bool
}

const redacted = "***"

// DescribeEnvVars renders a log/progress-safe summary of env vars: secret
// values are replaced with a fixed redaction marker, never the real value.
func DescribeEnvVars(vars []EnvVar) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		if v.Secret {
			out = append(out, v.Key+"="+redacted)
			continue
		}
		out = append(out, v.Key+"="+v.Value)
	}
	return out
}

// SafeEnvMap builds the env-var map passed to the serverless collaborator's
// create/update call. Unlike DescribeEnvVars this preserves real secret
// values (the deploy call needs them) — it exists only to make the
// secret/non-secret distinction explicit at the call site rather than
// passing a bare map[string]string around.
func SafeEnvMap(vars []EnvVar) map[string]string {
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		out[v.Key] = v.Value
	}
	return out
}

// secretLiteral matches assignments that look like an embedded secret, e.g.
// password="hunter2", API_KEY = 'sk-live-...'. Used only to flag suspicious
// recipe content, not to mask real env var values.
var secretLiteral = regexp.MustCompile(`(?i)(password|secret|api[_-]?key|token)\s*=\s*['"][^'"]{3,}['"]`)

// FindSecretLiterals returns the matched spans of text that look like a
// hardcoded secret, for the recipe security scan.
func FindSecretLiterals(text string) []string {
	return secretLiteral.FindAllString(text, -1)
}
