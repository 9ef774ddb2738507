// Package transient classifies errors by the lowercased-substring rules
// shared between the Model Broker's retry/failover logic (spec §4.3) and
// the Pipeline Engine's build/deploy retry wrapper (spec §4.4).
package transient

import "strings"

// networkMarkers are substrings whose presence in a lowercased error message
// indicates a transient transport fault worth retrying.
var networkMarkers = []string{
	"connection aborted", "connection refused", "timeout",
	"unavailable", "iocp", "socket", "503", "502", "504",
}

// quotaMarkers indicate the LLM backend rejected a request for quota/rate
// limit reasons, which triggers Model Broker failover rather than a retry.
var quotaMarkers = []string{
	"resource exhausted", "429", "quota", "rate limit",
}

// authMarkers indicate the LLM backend rejected a request as
// unauthenticated or unauthorized; retrying or failing over will not help.
var authMarkers = []string{
	"unauthorized", "authentication", "api key", "permission denied", "forbidden",
}

// IsNetworkError reports whether err's message matches the transient
// transport-fault vocabulary.
func IsNetworkError(err error) bool {
	return containsAny(err, networkMarkers)
}

// IsQuotaError reports whether err's message matches the quota/rate-limit
// vocabulary.
func IsQuotaError(err error) bool {
	return containsAny(err, quotaMarkers)
}

// IsAuthError reports whether err's message matches the auth-failure
// vocabulary.
func IsAuthError(err error) bool {
	return containsAny(err, authMarkers)
}

func containsAny(err error, markers []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
