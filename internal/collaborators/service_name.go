package collaborators

import (
	"strings"
)

const maxServiceNameLength = 63

// DeriveServiceName implements spec §6's service-name rule: lowercase,
// digits, hyphens only; must start with a letter; length ≤ 63; derived from
// the repo URL's last path segment with ".git" stripped (grounded on
// GCloudService.deploy_to_cloudrun's unique_service_name derivation,
// tightened to the spec's stricter start-with-letter rule).
func DeriveServiceName(repoURL string) string {
	segment := lastPathSegment(repoURL)
	segment = strings.TrimSuffix(segment, ".git")

	name := hyphenate(strings.ToLower(segment))
	name = ensureStartsWithLetter(name)

	if len(name) > maxServiceNameLength {
		name = name[:maxServiceNameLength]
	}
	name = strings.TrimRight(name, "-")
	if name == "" {
		name = "service"
	}
	return name
}

func lastPathSegment(repoURL string) string {
	trimmed := strings.TrimRight(repoURL, "/")
	idx := strings.LastIndexAny(trimmed, "/:")
	if idx == -1 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// hyphenate replaces any run of characters outside [a-z0-9] with a single
// hyphen, collapsing repeats.
func hyphenate(s string) string {
	var sb strings.Builder
	lastWasHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastWasHyphen = false
		default:
			if !lastWasHyphen && sb.Len() > 0 {
				sb.WriteByte('-')
				lastWasHyphen = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}

func ensureStartsWithLetter(s string) string {
	if s == "" {
		return "service"
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return s
	}
	return "svc-" + s
}
